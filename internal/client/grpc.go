package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/rpc"
)

// GRPCClient implements Client over the gRPC transport.
type GRPCClient struct {
	conn *grpc.ClientConn
}

var _ Client = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
// Extra dial options are appended to the insecure transport default.
func NewGRPCClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// call sends req as a Struct and decodes the reply into resp.
func (c *GRPCClient) call(ctx context.Context, method string, req, resp any) error {
	in, err := rpc.ToStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		if code, msg, ambiguous, ok := rpc.ParseError(err); ok {
			return &APIError{Code: code, Message: msg, Ambiguous: ambiguous}
		}
		return err
	}
	return rpc.FromStruct(out, resp)
}

func (c *GRPCClient) ListEvents(ctx context.Context, req rpc.ListEventsRequest) (*catalog.EventPage, error) {
	var page catalog.EventPage
	if err := c.call(ctx, rpc.MethodListEvents, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *GRPCClient) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var resp struct {
		Event *model.Event `json:"event"`
	}
	if err := c.call(ctx, rpc.MethodGetEvent, rpc.EventRequest{EventID: id}, &resp); err != nil {
		return nil, err
	}
	return resp.Event, nil
}

func (c *GRPCClient) Register(ctx context.Context, req registration.Request) (*registration.Result, error) {
	body := map[string]any{
		"eventId":       req.EventID,
		"attendeeEmail": req.AttendeeEmail,
		"attendeeName":  req.AttendeeName,
	}
	if req.GroupSize != 0 {
		body["groupSize"] = req.GroupSize
	}
	var res registration.Result
	if err := c.call(ctx, rpc.MethodRegister, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *GRPCClient) ListRegistrations(ctx context.Context, eventID string) ([]*model.Registration, error) {
	var list registrationList
	if err := c.call(ctx, rpc.MethodListRegistrations, rpc.EventRequest{EventID: eventID}, &list); err != nil {
		return nil, err
	}
	return list.Registrations, nil
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return "", err
	}
	if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		return "ok", nil
	}
	return resp.GetStatus().String(), nil
}
