package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/rpc"
)

// catalogService is the gRPC surface. Each method takes and returns a
// Struct holding the same JSON shape as the matching HTTP route.
type catalogService interface {
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRegistrations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*catalogService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListEvents", Handler: unaryHandler(rpc.MethodListEvents, catalogService.ListEvents)},
		{MethodName: "GetEvent", Handler: unaryHandler(rpc.MethodGetEvent, catalogService.GetEvent)},
		{MethodName: "Register", Handler: unaryHandler(rpc.MethodRegister, catalogService.Register)},
		{MethodName: "ListRegistrations", Handler: unaryHandler(rpc.MethodListRegistrations, catalogService.ListRegistrations)},
	},
	Metadata: "evreg/v1/catalog.proto",
}

// unaryHandler adapts a service method to grpc.MethodDesc, the way
// generated code does.
func unaryHandler(fullMethod string, call func(catalogService, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(catalogService)
		if interceptor == nil {
			return call(svc, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(svc, ctx, req.(*structpb.Struct))
		})
	}
}

// NewGRPCServer creates a gRPC server with standard interceptors and
// registers the catalog and health services.
func (s *Server) NewGRPCServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(s.logger),
			LoggingInterceptor(s.logger),
			s.timeoutInterceptor,
		),
	)
	srv.RegisterService(&catalogServiceDesc, &grpcService{s})

	hs := health.NewServer()
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

func (s *Server) timeoutInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return handler(ctx, req)
}

// grpcService implements catalogService on top of the shared handlers.
type grpcService struct {
	*Server
}

func invalidArgument(err error) error {
	return rpc.Error(model.CodeInvalidRequest, err.Error(), false)
}

func reply(v any) (*structpb.Struct, error) {
	out, err := rpc.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (g *grpcService) ListEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.ListEventsRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, invalidArgument(err)
	}
	filter := model.EventFilter{Category: req.Category, Search: req.Search, Status: model.Status(req.Status)}
	page, err := g.catalog.ListEvents(ctx, filter, req.Limit, req.NextToken)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(page)
}

func (g *grpcService) GetEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.EventRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, invalidArgument(err)
	}
	event, err := g.catalog.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(map[string]*model.Event{"event": event})
}

func (g *grpcService) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req registration.Request
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, invalidArgument(err)
	}
	if _, ok := in.GetFields()["groupSize"]; !ok {
		req.GroupSize = 1
	}
	res, err := g.engine.Register(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(res)
}

func (g *grpcService) ListRegistrations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.EventRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, invalidArgument(err)
	}
	list, err := g.listRegistrations(ctx, req.EventID)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(list)
}
