// Package rpc holds the wire contract shared by the gRPC server and client.
// Messages are google.protobuf.Struct values carrying the same JSON shapes
// as the HTTP API, so no generated code is needed.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "evreg.v1.CatalogService"

// Full method names.
const (
	MethodListEvents        = "/" + ServiceName + "/ListEvents"
	MethodGetEvent          = "/" + ServiceName + "/GetEvent"
	MethodRegister          = "/" + ServiceName + "/Register"
	MethodListRegistrations = "/" + ServiceName + "/ListRegistrations"
)

// ListEventsRequest is the ListEvents request body.
type ListEventsRequest struct {
	Category  string `json:"category,omitempty"`
	Search    string `json:"search,omitempty"`
	Status    string `json:"status,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	NextToken string `json:"nextToken,omitempty"`
}

// EventRequest names a single event.
type EventRequest struct {
	EventID string `json:"eventId"`
}

// ToStruct converts any JSON-encodable value into a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// FromStruct decodes s into v using v's JSON tags.
func FromStruct(s *structpb.Struct, v any) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
