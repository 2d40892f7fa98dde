package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/store"
)

// Record layout. An event and all of its registrations share one partition.
const (
	eventPartitionPrefix      = "EVENT#"
	MetadataSortKey           = "METADATA"
	RegistrationSortKeyPrefix = "REGISTRATION#"
)

// RegisteredField is the body path of the counter guarded by conditional updates.
var RegisteredField = []string{"capacity", "registered"}

// EventPartition returns the partition key shared by an event and its registrations.
func EventPartition(eventID string) string {
	return eventPartitionPrefix + eventID
}

// EventKey returns the key of an event's metadata record.
func EventKey(eventID string) store.Key {
	return store.Key{PartitionKey: EventPartition(eventID), SortKey: MetadataSortKey}
}

// RegistrationKey returns the key of a registration record.
func RegistrationKey(eventID, registrationID string) store.Key {
	return store.Key{
		PartitionKey: EventPartition(eventID),
		SortKey:      RegistrationSortKeyPrefix + registrationID,
	}
}

// EventIDFromKey extracts the event id from any key in an event partition.
func EventIDFromKey(key store.Key) (string, bool) {
	return strings.CutPrefix(key.PartitionKey, eventPartitionPrefix)
}

// EncodeEvent builds the metadata item for an event.
func EncodeEvent(e *model.Event) (store.Item, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return store.Item{}, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	return store.Item{Key: EventKey(e.ID), Body: body}, nil
}

// DecodeEvent parses a metadata item. The id is taken from the key when the
// body does not carry one.
func DecodeEvent(item store.Item) (*model.Event, error) {
	var e model.Event
	if err := json.Unmarshal(item.Body, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event %s: %w", item.PartitionKey, err)
	}
	if e.ID == "" {
		e.ID, _ = EventIDFromKey(item.Key)
	}
	return &e, nil
}

// EncodeRegistration builds the item for a registration record.
func EncodeRegistration(r *model.Registration) (store.Item, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return store.Item{}, fmt.Errorf("marshal registration %s: %w", r.ID, err)
	}
	return store.Item{Key: RegistrationKey(r.EventID, r.ID), Body: body}, nil
}

// DecodeRegistration parses a registration item.
func DecodeRegistration(item store.Item) (*model.Registration, error) {
	var r model.Registration
	if err := json.Unmarshal(item.Body, &r); err != nil {
		return nil, fmt.Errorf("unmarshal registration %s/%s: %w", item.PartitionKey, item.SortKey, err)
	}
	if r.ID == "" {
		r.ID = strings.TrimPrefix(item.SortKey, RegistrationSortKeyPrefix)
	}
	if r.EventID == "" {
		r.EventID, _ = EventIDFromKey(item.Key)
	}
	return &r, nil
}
