package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const cursorVersion = 1

type cursorEnvelope struct {
	V   int `json:"v"`
	Key Key `json:"k"`
}

// EncodeCursor returns an opaque token that resumes a query or scan strictly
// after key.
func EncodeCursor(key Key) string {
	data, _ := json.Marshal(cursorEnvelope{V: cursorVersion, Key: key})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor reverses EncodeCursor. An empty cursor decodes to the zero Key
// and ok=false.
func DecodeCursor(cursor string) (key Key, ok bool, err error) {
	if cursor == "" {
		return Key{}, false, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return Key{}, false, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var env cursorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Key{}, false, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if env.V != cursorVersion || env.Key.PartitionKey == "" {
		return Key{}, false, ErrInvalidCursor
	}
	return env.Key, true, nil
}
