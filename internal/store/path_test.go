package store

import (
	"encoding/json"
	"testing"
)

func TestGetSetPath(t *testing.T) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(`{"capacity":{"max":10,"registered":3},"title":"x"}`), &doc); err != nil {
		t.Fatal(err)
	}
	path := []string{"capacity", "registered"}

	v, ok := GetPath(doc, path)
	if !ok || v != 3 {
		t.Fatalf("GetPath = %d, %v; want 3, true", v, ok)
	}

	SetPath(doc, path, 7)
	v, ok = GetPath(doc, path)
	if !ok || v != 7 {
		t.Fatalf("after SetPath, GetPath = %d, %v; want 7, true", v, ok)
	}

	if _, ok := GetPath(doc, []string{"title", "nested"}); ok {
		t.Error("GetPath through a string should fail")
	}
	if _, ok := GetPath(doc, []string{"missing"}); ok {
		t.Error("GetPath of a missing attribute should fail")
	}

	SetPath(doc, []string{"a", "b"}, 1)
	if v, ok := GetPath(doc, []string{"a", "b"}); !ok || v != 1 {
		t.Errorf("SetPath should create intermediate objects, got %d, %v", v, ok)
	}
}
