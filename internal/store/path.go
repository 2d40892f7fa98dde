package store

import "encoding/json"

// GetPath reads the integer at path inside a decoded JSON document.
// Non-numeric or missing values report ok=false.
func GetPath(doc map[string]any, path []string) (int64, bool) {
	var cur any = doc
	for _, p := range path {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return 0, false
		}
		cur, isMap = m[p]
		if !isMap {
			return 0, false
		}
	}
	switch n := cur.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		v, err := n.Int64()
		return v, err == nil
	}
	return 0, false
}

// SetPath writes v at path inside a JSON document, creating intermediate
// objects as needed.
func SetPath(doc map[string]any, path []string, v int64) {
	cur := doc
	for _, p := range path[:len(path)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = v
}
