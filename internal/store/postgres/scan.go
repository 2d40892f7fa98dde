package postgres

import (
	"encoding/json"

	"github.com/alfredjeanlab/evreg/internal/store"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanItem scans a single row into a store.Item.
// The row must contain columns in the order defined by itemColumns.
func scanItem(row scannable) (store.Item, error) {
	var (
		item store.Item
		body []byte
	)
	if err := row.Scan(&item.PartitionKey, &item.SortKey, &body); err != nil {
		return store.Item{}, err
	}
	item.Body = json.RawMessage(body)
	return item, nil
}
