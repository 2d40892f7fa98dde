package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/evreg/internal/store"
)

// defaultLimit is the page size used when a query or scan gives none.
const defaultLimit = 100

// itemColumns is the column list used for SELECT statements on the items table.
const itemColumns = `pk, sk, body`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryGetItem(ctx context.Context, db executor, key store.Key) (store.Item, error) {
	row := db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE pk = $1 AND sk = $2`,
		key.PartitionKey, key.SortKey)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Item{}, store.ErrNotFound
	}
	if err != nil {
		return store.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func queryPutItem(ctx context.Context, db executor, item store.Item, opts store.PutOptions) error {
	conflict := `ON CONFLICT (pk, sk) DO UPDATE SET body = EXCLUDED.body`
	if opts.FailIfExists {
		conflict = `ON CONFLICT (pk, sk) DO NOTHING`
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO items (pk, sk, body) VALUES ($1, $2, $3) `+conflict,
		item.PartitionKey, item.SortKey, []byte(item.Body),
	)
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	if !opts.FailIfExists {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put item: rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

// queryConditionalUpdate is a single UPDATE whose WHERE clause carries the
// guard, so the compare and the swap happen under the row lock PostgreSQL
// takes for the update.
func queryConditionalUpdate(ctx context.Context, db executor, key store.Key, upd store.CounterUpdate) error {
	if len(upd.Field) == 0 {
		return fmt.Errorf("conditional update: empty field path")
	}
	res, err := db.ExecContext(ctx, `
		UPDATE items
		SET body = jsonb_set(body, $3::text[], to_jsonb($5::bigint))
		WHERE pk = $1 AND sk = $2
		  AND (body #>> $3::text[])::bigint = $4`,
		key.PartitionKey, key.SortKey, pq.Array(upd.Field), upd.Expected, upd.Next,
	)
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conditional update: rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrPreconditionFailed
	}
	return nil
}

func queryItems(ctx context.Context, db executor, in store.QueryInput) (store.Page, error) {
	after, hasCursor, err := store.DecodeCursor(in.Cursor)
	if err != nil {
		return store.Page{}, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	q := `SELECT ` + itemColumns + ` FROM items WHERE pk = $1 AND starts_with(sk, $2)`
	args := []any{in.PartitionKey, in.SortKeyPrefix}
	if hasCursor {
		q += ` AND sk > $3 ORDER BY sk LIMIT $4`
		args = append(args, after.SortKey, limit+1)
	} else {
		q += ` ORDER BY sk LIMIT $3`
		args = append(args, limit+1)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return store.Page{}, fmt.Errorf("query items: %w", err)
	}
	return collectPage(rows, limit)
}

func queryScan(ctx context.Context, db executor, in store.ScanInput) (store.Page, error) {
	after, hasCursor, err := store.DecodeCursor(in.Cursor)
	if err != nil {
		return store.Page{}, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	q := `SELECT ` + itemColumns + ` FROM items WHERE sk = $1`
	args := []any{in.SortKey}
	if hasCursor {
		q += ` AND pk > $2 ORDER BY pk LIMIT $3`
		args = append(args, after.PartitionKey, limit+1)
	} else {
		q += ` ORDER BY pk LIMIT $2`
		args = append(args, limit+1)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return store.Page{}, fmt.Errorf("scan items: %w", err)
	}
	return collectPage(rows, limit)
}

// collectPage reads up to limit items. The queries ask for one extra row so
// that the presence of a next page is known without a second round trip.
func collectPage(rows *sql.Rows, limit int) (store.Page, error) {
	defer rows.Close()

	var page store.Page
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return store.Page{}, fmt.Errorf("scan item: %w", err)
		}
		if len(page.Items) == limit {
			page.Next = store.EncodeCursor(page.Items[limit-1].Key)
			break
		}
		page.Items = append(page.Items, item)
	}
	if err := rows.Err(); err != nil {
		return store.Page{}, fmt.Errorf("scan items: %w", err)
	}
	return page, nil
}
