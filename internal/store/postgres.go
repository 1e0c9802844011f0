package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a single flight_state table:
//
//	CREATE TABLE flight_state (
//	    pk           TEXT NOT NULL,
//	    sk           TEXT NOT NULL,
//	    attrs        JSONB NOT NULL DEFAULT '{}',
//	    index_a_key  TEXT NOT NULL DEFAULT '',
//	    index_a_sort TEXT NOT NULL DEFAULT '',
//	    index_b_key  TEXT NOT NULL DEFAULT '',
//	    index_b_sort TEXT NOT NULL DEFAULT '',
//	    PRIMARY KEY (pk, sk)
//	);
//	CREATE INDEX flight_state_index_a ON flight_state (index_a_key, index_a_sort);
//	CREATE INDEX flight_state_index_b ON flight_state (index_b_key, index_b_sort);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, pk, sk string) (*Item, error) {
	item := &Item{PK: pk, SK: sk}
	var attrs []byte
	err := s.pool.QueryRow(ctx, `
		SELECT attrs, index_a_key, index_a_sort, index_b_key, index_b_sort
		FROM flight_state WHERE pk = $1 AND sk = $2
	`, pk, sk).Scan(&attrs, &item.IndexAKey, &item.IndexASort, &item.IndexBKey, &item.IndexBSort)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if err := json.Unmarshal(attrs, &item.Attrs); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) Query(ctx context.Context, pk, skPrefix string) ([]*Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sk, attrs, index_a_key, index_a_sort, index_b_key, index_b_sort
		FROM flight_state
		WHERE pk = $1 AND sk LIKE $2 || '%'
		ORDER BY sk
	`, pk, skPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows, pk)
}

func (s *PostgresStore) QueryIndex(ctx context.Context, index Index, key string) ([]*Item, error) {
	keyCol, sortCol := "index_a_key", "index_a_sort"
	if index == IndexBookingStatus {
		keyCol, sortCol = "index_b_key", "index_b_sort"
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT pk, sk, attrs, index_a_key, index_a_sort, index_b_key, index_b_sort
		FROM flight_state
		WHERE %s = $1
		ORDER BY %s
	`, keyCol, sortCol), key)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		var attrs []byte
		if err := rows.Scan(&item.PK, &item.SK, &attrs, &item.IndexAKey, &item.IndexASort, &item.IndexBKey, &item.IndexBSort); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if err := json.Unmarshal(attrs, &item.Attrs); err != nil {
			return nil, fmt.Errorf("failed to decode attributes: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ConditionalUpdate merges attributes and sets index keys in one UPDATE, so
// an entity status and its index key move together or not at all.
func (s *PostgresStore) ConditionalUpdate(ctx context.Context, pk, sk string, upd Update) error {
	set, err := json.Marshal(upd.Set)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE flight_state
		SET attrs = attrs || $3::jsonb,
		    index_a_key  = COALESCE($4, index_a_key),
		    index_a_sort = COALESCE($5, index_a_sort),
		    index_b_key  = COALESCE($6, index_b_key),
		    index_b_sort = COALESCE($7, index_b_sort)
		WHERE pk = $1 AND sk = $2
	`, pk, sk, set, upd.IndexAKey, upd.IndexASort, upd.IndexBKey, upd.IndexBSort)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, item *Item) error {
	attrs, err := json.Marshal(item.Attrs)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO flight_state (pk, sk, attrs, index_a_key, index_a_sort, index_b_key, index_b_sort)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pk, sk) DO UPDATE
		SET attrs = EXCLUDED.attrs,
		    index_a_key  = EXCLUDED.index_a_key,
		    index_a_sort = EXCLUDED.index_a_sort,
		    index_b_key  = EXCLUDED.index_b_key,
		    index_b_sort = EXCLUDED.index_b_sort
	`, item.PK, item.SK, attrs, item.IndexAKey, item.IndexASort, item.IndexBKey, item.IndexBSort)
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func scanItems(rows pgx.Rows, pk string) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item := &Item{PK: pk}
		var attrs []byte
		if err := rows.Scan(&item.SK, &attrs, &item.IndexAKey, &item.IndexASort, &item.IndexBKey, &item.IndexBSort); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if err := json.Unmarshal(attrs, &item.Attrs); err != nil {
			return nil, fmt.Errorf("failed to decode attributes: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
