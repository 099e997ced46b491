// Package store provides the object store used for both raw payloads and
// processed columnar partitions. Keys are deterministic composites of
// dataset, symbol and date, so re-running ingestion for the same inputs
// overwrites the previous object instead of duplicating it.
package store

import (
	"context"
	"errors"
	"fmt"

	"equilake/models"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// StoreError wraps an I/O failure against the backing store. Store failures
// imply incomplete data and are always surfaced, never swallowed.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store is the uniform contract over raw and processed storage.
//
// Put must make the object visible atomically: a partition either appears
// whole or not at all, so a concurrently running aggregator never observes
// a half-written object.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// RawKey returns the object key for a raw provider payload.
func RawKey(dataset, symbol, date string) string {
	return fmt.Sprintf("raw/%s/%s_%s.json", dataset, symbol, date)
}

// ProcessedKey returns the object key for a processed parquet partition.
func ProcessedKey(dataset, symbol, date string) string {
	return fmt.Sprintf("processed/%s/%s_%s.parquet", dataset, symbol, date)
}

// RawPrefix returns the listing prefix for one raw dataset.
func RawPrefix(dataset string) string {
	return fmt.Sprintf("raw/%s/", dataset)
}

// ProcessedPrefix returns the listing prefix for one processed dataset.
func ProcessedPrefix(dataset string) string {
	return fmt.Sprintf("processed/%s/", dataset)
}

// PutRaw stores a raw payload under its canonical key.
func PutRaw(ctx context.Context, s Store, payload models.RawPayload) error {
	key := RawKey(payload.Dataset, payload.Symbol, payload.FetchDate)
	return s.Put(ctx, key, payload.Data)
}
