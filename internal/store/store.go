// Package store persists the sandbox server's tables. Every method addresses
// a table by base id and table name; tables spring into existence on first
// write.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

// ErrNotFound is returned when a record id does not exist in the table.
var ErrNotFound = errors.New("record not found")

// Store defines the persistence interface for sandbox tables.
type Store interface {
	// ListRecords returns the table's records in insertion order. limit <= 0
	// means no limit.
	ListRecords(ctx context.Context, baseID, table string, limit int) ([]*model.Record, error)
	GetRecord(ctx context.Context, baseID, table, id string) (*model.Record, error)
	// CreateRecord stores rec, whose ID and CreatedTime the caller assigns.
	CreateRecord(ctx context.Context, baseID, table string, rec *model.Record) error
	// UpdateRecord merges fields into the stored record.
	UpdateRecord(ctx context.Context, baseID, table, id string, fields model.Fields) (*model.Record, error)
	// ReplaceRecord swaps the stored fields for rec's. ID and CreatedTime are kept.
	ReplaceRecord(ctx context.Context, baseID, table string, rec *model.Record) (*model.Record, error)
	DeleteRecord(ctx context.Context, baseID, table, id string) error

	Close() error
}
