// Package events carries table change notifications over a message bus.
package events

import (
	"context"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

// Event topic constants
const (
	TopicTablePulled    = "airpuck.table.pulled"
	TopicRecordAdded    = "airpuck.record.added"
	TopicRecordUpdated  = "airpuck.record.updated"
	TopicRecordReplaced = "airpuck.record.replaced"
	TopicRecordDeleted  = "airpuck.record.deleted"

	// TopicAll matches every topic above.
	TopicAll = "airpuck.>"
)

// Source identifies the table an event is about.
type Source struct {
	BaseID string `json:"base_id"`
	Table  string `json:"table"`
}

// Matches reports whether s is the table want names. Empty parts of want
// match anything.
func (s Source) Matches(want Source) bool {
	return (want.BaseID == "" || s.BaseID == want.BaseID) &&
		(want.Table == "" || s.Table == want.Table)
}

func (s Source) eventSource() Source { return s }

// sourced is implemented by every event type through its embedded Source.
type sourced interface {
	eventSource() Source
}

// Event types

type TablePulled struct {
	Source
	RecordCount int      `json:"record_count"`
	Fields      []string `json:"fields,omitempty"`
}

type RecordAdded struct {
	Source
	Record *model.Record `json:"record"`
}

type RecordUpdated struct {
	Source
	Record *model.Record `json:"record"`
}

type RecordReplaced struct {
	Source
	Record *model.Record `json:"record"`
}

type RecordDeleted struct {
	Source
	RecordID string `json:"record_id"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
