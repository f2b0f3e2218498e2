package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

// FormatVersion is written to every export header.
const FormatVersion = "1"

// Snapshot is a readable view of one table.
type Snapshot interface {
	Records() []*model.Record
	Fields() []string
	Options() model.TableConfig
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	BaseID      string    `json:"base_id"`
	Table       string    `json:"table"`
	RecordCount int       `json:"record_count"`
	Fields      []string  `json:"fields"`
}

// line wraps a single JSONL line with a type discriminator.
type line struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the snapshot as JSONL to w: a header line, then one
// line per record sorted by ID.
func ExportJSONL(ctx context.Context, snap Snapshot, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := snap.Records()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	fields := snap.Fields()
	if fields == nil {
		fields = []string{}
	}
	opts := snap.Options()

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     FormatVersion,
		Type:        "header",
		Timestamp:   time.Now().UTC(),
		BaseID:      opts.BaseID,
		Table:       opts.Name,
		RecordCount: len(records),
		Fields:      fields,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, r := range records {
		if err := enc.Encode(line{Type: "record", Data: r}); err != nil {
			return fmt.Errorf("encode record %s: %w", r.ID, err)
		}
	}
	return nil
}

// readHeader decodes the header line at the start of an export. It reports
// false when data does not start with one.
func readHeader(data []byte) (header, bool) {
	first, _, _ := bytes.Cut(data, []byte("\n"))
	var h header
	if err := json.Unmarshal(first, &h); err != nil || h.Type != "header" {
		return header{}, false
	}
	return h, true
}
