package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a model.Record.
// The row must contain columns in the order defined by recordColumns.
func scanRecord(row scannable) (*model.Record, error) {
	var (
		rec       model.Record
		fields    []byte
		order     pq.StringArray
		createdAt time.Time
	)
	if err := row.Scan(&rec.ID, &fields, &order, &createdAt); err != nil {
		return nil, err
	}

	rec.Fields = model.Fields{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
		}
	}
	rec.SetFieldOrder(order)
	rec.CreatedTime = model.FormatCreatedTime(createdAt)
	return &rec, nil
}

// fieldsJSON encodes fields for a JSONB column. nil encodes as an empty object.
func fieldsJSON(f model.Fields) ([]byte, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return data, nil
}
