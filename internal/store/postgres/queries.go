package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/airpuck/internal/model"
	"github.com/alfredjeanlab/airpuck/internal/store"
)

// recordColumns is the column list used for SELECT statements on the records table.
const recordColumns = `id, fields, field_order, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryListRecords(ctx context.Context, db executor, baseID, table string, limit int) ([]*model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE base_id = $1 AND table_name = $2 ORDER BY position`
	args := []any{baseID, table}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []*model.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func queryGetRecord(ctx context.Context, db executor, baseID, table, id string, forUpdate bool) (*model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE base_id = $1 AND table_name = $2 AND id = $3`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rec, err := scanRecord(db.QueryRowContext(ctx, query, baseID, table, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

func queryCreateRecord(ctx context.Context, db executor, baseID, table string, rec *model.Record) error {
	createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedTime)
	if err != nil {
		return fmt.Errorf("create record: createdTime %q: %w", rec.CreatedTime, err)
	}
	fields, err := fieldsJSON(rec.Fields)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO records (base_id, table_name, id, fields, field_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		baseID, table, rec.ID, fields, pq.Array(rec.FieldNames()), createdAt,
	)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// queryWriteFields overwrites the stored fields of rec.ID with rec.Fields.
func queryWriteFields(ctx context.Context, db executor, baseID, table string, rec *model.Record) error {
	fields, err := fieldsJSON(rec.Fields)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE records SET fields = $4, field_order = $5
		WHERE base_id = $1 AND table_name = $2 AND id = $3`,
		baseID, table, rec.ID, fields, pq.Array(rec.FieldNames()),
	)
	if err != nil {
		return fmt.Errorf("write fields: %w", err)
	}
	return requireRow(res)
}

func queryReplaceRecord(ctx context.Context, db executor, baseID, table string, rec *model.Record) (*model.Record, error) {
	fields, err := fieldsJSON(rec.Fields)
	if err != nil {
		return nil, err
	}
	var createdAt time.Time
	err = db.QueryRowContext(ctx, `
		UPDATE records SET fields = $4, field_order = $5
		WHERE base_id = $1 AND table_name = $2 AND id = $3
		RETURNING created_at`,
		baseID, table, rec.ID, fields, pq.Array(rec.FieldNames()),
	).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("replace record: %w", err)
	}
	out := rec.Clone()
	out.CreatedTime = model.FormatCreatedTime(createdAt)
	return out, nil
}

func queryDeleteRecord(ctx context.Context, db executor, baseID, table, id string) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM records WHERE base_id = $1 AND table_name = $2 AND id = $3`,
		baseID, table, id,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
