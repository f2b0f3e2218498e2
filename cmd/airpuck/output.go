package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/airpuck/internal/model"
	"github.com/alfredjeanlab/airpuck/internal/ui"
)

// maxCellWidth caps each column of the record list.
const maxCellWidth = 40

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printRecord writes one record as a key/value block. fields lists the
// table's columns; keys the record has beyond them follow.
func printRecord(w io.Writer, rec *model.Record, fields []string) error {
	if jsonOutput {
		return printJSON(w, rec)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", ui.RenderMuted("ID:"), rec.ID)
	fmt.Fprintf(tw, "%s\t%s\n", ui.RenderMuted("Created:"), rec.CreatedTime)
	for _, name := range columns(fields, []*model.Record{rec}) {
		v, ok := rec.Fields[name]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", ui.RenderMuted(name+":"), model.DisplayValue(v))
	}
	return tw.Flush()
}

// printRecordList writes records as a table with one column per field.
func printRecordList(w io.Writer, records []*model.Record, fields []string) error {
	if jsonOutput {
		if records == nil {
			records = []*model.Record{}
		}
		return printJSON(w, records)
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no records")
		return err
	}

	cols := columns(fields, records)
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\t"+strings.Join(upper(cols), "\t"))
	for _, rec := range records {
		cells := []string{rec.ID, rec.CreatedTime}
		for _, c := range cols {
			cells = append(cells, ui.Truncate(model.DisplayValue(rec.Fields[c]), maxCellWidth))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	// Styling is applied after alignment so escape codes do not skew widths.
	header, body, _ := strings.Cut(buf.String(), "\n")
	fmt.Fprintln(w, ui.RenderHeader(strings.TrimRight(header, " ")))
	fmt.Fprint(w, body)
	_, err := fmt.Fprintf(w, "\n%s\n", ui.RenderMuted(fmt.Sprintf("%d records", len(records))))
	return err
}

// columns returns fields followed by any other keys the records carry, in
// first-seen order.
func columns(fields []string, records []*model.Record) []string {
	seen := make(map[string]bool, len(fields))
	cols := append([]string(nil), fields...)
	for _, f := range fields {
		seen[f] = true
	}
	for _, rec := range records {
		for _, name := range rec.FieldNames() {
			if !seen[name] {
				seen[name] = true
				cols = append(cols, name)
			}
		}
	}
	return cols
}

func upper(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToUpper(n)
	}
	return out
}
