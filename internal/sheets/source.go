// Package sheets reads and appends rows on worksheet-per-table tabular stores.
package sheets

import (
	"context"
	"errors"
	"strings"
)

// ErrWorksheetNotFound is returned when the named worksheet does not exist.
var ErrWorksheetNotFound = errors.New("sheets: worksheet not found")

// Source is a worksheet-per-table store. Values returns every populated row,
// header row included.
type Source interface {
	Values(ctx context.Context, sheet string) ([][]string, error)
	Append(ctx context.Context, sheet string, row []string) error
}

// Row is a data row keyed by header name.
type Row map[string]string

// Get returns the trimmed cell for column, or "" when absent.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// Records maps the rows after the header onto header names. Short rows are
// padded with empty cells; cells beyond the header are dropped.
func Records(values [][]string) []Row {
	if len(values) == 0 {
		return nil
	}
	header := make([]string, len(values[0]))
	for i, h := range values[0] {
		header[i] = strings.TrimSpace(h)
	}
	rows := make([]Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make(Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(raw) {
				row[name] = raw[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}
