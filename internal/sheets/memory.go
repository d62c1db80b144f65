package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MemorySource is a Source held in process memory. It backs local development
// fixtures and tests.
type MemorySource struct {
	mu     sync.RWMutex
	sheets map[string][][]string
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{sheets: make(map[string][][]string)}
}

// LoadFixture decodes a JSON object of sheet name -> rows into a MemorySource.
func LoadFixture(r io.Reader) (*MemorySource, error) {
	var raw map[string][][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("sheets: decode fixture: %w", err)
	}
	src := NewMemorySource()
	for name, rows := range raw {
		src.SetSheet(name, rows)
	}
	return src, nil
}

// SetSheet creates or replaces a worksheet.
func (m *MemorySource) SetSheet(name string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[name] = cloneRows(rows)
}

// Values implements Source.
func (m *MemorySource) Values(_ context.Context, sheet string) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorksheetNotFound, sheet)
	}
	return cloneRows(rows), nil
}

// Append implements Source.
func (m *MemorySource) Append(_ context.Context, sheet string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorksheetNotFound, sheet)
	}
	m.sheets[sheet] = append(rows, append([]string(nil), row...))
	return nil
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
