package memory

import (
	"context"
	"fmt"
	"sync"
)

// Table is a sheet-like grid. Row n (1-based) holds the key in column keyCol.
type Table struct {
	mu     sync.RWMutex
	rows   [][]any
	keyCol int
}

// NewTable returns a Table whose keys are read from column keyCol (0-based).
// Seed rows are copied in as rows 1..len(seed).
func NewTable(keyCol int, seed ...[]any) *Table {
	t := &Table{keyCol: keyCol}
	for _, row := range seed {
		t.rows = append(t.rows, append([]any(nil), row...))
	}
	return t
}

// ReadKeys returns the key column of every row.
func (t *Table) ReadKeys(context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.rows))
	for _, row := range t.rows {
		if t.keyCol < len(row) {
			keys = append(keys, fmt.Sprint(row[t.keyCol]))
			continue
		}
		keys = append(keys, "")
	}
	return keys, nil
}

// AppendRows writes rows starting at startRow, overwriting and growing as a
// spreadsheet range update would.
func (t *Table) AppendRows(_ context.Context, startRow int, rows [][]any) error {
	if startRow < 1 {
		return fmt.Errorf("start row must be >= 1, got %d", startRow)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, row := range rows {
		idx := startRow - 1 + i
		for len(t.rows) <= idx {
			t.rows = append(t.rows, nil)
		}
		t.rows[idx] = append([]any(nil), row...)
	}
	return nil
}

// Rows returns a copy of the grid.
func (t *Table) Rows() [][]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([][]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]any(nil), row...)
	}
	return out
}
