package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// MockSpreadsheet is an in-memory SpreadsheetAPI for testing.
type MockSpreadsheet struct {
	// FailFunc, when set, is consulted before every call.
	FailFunc func(method string) error
	tabs     map[string]*mockTab
	Calls    []string
	nextTab  int64
	mu       sync.Mutex
}

type mockTab struct {
	rows [][]any
	id   int64
}

var _ SpreadsheetAPI = (*MockSpreadsheet)(nil)

// NewMockSpreadsheet creates an empty mock spreadsheet.
func NewMockSpreadsheet() *MockSpreadsheet {
	return &MockSpreadsheet{tabs: make(map[string]*mockTab)}
}

// Create implements SpreadsheetAPI.
func (m *MockSpreadsheet) Create(_ context.Context, title, _ string) (string, error) {
	if err := m.record("Create"); err != nil {
		return "", err
	}
	return "mock-" + strings.ReplaceAll(strings.ToLower(title), " ", "-"), nil
}

// Tabs implements SpreadsheetAPI.
func (m *MockSpreadsheet) Tabs(_ context.Context, _ string) (map[string]int64, error) {
	if err := m.record("Tabs"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.tabs))
	for title, t := range m.tabs {
		out[title] = t.id
	}
	return out, nil
}

// AddTab implements SpreadsheetAPI.
func (m *MockSpreadsheet) AddTab(_ context.Context, _, title string) (int64, error) {
	if err := m.record("AddTab"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tabs[title]; ok {
		return 0, fmt.Errorf("tab %q already exists", title)
	}
	m.nextTab++
	m.tabs[title] = &mockTab{id: m.nextTab}
	return m.nextTab, nil
}

// Read implements SpreadsheetAPI. Only whole-column ranges are supported.
func (m *MockSpreadsheet) Read(_ context.Context, _, rng string) ([][]any, error) {
	if err := m.record("Read"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, cells, err := m.lookup(rng)
	if err != nil {
		return nil, err
	}
	idOnly := cells == "A:A"
	out := make([][]any, 0, len(t.rows))
	for _, row := range t.rows {
		if idOnly && len(row) > 0 {
			out = append(out, []any{row[0]})
			continue
		}
		out = append(out, append([]any(nil), row...))
	}
	return out, nil
}

// Append implements SpreadsheetAPI.
func (m *MockSpreadsheet) Append(_ context.Context, _, rng string, rows [][]any) error {
	if err := m.record("Append"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, _, err := m.lookup(rng)
	if err != nil {
		return err
	}
	for _, row := range rows {
		t.rows = append(t.rows, append([]any(nil), row...))
	}
	return nil
}

// Write implements SpreadsheetAPI. The range must be a single-cell anchor like Tab!A3.
func (m *MockSpreadsheet) Write(_ context.Context, _, rng string, rows [][]any) error {
	if err := m.record("Write"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, cells, err := m.lookup(rng)
	if err != nil {
		return err
	}
	start, err := strconv.Atoi(strings.TrimPrefix(cells, "A"))
	if err != nil || start < 1 {
		return fmt.Errorf("unsupported write range %q", rng)
	}
	for i, row := range rows {
		idx := start - 1 + i
		for len(t.rows) <= idx {
			t.rows = append(t.rows, nil)
		}
		t.rows[idx] = append([]any(nil), row...)
	}
	return nil
}

// DeleteRow implements SpreadsheetAPI.
func (m *MockSpreadsheet) DeleteRow(_ context.Context, _ string, tabID int64, row int) error {
	if err := m.record("DeleteRow"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tabs {
		if t.id != tabID {
			continue
		}
		if row < 0 || row >= len(t.rows) {
			return fmt.Errorf("row %d out of range", row)
		}
		t.rows = append(t.rows[:row], t.rows[row+1:]...)
		return nil
	}
	return fmt.Errorf("tab %d not found", tabID)
}

// Rows returns a copy of a tab's rows, header included.
func (m *MockSpreadsheet) Rows(title string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tabs[title]
	if !ok {
		return nil
	}
	out := make([][]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]any(nil), row...)
	}
	return out
}

// CallCount returns how many times method was invoked.
func (m *MockSpreadsheet) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *MockSpreadsheet) record(method string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, method)
	fail := m.FailFunc
	m.mu.Unlock()

	if fail != nil {
		return fail(method)
	}
	return nil
}

func (m *MockSpreadsheet) lookup(rng string) (*mockTab, string, error) {
	title, cells, ok := strings.Cut(rng, "!")
	if !ok {
		return nil, "", fmt.Errorf("range %q has no tab", rng)
	}
	t, found := m.tabs[title]
	if !found {
		return nil, "", fmt.Errorf("tab %q not found", title)
	}
	return t, cells, nil
}
