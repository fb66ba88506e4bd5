package sheets

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-inbox/internal/model"
)

// Tab describes the worksheet holding one entity type. Row 1 is the header;
// column A always holds the record id.
type Tab struct {
	Title   string
	Entity  model.EntityType
	Columns []string
}

var tabTitles = map[model.EntityType]string{
	model.EntityTransaction: "Transactions",
	model.EntityBankAccount: "Accounts",
	model.EntityBudget:      "Budgets",
	model.EntityCategory:    "Categories",
}

// TabFor returns the tab layout for entity.
func TabFor(entity model.EntityType) (Tab, error) {
	title, ok := tabTitles[entity]
	if !ok {
		return Tab{}, fmt.Errorf("%w: %q", model.ErrUnknownEntity, entity)
	}
	return Tab{Title: title, Entity: entity, Columns: model.Columns(entity)}, nil
}

// Range returns the A1 range covering every column of the tab.
func (t Tab) Range() string {
	return fmt.Sprintf("%s!A:%s", t.Title, columnLetter(len(t.Columns)))
}

// IDRange returns the A1 range of the id column.
func (t Tab) IDRange() string {
	return t.Title + "!A:A"
}

// RowRange returns the A1 anchor of a 0-based row index.
func (t Tab) RowRange(row int) string {
	return fmt.Sprintf("%s!A%d", t.Title, row+1)
}

func (t Tab) header() []any {
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c
	}
	return out
}

func (t Tab) row(rec model.Record) []any {
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = rec[c]
	}
	return out
}

// record maps a sheet row onto the header row that was read alongside it.
func record(header, row []any) model.Record {
	rec := make(model.Record, len(header))
	for i, h := range header {
		name := strings.TrimSpace(cell(h))
		if name == "" {
			continue
		}
		if i < len(row) {
			rec[name] = cell(row[i])
		} else {
			rec[name] = ""
		}
	}
	return rec
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// columnLetter converts a 1-based column number to its A1 letters.
func columnLetter(n int) string {
	if n <= 0 {
		return "A"
	}
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}
