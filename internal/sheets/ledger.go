package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/ledger"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// SpreadsheetIDKey is the key the id of a spreadsheet created by the ledger
// is stored under.
const SpreadsheetIDKey = "ledger_spreadsheet_id"

// Ledger implements service.Ledger on a spreadsheet with one tab per entity type.
type Ledger struct {
	api           SpreadsheetAPI
	kv            service.KeyValueStore
	logger        *slog.Logger
	tabIDs        map[model.EntityType]int64
	newID         func() string
	config        Config
	spreadsheetID string
	mu            sync.Mutex
}

var _ service.Ledger = (*Ledger)(nil)

// NewLedger creates a ledger backed by the Google Sheets API. When config
// names no spreadsheet, the one created on first use is remembered in kv so
// every later process writes to the same spreadsheet.
func NewLedger(ctx context.Context, config Config, kv service.KeyValueStore, logger *slog.Logger) (*Ledger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return NewLedgerWithAPI(&serviceAPI{srv: srv}, config, kv, logger), nil
}

// NewLedgerWithAPI creates a ledger over an arbitrary SpreadsheetAPI. kv may
// be nil, in which case a created spreadsheet is only known to this Ledger.
func NewLedgerWithAPI(api SpreadsheetAPI, config Config, kv service.KeyValueStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		api:           api,
		kv:            kv,
		config:        config,
		logger:        common.OrDefault(logger),
		spreadsheetID: config.SpreadsheetID,
		tabIDs:        make(map[model.EntityType]int64),
		newID:         uuid.NewString,
	}
}

// CreateRecord appends a row for fields. A record whose id is already present
// is overwritten in place, so replaying a create is harmless.
func (l *Ledger) CreateRecord(ctx context.Context, entity model.EntityType, fields model.Record) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tab, err := l.ensureTab(ctx, entity)
	if err != nil {
		return "", err
	}

	rec := copyRecord(fields)
	id := rec.ID()
	if id == "" {
		id = l.newID()
		rec[model.RecordIDKey] = id
	}

	row, err := l.findRow(ctx, tab, id)
	if err != nil {
		return "", err
	}
	if row >= 0 {
		l.logger.Debug("Record already on ledger, overwriting", "entity", entity, "id", id)
		return id, l.call(ctx, func() error {
			return l.api.Write(ctx, l.spreadsheetID, tab.RowRange(row), [][]any{tab.row(rec)})
		})
	}

	err = l.call(ctx, func() error {
		return l.api.Append(ctx, l.spreadsheetID, tab.Title+"!A1", [][]any{tab.row(rec)})
	})
	if err != nil {
		return "", fmt.Errorf("failed to append %s %s: %w", entity, id, err)
	}
	return id, nil
}

// UpdateRecord rewrites the row holding id.
func (l *Ledger) UpdateRecord(ctx context.Context, entity model.EntityType, id string, fields model.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tab, err := l.ensureTab(ctx, entity)
	if err != nil {
		return err
	}
	row, err := l.findRow(ctx, tab, id)
	if err != nil {
		return err
	}
	if row < 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ledger.ErrRecordNotFound)
	}

	rec := copyRecord(fields)
	rec[model.RecordIDKey] = id
	return l.call(ctx, func() error {
		return l.api.Write(ctx, l.spreadsheetID, tab.RowRange(row), [][]any{tab.row(rec)})
	})
}

// DeleteRecord removes the row holding id.
func (l *Ledger) DeleteRecord(ctx context.Context, entity model.EntityType, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tab, err := l.ensureTab(ctx, entity)
	if err != nil {
		return err
	}
	row, err := l.findRow(ctx, tab, id)
	if err != nil {
		return err
	}
	if row < 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ledger.ErrRecordNotFound)
	}

	tabID := l.tabIDs[entity]
	return l.call(ctx, func() error {
		return l.api.DeleteRow(ctx, l.spreadsheetID, tabID, row)
	})
}

// ListRecords returns every data row of the entity's tab.
func (l *Ledger) ListRecords(ctx context.Context, entity model.EntityType) ([]model.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tab, err := l.ensureTab(ctx, entity)
	if err != nil {
		return nil, err
	}

	var rows [][]any
	err = l.call(ctx, func() error {
		var readErr error
		rows, readErr = l.api.Read(ctx, l.spreadsheetID, tab.Range())
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tab.Title, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]model.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := record(header, row)
		if rec.ID() == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ensureTab resolves the spreadsheet and the entity's tab, creating either
// when missing. Callers hold l.mu.
func (l *Ledger) ensureTab(ctx context.Context, entity model.EntityType) (Tab, error) {
	tab, err := TabFor(entity)
	if err != nil {
		return Tab{}, err
	}
	if _, ok := l.tabIDs[entity]; ok {
		return tab, nil
	}

	if l.spreadsheetID == "" {
		id, resolveErr := l.resolveSpreadsheet(ctx)
		if resolveErr != nil {
			return Tab{}, resolveErr
		}
		l.spreadsheetID = id
	}

	var tabs map[string]int64
	err = l.call(ctx, func() error {
		var tabsErr error
		tabs, tabsErr = l.api.Tabs(ctx, l.spreadsheetID)
		return tabsErr
	})
	if err != nil {
		return Tab{}, fmt.Errorf("unable to access spreadsheet %s: %w", l.spreadsheetID, err)
	}

	tabID, ok := tabs[tab.Title]
	if !ok {
		err = l.call(ctx, func() error {
			var addErr error
			tabID, addErr = l.api.AddTab(ctx, l.spreadsheetID, tab.Title)
			return addErr
		})
		if err != nil {
			return Tab{}, fmt.Errorf("unable to add tab %s: %w", tab.Title, err)
		}
		err = l.call(ctx, func() error {
			return l.api.Write(ctx, l.spreadsheetID, tab.RowRange(0), [][]any{tab.header()})
		})
		if err != nil {
			return Tab{}, fmt.Errorf("unable to write %s header: %w", tab.Title, err)
		}
		l.logger.Info("Created ledger tab", "tab", tab.Title)
	}

	l.tabIDs[entity] = tabID
	return tab, nil
}

// resolveSpreadsheet returns the remembered spreadsheet id, creating and
// remembering a spreadsheet when there is none. The lookup and creation run
// inside one store update so concurrent processes agree on a single id.
func (l *Ledger) resolveSpreadsheet(ctx context.Context) (string, error) {
	if l.kv == nil {
		return l.createSpreadsheet(ctx)
	}

	var id string
	err := l.kv.Update(ctx, SpreadsheetIDKey, func(current []byte) ([]byte, error) {
		if saved := strings.TrimSpace(string(current)); saved != "" {
			id = saved
			return current, nil
		}
		created, err := l.createSpreadsheet(ctx)
		if err != nil {
			return nil, err
		}
		id = created
		return []byte(created), nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (l *Ledger) createSpreadsheet(ctx context.Context) (string, error) {
	var id string
	err := l.call(ctx, func() error {
		var createErr error
		id, createErr = l.api.Create(ctx, l.config.SpreadsheetName, l.config.TimeZone)
		return createErr
	})
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}
	l.logger.Info("Created new spreadsheet", "id", id, "name", l.config.SpreadsheetName)
	return id, nil
}

// findRow returns the 0-based row index holding id, or -1.
func (l *Ledger) findRow(ctx context.Context, tab Tab, id string) (int, error) {
	var rows [][]any
	err := l.call(ctx, func() error {
		var readErr error
		rows, readErr = l.api.Read(ctx, l.spreadsheetID, tab.IDRange())
		return readErr
	})
	if err != nil {
		return -1, fmt.Errorf("failed to read %s ids: %w", tab.Title, err)
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && cell(rows[i][0]) == id {
			return i, nil
		}
	}
	return -1, nil
}

func (l *Ledger) call(ctx context.Context, fn func() error) error {
	attempts := l.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	opts := service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: l.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	return common.WithRetry(ctx, func() error {
		return classify(fn())
	}, opts)
}

func copyRecord(r model.Record) model.Record {
	out := make(model.Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}
