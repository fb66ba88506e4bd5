package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"
)

// SpreadsheetAPI is the subset of the Sheets API the ledger needs. Row
// indexes are 0-based, so row 0 is the header.
type SpreadsheetAPI interface {
	Create(ctx context.Context, title, timeZone string) (string, error)
	Tabs(ctx context.Context, spreadsheetID string) (map[string]int64, error)
	AddTab(ctx context.Context, spreadsheetID, title string) (int64, error)
	Read(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
	Write(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
	DeleteRow(ctx context.Context, spreadsheetID string, tabID int64, row int) error
}

// serviceAPI implements SpreadsheetAPI over the generated Sheets client.
type serviceAPI struct {
	srv *sheets.Service
}

var _ SpreadsheetAPI = (*serviceAPI)(nil)

func (a *serviceAPI) Create(ctx context.Context, title, timeZone string) (string, error) {
	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    title,
			TimeZone: timeZone,
		},
	}
	created, err := a.srv.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.SpreadsheetId, nil
}

func (a *serviceAPI) Tabs(ctx context.Context, spreadsheetID string) (map[string]int64, error) {
	ss, err := a.srv.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	tabs := make(map[string]int64, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			tabs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	return tabs, nil
}

func (a *serviceAPI) AddTab(ctx context.Context, spreadsheetID, title string) (int64, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	resp, err := a.srv.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %q: empty reply", title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (a *serviceAPI) Read(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := a.srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *serviceAPI) Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	_, err := a.srv.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (a *serviceAPI) Write(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	_, err := a.srv.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (a *serviceAPI) DeleteRow(ctx context.Context, spreadsheetID string, tabID int64, row int) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         tabID,
					Dimension:       "ROWS",
					StartIndex:      int64(row),
					EndIndex:        int64(row + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err := a.srv.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}
