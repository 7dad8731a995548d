package publish

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"wpmu/internal/report"
)

// NewSheetsService creates a Google Sheets client from a service account
// JSON credentials file.
func NewSheetsService(ctx context.Context, credentialsPath string) (*sheets.Service, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	config, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return srv, nil
}

// SheetAPI is the subset of the Sheets API used for exports.
type SheetAPI interface {
	EnsureTab(ctx context.Context, spreadsheetID, title string) error
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

type sheetsValues struct {
	srv *sheets.Service
}

// NewSheetAPI adapts a Sheets service to SheetAPI.
func NewSheetAPI(srv *sheets.Service) SheetAPI {
	return sheetsValues{srv: srv}
}

// EnsureTab adds a tab named title unless the spreadsheet already has one.
func (v sheetsValues) EnsureTab(ctx context.Context, spreadsheetID, title string) error {
	ss, err := v.srv.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return err
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}
	_, err = v.srv.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	return err
}

func (v sheetsValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := v.srv.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := v.srv.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// Sheet writes reports into tabs of a single spreadsheet.
type Sheet struct {
	values        SheetAPI
	spreadsheetID string
}

// NewSheet returns a Sheet targeting spreadsheetID.
func NewSheet(values SheetAPI, spreadsheetID string) *Sheet {
	return &Sheet{values: values, spreadsheetID: spreadsheetID}
}

// Export replaces the contents of tab with the report header and rows,
// creating the tab when it is missing. An empty tab name uses the report kind.
func (s *Sheet) Export(ctx context.Context, tab string, rep *report.Report) error {
	if tab == "" {
		tab = string(rep.Kind)
	}
	rng := fmt.Sprintf("'%s'!A1", tab)
	if err := s.values.EnsureTab(ctx, s.spreadsheetID, tab); err != nil {
		return fmt.Errorf("failed to prepare sheet %s: %w", tab, err)
	}
	if err := s.values.Clear(ctx, s.spreadsheetID, fmt.Sprintf("'%s'", tab)); err != nil {
		return fmt.Errorf("failed to clear sheet %s: %w", tab, err)
	}
	if err := s.values.Update(ctx, s.spreadsheetID, rng, SheetRows(rep)); err != nil {
		return fmt.Errorf("failed to update sheet %s: %w", tab, err)
	}
	return nil
}

// SheetRows lays out the header followed by one row per site. nil cells are
// written as empty strings.
func SheetRows(rep *report.Report) [][]any {
	rows := make([][]any, 0, len(rep.Rows)+1)
	header := make([]any, len(rep.Header))
	for i, h := range rep.Header {
		header[i] = h
	}
	rows = append(rows, header)
	for i := range rep.Rows {
		vals := rep.Values(i)
		for j, v := range vals {
			if v == nil {
				vals[j] = ""
			}
		}
		rows = append(rows, vals)
	}
	return rows
}
