package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
)

// GoogleBackend implements Backend over the Google Sheets v4 API with
// service-account credentials.
type GoogleBackend struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewGoogleBackend authenticates with the service-account key file and
// binds to the spreadsheet.
func NewGoogleBackend(ctx context.Context, spreadsheetID, credentialsFile string) (*GoogleBackend, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id not configured")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &GoogleBackend{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// Ping verifies the session is still valid with a minimal metadata read.
func (b *GoogleBackend) Ping(ctx context.Context) error {
	_, err := b.svc.Spreadsheets.Get(b.spreadsheetID).
		Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("spreadsheet ping failed: %w", err)
	}
	return nil
}

// Worksheet resolves a sheet by title. A missing sheet maps to
// ErrSheetNotFound; the values API reports it as an unparseable range.
func (b *GoogleBackend) Worksheet(ctx context.Context, name string) (Worksheet, error) {
	meta, err := b.svc.Spreadsheets.Get(b.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list worksheets: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return &googleWorksheet{backend: b, title: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
}

// AddWorksheet creates a new sheet with the given dimensions.
func (b *GoogleBackend) AddWorksheet(ctx context.Context, name string, rows, cols int) (Worksheet, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: name,
					GridProperties: &sheets.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
			},
		}},
	}
	if _, err := b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("failed to add worksheet %s: %w", name, err)
	}
	return &googleWorksheet{backend: b, title: name}, nil
}

type googleWorksheet struct {
	backend *GoogleBackend
	title   string
}

func (w *googleWorksheet) Values(ctx context.Context) (grid.MonthGrid, error) {
	resp, err := w.backend.svc.Spreadsheets.Values.
		Get(w.backend.spreadsheetID, quoteTitle(w.title)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.title, err)
	}
	g := make(grid.MonthGrid, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%v", v)
		}
		g[i] = cells
	}
	return g, nil
}

func (w *googleWorksheet) UpdateCell(ctx context.Context, row, col int, value string) error {
	rng := fmt.Sprintf("%s!%s", quoteTitle(w.title), grid.CellRef(row, col))
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := w.backend.svc.Spreadsheets.Values.
		Update(w.backend.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

func (w *googleWorksheet) BatchUpdate(ctx context.Context, updates []RangeUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, len(updates))
	for i, u := range updates {
		data[i] = &sheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s", quoteTitle(w.title), u.Range),
			Values: [][]interface{}{{u.Value}},
		}
	}
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	_, err := w.backend.svc.Spreadsheets.Values.
		BatchUpdate(w.backend.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch update of %d cells on %s failed: %w", len(updates), w.title, err)
	}
	return nil
}

func (w *googleWorksheet) Overwrite(ctx context.Context, anchor string, values [][]string) error {
	rows := make([][]interface{}, len(values))
	for i, r := range values {
		row := make([]interface{}, len(r))
		for j, c := range r {
			row[j] = c
		}
		rows[i] = row
	}
	rng := fmt.Sprintf("%s!%s", quoteTitle(w.title), anchor)
	vr := &sheets.ValueRange{Values: rows}
	_, err := w.backend.svc.Spreadsheets.Values.
		Update(w.backend.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to overwrite %s: %w", rng, err)
	}
	return nil
}

// quoteTitle protects sheet titles containing spaces in A1 references.
func quoteTitle(title string) string {
	if strings.ContainsAny(title, " !") {
		return "'" + title + "'"
	}
	return title
}

var _ Backend = (*GoogleBackend)(nil)
