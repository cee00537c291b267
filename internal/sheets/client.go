package sheets

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"churchbot/internal/config"
	"churchbot/internal/retry"

	"github.com/rs/zerolog/log"
)

// Client wraps the Google Sheets service for one spreadsheet. Sheets are
// addressed by title; the empty title means the spreadsheet's first sheet.
// Sheets referenced for the first time are created on demand.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
	res           config.ResilienceConfig

	mu           sync.Mutex
	sheetIDs     map[string]int64 // title -> numeric sheet id
	defaultSheet string
}

func NewClient(ctx context.Context, credentialsFile, spreadsheetID string) (*Client, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	c := &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
		res:           config.DefaultResilienceConfig,
		sheetIDs:      make(map[string]int64),
	}
	if err := c.loadMetadata(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// loadMetadata fetches sheet titles and numeric ids, and resolves which sheet
// the empty title maps to.
func (c *Client) loadMetadata(ctx context.Context) error {
	meta, err := retry.WithRetry(ctx, c.res.SheetRead, func(ctx context.Context) (*sheets.Spreadsheet, error) {
		return c.service.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet metadata: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sh := range meta.Sheets {
		if sh.Properties == nil {
			continue
		}
		c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		if i == 0 {
			c.defaultSheet = sh.Properties.Title
		}
	}
	if c.defaultSheet == "" {
		return fmt.Errorf("spreadsheet %s has no sheets", c.spreadsheetID)
	}
	log.Debug().
		Str("default_sheet", c.defaultSheet).
		Int("sheets", len(c.sheetIDs)).
		Msg("Loaded spreadsheet metadata")
	return nil
}

func (c *Client) title(sheet string) string {
	if sheet == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.defaultSheet
	}
	return sheet
}

// ensureSheet creates the named sheet remotely if it is not known yet.
func (c *Client) ensureSheet(ctx context.Context, title string) error {
	c.mu.Lock()
	_, known := c.sheetIDs[title]
	c.mu.Unlock()
	if known {
		return nil
	}
	return c.CreateSheet(ctx, title)
}

// ReadAll returns every populated row of the named sheet as strings.
func (c *Client) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	title := c.title(sheet)
	if err := c.ensureSheet(ctx, title); err != nil {
		return nil, err
	}

	resp, err := retry.WithRetry(ctx, c.res.SheetRead, func(ctx context.Context) (*sheets.ValueRange, error) {
		return c.service.Spreadsheets.Values.Get(c.spreadsheetID, title).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", title, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			if cell != nil {
				row[j] = fmt.Sprintf("%v", cell)
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// Append adds one row after the sheet's current data.
func (c *Client) Append(ctx context.Context, sheet string, row []string) error {
	title := c.title(sheet)
	if err := c.ensureSheet(ctx, title); err != nil {
		return err
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(row)}}
	_, err := retry.WithRetry(ctx, c.res.SheetWrite, func(ctx context.Context) (struct{}, error) {
		_, err := c.service.Spreadsheets.Values.Append(c.spreadsheetID, title+"!A1", valueRange).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to append row to %q: %w", title, err)
	}
	return nil
}

// UpdateRow overwrites the given 1-based row starting at column A.
func (c *Client) UpdateRow(ctx context.Context, sheet string, rowNumber int, row []string) error {
	title := c.title(sheet)
	valueRange := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(row)}}

	_, err := retry.WithRetry(ctx, c.res.SheetWrite, func(ctx context.Context) (struct{}, error) {
		_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A%d", title, rowNumber), valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to update row %d in %q: %w", rowNumber, title, err)
	}
	return nil
}

// SetHeaderCell writes value into row 1 at the given 1-based column index.
func (c *Client) SetHeaderCell(ctx context.Context, sheet string, index int, value string) error {
	title := c.title(sheet)
	valueRange := &sheets.ValueRange{Values: [][]interface{}{{value}}}

	_, err := retry.WithRetry(ctx, c.res.SheetWrite, func(ctx context.Context) (struct{}, error) {
		_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!%s1", title, columnLetter(index)), valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to set header cell %d in %q: %w", index, title, err)
	}
	return nil
}

// CreateSheet adds a new sheet with the given title to the spreadsheet.
func (c *Client) CreateSheet(ctx context.Context, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	resp, err := retry.WithRetry(ctx, c.res.SheetWrite, func(ctx context.Context) (*sheets.BatchUpdateSpreadsheetResponse, error) {
		return c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", title, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range resp.Replies {
		if r.AddSheet != nil && r.AddSheet.Properties != nil {
			c.sheetIDs[r.AddSheet.Properties.Title] = r.AddSheet.Properties.SheetId
		}
	}
	log.Info().Str("sheet", title).Msg("Created new worksheet")
	return nil
}

// DeleteRow removes the given 1-based row from the named sheet.
func (c *Client) DeleteRow(ctx context.Context, sheet string, rowNumber int) error {
	title := c.title(sheet)
	c.mu.Lock()
	sheetID, known := c.sheetIDs[title]
	c.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown sheet %q", title)
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowNumber - 1),
					EndIndex:   int64(rowNumber),
				},
			},
		}},
	}
	_, err := retry.WithRetry(ctx, c.res.SheetWrite, func(ctx context.Context) (struct{}, error) {
		_, err := c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to delete row %d from %q: %w", rowNumber, title, err)
	}
	return nil
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// columnLetter converts a 1-based column index to its A1-notation letters.
func columnLetter(index int) string {
	letters := ""
	for index > 0 {
		index--
		letters = string(rune('A'+index%26)) + letters
		index /= 26
	}
	return letters
}
