package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// GoogleSource reads and appends worksheets of one Google spreadsheet.
type GoogleSource struct {
	service       *sheetsapi.Service
	spreadsheetID string
}

// NewGoogleSource creates a Sheets API client for the spreadsheet.
func NewGoogleSource(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*GoogleSource, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &GoogleSource{service: service, spreadsheetID: spreadsheetID}, nil
}

// CredentialsOptions returns the client options for a service account key.
// Blank credentials fall back to application default credentials.
func CredentialsOptions(credentialsJSON string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return opts
}

// Values implements Source.
func (g *GoogleSource) Values(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := g.service.Spreadsheets.Values.Get(g.spreadsheetID, a1Range(sheet)).Context(ctx).Do()
	if err != nil {
		return nil, classify(err, "read", sheet)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Append implements Source. Values are written RAW so dates and times keep
// the text the user typed.
func (g *GoogleSource) Append(ctx context.Context, sheet string, row []string) error {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	_, err := g.service.Spreadsheets.Values.Append(g.spreadsheetID, a1Range(sheet), &sheetsapi.ValueRange{
		Values: [][]interface{}{cells},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return classify(err, "append", sheet)
	}
	return nil
}

// a1Range addresses a whole worksheet by name.
func a1Range(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func classify(err error, action, sheet string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest &&
		strings.Contains(apiErr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %s", ErrWorksheetNotFound, sheet)
	}
	return fmt.Errorf("sheets: %s %s: %w", action, sheet, err)
}
