// Package google mirrors saved expenses into a Google Sheets spreadsheet, one
// tab per year.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensebot/internal/core"
	"expensebot/internal/log"
)

type Config struct {
	SpreadsheetID string
	// SheetName is the tab base name; the expense year is prefixed, e.g. "2026 Expenses".
	SheetName string
	// CredentialsJSON or CredentialsFile hold a service account key.
	CredentialsJSON string
	CredentialsFile string
	Timeout         time.Duration
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	timeout       time.Duration
	logger        *log.Logger
}

// New authenticates with a service account. Extra options are appended after the
// credentials, which lets tests point the client at a local endpoint.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Expenses"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	options := opts
	if len(options) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		options = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: id,
		sheetBase:     base,
		timeout:       timeout,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// MirrorExpense appends e as one row on the tab for its year.
func (c *Client) MirrorExpense(ctx context.Context, user core.User, e core.ExpenseRecord) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sheet := yearPrefixedName(c.sheetBase, e.Date.Year())
	rng := fmt.Sprintf("%s!A:I", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{Row(user, e)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Expense mirrored",
		log.FieldOperation, log.OpAppend,
		log.FieldExpenseID, e.ID,
		"range", updated,
	)
	return nil
}

// Row renders e as: date, user id, user name, amount, category, merchant,
// description, items, expense id.
func Row(user core.User, e core.ExpenseRecord) []any {
	return []any{
		e.Date.String(),
		user.ID,
		user.Name,
		e.Amount.StringFixed(2),
		string(e.Category),
		e.Merchant,
		e.Description,
		strings.Join(e.Items, ", "),
		strconv.FormatInt(e.ID, 10),
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
