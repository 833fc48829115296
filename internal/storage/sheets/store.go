// Package sheets stores job rows in a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	defaultKeyColumn = "B"
	defaultMaxRow    = 1000000
	firstColumn      = "A"
	lastColumn       = "J"
	valueInputOption = "USER_ENTERED"
)

// Config identifies the spreadsheet and the ranges used.
type Config struct {
	SpreadsheetID string
	// Sheet is the tab name. Empty means the first tab.
	Sheet     string
	KeyColumn string
	MaxRow    int
}

// Store reads existing keys from the key column and writes new rows below them.
type Store struct {
	values *gsheets.SpreadsheetsValuesService
	cfg    Config
	logger *zap.Logger
}

// New dials the Sheets API. Credentials come from opts (or the environment).
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger)
}

// NewWithService builds a Store from an existing service.
func NewWithService(svc *gsheets.Service, cfg Config, logger *zap.Logger) (*Store, error) {
	if svc == nil {
		return nil, fmt.Errorf("sheets service is required")
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.KeyColumn == "" {
		cfg.KeyColumn = defaultKeyColumn
	}
	if cfg.MaxRow <= 0 {
		cfg.MaxRow = defaultMaxRow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{values: svc.Spreadsheets.Values, cfg: cfg, logger: logger}, nil
}

// ReadKeys returns the key column, one entry per non-trailing row. Blank cells
// inside the range come back as empty strings.
func (s *Store) ReadKeys(ctx context.Context) ([]string, error) {
	rng := s.a1(fmt.Sprintf("%s1:%s%d", s.cfg.KeyColumn, s.cfg.KeyColumn, s.cfg.MaxRow))
	resp, err := s.values.Get(s.cfg.SpreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rng, err)
	}
	keys := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			keys = append(keys, "")
			continue
		}
		keys = append(keys, fmt.Sprint(row[0]))
	}
	s.logger.Debug("read existing keys", zap.String("range", rng), zap.Int("rows", len(keys)))
	return keys, nil
}

// AppendRows writes rows into A{startRow}:J{MaxRow}.
func (s *Store) AppendRows(ctx context.Context, startRow int, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if startRow < 1 {
		return fmt.Errorf("start row must be >= 1, got %d", startRow)
	}
	rng := s.a1(fmt.Sprintf("%s%d:%s%d", firstColumn, startRow, lastColumn, s.cfg.MaxRow))
	body := &gsheets.ValueRange{Values: rows}
	resp, err := s.values.Update(s.cfg.SpreadsheetID, rng, body).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	s.logger.Info("rows written",
		zap.String("range", rng),
		zap.Int64("updated_rows", resp.UpdatedRows),
	)
	return nil
}

func (s *Store) a1(cells string) string {
	if s.cfg.Sheet == "" {
		return cells
	}
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.cfg.Sheet, "'", "''"), cells)
}
