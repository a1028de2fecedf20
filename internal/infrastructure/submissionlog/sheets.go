// Package submissionlog provides the append-only sinks that record submitted offers.
package submissionlog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vendedor360/backend/internal/domain"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// TimestampLayout is the timestamp format written to the log
const TimestampLayout = "2006-01-02 15:04:05"

// SheetsConfig configures the Google Sheets sink
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	// Range is the A1 range whose table rows are appended to, e.g. "Hoja 1!A:E"
	Range       string
	MaxAttempts int
}

// SheetsLog appends submission records as spreadsheet rows
type SheetsLog struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
	maxAttempts   int

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSheetsLog creates a Sheets sink authenticated with the service account in cfg.CredentialsFile.
// Extra client options are appended after the credentials.
func NewSheetsLog(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (*SheetsLog, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if cfg.Range == "" {
		cfg.Range = "A:E"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsLog{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		writeRange:    cfg.Range,
		maxAttempts:   cfg.MaxAttempts,
		sleep:         sleepContext,
	}, nil
}

// Append writes one row: timestamp, code, description, price, status label.
// Only quota errors (429) are retried. Append is not idempotent, so a server
// error that may already have written the row is returned as is.
func (s *SheetsLog) Append(ctx context.Context, record domain.SubmissionRecord) error {
	row := &sheets.ValueRange{
		Values: [][]interface{}{{
			record.Timestamp.Format(TimestampLayout),
			literal(record.ProductCode),
			literal(record.Description),
			record.Price.String(),
			literal(record.StatusLabel),
		}},
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		_, err := s.service.Spreadsheets.Values.
			Append(s.spreadsheetID, s.writeRange, row).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == s.maxAttempts {
			break
		}
		if err := s.sleep(ctx, exponentialBackoff(attempt)); err != nil {
			return fmt.Errorf("sheets append: %w", err)
		}
	}

	return fmt.Errorf("sheets append: %w", lastErr)
}

// isRetryable reports whether the API rejected the write for quota
func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests
}

// literal keeps USER_ENTERED from evaluating text as a formula
func literal(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

// exponentialBackoff returns the wait before retry attempt+1: 500ms, 1s, 2s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
