package submissionlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vendedor360/backend/internal/domain"
)

// csvHeader is written once, when the file is created
var csvHeader = []string{"timestamp", "product_code", "description", "price", "status_label", "portal", "opportunity_id", "run_id"}

// CSVLog appends submission records to a local CSV file.
// Every append is flushed and synced before it returns.
type CSVLog struct {
	path  string
	mutex sync.Mutex
}

// NewCSVLog creates a CSV sink at path, creating parent directories as needed
func NewCSVLog(path string) (*CSVLog, error) {
	if path == "" {
		return nil, fmt.Errorf("csv log: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv log: %w", err)
	}
	return &CSVLog{path: path}, nil
}

// Append writes one record
func (l *CSVLog) Append(ctx context.Context, record domain.SubmissionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	if err := w.Write([]string{
		record.Timestamp.Format(TimestampLayout),
		record.ProductCode,
		record.Description,
		record.Price.String(),
		record.StatusLabel,
		record.Portal,
		record.OpportunityID,
		record.RunID,
	}); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv log: %w", err)
	}
	return f.Sync()
}
