package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"

	"SmartHome.dashboard/models"
)

// Archiver is a long-term sink for measurements.
type Archiver interface {
	Archive(ctx context.Context, rec models.ArchiveRecord) error
}

// JSONLArchive appends one record per line to archive/messwerte_<year>.jsonl.
type JSONLArchive struct {
	dir string
	mu  sync.Mutex
}

func NewJSONLArchive(dir string) *JSONLArchive {
	return &JSONLArchive{dir: dir}
}

func (a *JSONLArchive) Archive(_ context.Context, rec models.ArchiveRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode archive record: %w", err)
	}
	year := time.Now().Year()
	if ts, err := time.Parse(time.RFC3339, rec.Timestamp); err == nil {
		year = ts.Year()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	f, err := os.OpenFile(a.Path(year), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	_, werr := f.Write(append(line, '\n'))
	return multierr.Append(werr, f.Close())
}

func (a *JSONLArchive) Path(year int) string {
	return filepath.Join(a.dir, fmt.Sprintf("messwerte_%d.jsonl", year))
}

// MultiArchiver writes to every sink and combines their errors.
type MultiArchiver []Archiver

func (m MultiArchiver) Archive(ctx context.Context, rec models.ArchiveRecord) error {
	var err error
	for _, a := range m {
		err = multierr.Append(err, a.Archive(ctx, rec))
	}
	return err
}
