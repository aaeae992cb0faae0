// Package export writes persisted abnormal records for external reporting.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

var Header = []string{"id", "timestamp", "cpu_usage", "memory_usage", "disk_usage", "temperature"}

// WriteCSV writes a header and one row per record.
func WriteCSV(w io.Writer, recs []domain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			formatFloat(r.CPUUsage),
			formatFloat(r.MemoryUsage),
			formatFloat(r.DiskUsage),
			formatFloat(r.Temperature),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AbnormalCSV queries the store with pred (nil is the default rule) and
// writes the result to path. Any failure is returned as a single error.
func AbnormalCSV(ctx context.Context, st ports.Store, pred ports.RecordPredicate, path string) (int, error) {
	recs, err := st.QueryAbnormal(ctx, pred)
	if err != nil {
		return 0, fmt.Errorf("export abnormal records: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("export abnormal records: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("export abnormal records: %w", err)
	}
	if err := WriteCSV(f, recs); err != nil {
		f.Close()
		return 0, fmt.Errorf("export abnormal records: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("export abnormal records: %w", err)
	}
	return len(recs), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
