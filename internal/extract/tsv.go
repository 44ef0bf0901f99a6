package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lamim/cardforge/internal/profile"
	"github.com/lamim/cardforge/pkg/models"
)

// WriteTSV writes records as a two-column TSV with a front_text/back_text
// header, the layout the input loader reads for enhancement profiles.
func WriteTSV(path string, records []models.InputRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write([]string{profile.FrontKey, profile.BackKey}); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range records {
		if err := w.Write([]string{rec.Front, rec.Back}); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write record %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}
