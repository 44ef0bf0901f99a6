package writer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/transform"

	"github.com/lamim/cardforge/pkg/models"
)

// fieldNormalizer makes a value safe for a single tab-delimited Anki line
var fieldNormalizer = strings.NewReplacer(
	"\r", "",
	"\n", "<br>",
	"\t", "    ",
)

// NormalizeField removes carriage returns, turns newlines into <br> and tabs into four spaces
func NormalizeField(v string) string {
	return fieldNormalizer.Replace(v)
}

// Export writes one tab-delimited line per result, without a header
func Export(w io.Writer, results []models.ResultRecord, columns []string) (*models.ExportSummary, error) {
	bw := bufio.NewWriter(w)
	summary := &models.ExportSummary{
		Total:   len(results),
		Columns: append([]string(nil), columns...),
	}

	values := make([]string, len(columns))
	for i, row := range results {
		for j, col := range columns {
			values[j] = NormalizeField(row[col])
		}
		if _, err := bw.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", i+1, err)
		}
		if row.HasSentinel() {
			summary.ErrorCount++
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}
	return summary, nil
}

// ExportFile writes the export atomically to path in the given encoding
func ExportFile(path string, results []models.ResultRecord, columns []string, encodingName string) (*models.ExportSummary, error) {
	enc, bom, err := ResolveEncoding(encodingName)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}

	var w io.Writer = file
	var encoder *transform.Writer
	if enc != nil {
		encoder = transform.NewWriter(file, encoderFor(enc))
		w = encoder
	}
	if bom {
		if _, err := file.Write(utf8BOM); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to write byte order mark: %w", err)
		}
	}

	summary, err := Export(w, results, columns)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if encoder != nil {
		if err := encoder.Close(); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to encode export: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to sync export file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close export file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return nil, fmt.Errorf("failed to rename export file: %w", err)
	}

	summary.Path = path
	return summary, nil
}
