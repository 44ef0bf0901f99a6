// Package input loads the records a run works through from text, delimited
// and spreadsheet files.
package input

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lamim/cardforge/pkg/models"
)

// maxLineSize bounds a single line of a .txt input
const maxLineSize = 1 << 20

// Load reads input records from path. In two-column mode the second column
// becomes the record's back text. Rows with an empty front are skipped.
func Load(path string, twoColumn bool) ([]models.InputRecord, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt":
		return loadText(path, twoColumn)
	case ".csv":
		return loadDelimited(path, ',', twoColumn)
	case ".tsv":
		return loadDelimited(path, '\t', twoColumn)
	case ".xlsx":
		return loadSpreadsheet(path, twoColumn)
	default:
		return nil, fmt.Errorf("unsupported input format %q (expected .txt, .csv, .tsv or .xlsx)", ext)
	}
}

func loadText(path string, twoColumn bool) ([]models.InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []models.InputRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if twoColumn {
			front, back, _ := strings.Cut(line, "\t")
			records = appendRecord(records, front, back)
			continue
		}
		records = appendRecord(records, line, "")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return records, nil
}

func loadDelimited(path string, comma rune, twoColumn bool) ([]models.InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []models.InputRecord
	for row := 0; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input row %d: %w", row+1, err)
		}
		if row == 0 {
			continue // header
		}
		records = appendRecord(records, column(fields, 0), secondColumn(fields, twoColumn))
	}
	return records, nil
}

func loadSpreadsheet(path string, twoColumn bool) ([]models.InputRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	var records []models.InputRecord
	for i, fields := range rows {
		if i == 0 {
			continue // header
		}
		records = appendRecord(records, column(fields, 0), secondColumn(fields, twoColumn))
	}
	return records, nil
}

func appendRecord(records []models.InputRecord, front, back string) []models.InputRecord {
	front = strings.TrimSpace(strings.TrimPrefix(front, "\ufeff"))
	if front == "" {
		return records
	}
	return append(records, models.InputRecord{Front: front, Back: strings.TrimSpace(back)})
}

func column(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func secondColumn(fields []string, twoColumn bool) string {
	if !twoColumn {
		return ""
	}
	return column(fields, 1)
}
