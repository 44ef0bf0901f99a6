package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lamim/cardforge/pkg/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Text(t *testing.T) {
	path := writeFile(t, "words.txt", "\ufeffhello\n\n  take off  \n\t\nworld\r\n")

	records, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, []models.InputRecord{
		{Front: "hello"},
		{Front: "take off"},
		{Front: "world"},
	}, records)
}

func TestLoad_TextTwoColumn(t *testing.T) {
	path := writeFile(t, "cards.txt", "apple\t苹果\npear\nbanana\t香蕉\tyellow\n\t孤儿\n")

	records, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, []models.InputRecord{
		{Front: "apple", Back: "苹果"},
		{Front: "pear"},
		{Front: "banana", Back: "香蕉\tyellow"},
	}, records)
}

func TestLoad_Delimited(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		twoColumn bool
		want      []models.InputRecord
	}{
		{
			name:    "csv single column",
			file:    "words.csv",
			content: "word\nhello\n\"a, b\"\n",
			want:    []models.InputRecord{{Front: "hello"}, {Front: "a, b"}},
		},
		{
			name:      "csv two columns",
			file:      "cards.csv",
			content:   "front,back\napple,苹果\npear\n,orphan\n",
			twoColumn: true,
			want:      []models.InputRecord{{Front: "apple", Back: "苹果"}, {Front: "pear"}},
		},
		{
			name:      "tsv two columns",
			file:      "notes.tsv",
			content:   "front\tback\nhello\t你好\n",
			twoColumn: true,
			want:      []models.InputRecord{{Front: "hello", Back: "你好"}},
		},
		{
			name:    "tsv ignores back in single column mode",
			file:    "notes.tsv",
			content: "front\tback\nhello\t你好\n",
			want:    []models.InputRecord{{Front: "hello"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Load(writeFile(t, tt.file, tt.content), tt.twoColumn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, records)
		})
	}
}

func TestLoad_Spreadsheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "front"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "back"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "apple"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "苹果"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "no front"))
	require.NoError(t, f.SetCellValue(sheet, "A4", "pear"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	records, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, []models.InputRecord{
		{Front: "apple", Back: "苹果"},
		{Front: "pear"},
	}, records)

	records, err = Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, []models.InputRecord{{Front: "apple"}, {Front: "pear"}}, records)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "words.docx", "x"), false)
	assert.ErrorContains(t, err, "unsupported input format")

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"), false)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "broken.xlsx", "not a zip"), false)
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	records, err := Load(writeFile(t, "empty.csv", ""), false)
	require.NoError(t, err)
	assert.Empty(t, records)
}
