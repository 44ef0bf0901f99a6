// Package extract pulls front/back pairs out of exported Anki decks so they can
// be fed back into an enhancement profile.
package extract

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lamim/cardforge/pkg/models"
)

// fieldSeparator splits the flds column of an Anki note
const fieldSeparator = "\x1f"

// collectionNames in preference order; anki21 holds the newer schema
var collectionNames = []string{"collection.anki21", "collection.anki2"}

var (
	breakTag = regexp.MustCompile(`(?i)<br\s*/?>|</br>`)
	htmlTag  = regexp.MustCompile(`<[^>]*>`)
)

// ErrNoCollection is returned when the archive carries no readable collection database
var ErrNoCollection = errors.New("no collection database in package")

// Apkg reads the notes of an .apkg package in id order. The first note field
// becomes Front and the second Back. workDir receives the unpacked database;
// an empty workDir uses a temporary directory that is removed afterwards.
func Apkg(ctx context.Context, apkgPath, workDir string) ([]models.InputRecord, error) {
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "cardforge-apkg-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		workDir = tmp
	}

	dbPath, err := unpackCollection(apkgPath, workDir)
	if err != nil {
		return nil, err
	}
	return readNotes(ctx, dbPath)
}

func unpackCollection(apkgPath, workDir string) (string, error) {
	zr, err := zip.OpenReader(apkgPath)
	if err != nil {
		return "", fmt.Errorf("failed to open package: %w", err)
	}
	defer func() { _ = zr.Close() }()

	found := make(map[string]*zip.File)
	for _, f := range zr.File {
		if _, err := safeJoin(workDir, f.Name); err != nil {
			return "", err
		}
		for _, name := range collectionNames {
			if f.Name == name {
				found[name] = f
			}
		}
	}

	for _, name := range collectionNames {
		f, ok := found[name]
		if !ok {
			continue
		}
		dest, err := safeJoin(workDir, f.Name)
		if err != nil {
			return "", err
		}
		if err := extractFile(f, dest); err != nil {
			return "", err
		}
		return dest, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoCollection, apkgPath)
}

// safeJoin resolves an archive entry under base and rejects anything that would escape it
func safeJoin(base, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("invalid archive entry: empty name")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("invalid archive entry %q: absolute path", name)
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return "", fmt.Errorf("invalid archive entry %q: path traversal", name)
		}
	}

	dest := filepath.Join(base, filepath.FromSlash(name))
	rel, err := filepath.Rel(filepath.Clean(base), dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive entry %q: escapes work directory", name)
	}
	return dest, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}
	return nil
}

func readNotes(ctx context.Context, dbPath string) ([]models.InputRecord, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, `SELECT flds FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.InputRecord
	for rows.Next() {
		var flds string
		if err := rows.Scan(&flds); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}

		fields := strings.Split(flds, fieldSeparator)
		front := CleanField(fields[0])
		if front == "" {
			continue
		}
		var back string
		if len(fields) > 1 {
			back = CleanField(fields[1])
		}
		records = append(records, models.InputRecord{Front: front, Back: back})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	return records, nil
}

// CleanField turns an HTML note field into plain text on a single line
func CleanField(v string) string {
	v = breakTag.ReplaceAllString(v, " ")
	v = htmlTag.ReplaceAllString(v, "")
	v = html.UnescapeString(v)
	return strings.Join(strings.Fields(v), " ")
}
