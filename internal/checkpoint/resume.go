package checkpoint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/lamim/cardforge/pkg/models"
)

// ErrSchemaMismatch means an existing checkpoint cannot seed the current run
var ErrSchemaMismatch = errors.New("checkpoint does not match the current run")

// Resume loads the checkpointed prefix for records. A missing checkpoint starts
// fresh. A checkpoint that does not match the current columns or inputs is backed
// up and the run starts over; only unexpected I/O failures are returned as errors.
func (s *Store) Resume(records []models.InputRecord) ([]models.ResultRecord, error) {
	if !s.Enabled() {
		return nil, nil
	}

	rows, manifest, err := s.load(records)
	if err == nil {
		s.mu.Lock()
		s.manifest = manifest
		s.mu.Unlock()
		if len(rows) > 0 {
			s.logger.Info("Resuming from checkpoint", "path", s.path, "completed", len(rows), "total", len(records))
		}
		return rows, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("No checkpoint found, starting fresh", "path", s.path)
		return nil, nil
	}

	if !errors.Is(err, ErrSchemaMismatch) {
		return nil, err
	}

	backupPath, berr := Backup(s.path, s.now())
	if berr != nil {
		return nil, fmt.Errorf("%v: %w", err, berr)
	}
	s.logger.Warn("Checkpoint discarded, starting fresh",
		"reason", err,
		"backup", backupPath)
	return nil, nil
}

func (s *Store) load(records []models.InputRecord) ([]models.ResultRecord, *models.CheckpointManifest, error) {
	header, rows, err := ReadRows(s.path)
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		return nil, nil, err
	}
	if header == nil {
		return nil, nil, nil
	}

	if !sameColumns(header, s.columns) {
		return nil, nil, fmt.Errorf("%w: columns %v, expected %v", ErrSchemaMismatch, header, s.columns)
	}
	if len(rows) > len(records) {
		return nil, nil, fmt.Errorf("%w: %d checkpointed rows for %d input records", ErrSchemaMismatch, len(rows), len(records))
	}

	manifest, err := LoadManifest(s.path)
	if err != nil {
		s.logger.Warn("Ignoring unreadable checkpoint manifest", "error", err)
		manifest = nil
	}
	if manifest != nil {
		n := len(manifest.Fingerprints)
		if n > len(rows) {
			n = len(rows)
		}
		for i := 0; i < n; i++ {
			if manifest.Fingerprints[i] != Fingerprint(records[i]) {
				return nil, nil, fmt.Errorf("%w: input record %d differs from the checkpointed one", ErrSchemaMismatch, i+1)
			}
		}
	}

	return rows, manifest, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Summary describes a checkpoint on disk
type Summary struct {
	Path     string
	Columns  []string
	Rows     int
	Degraded int // Rows carrying at least one sentinel
	Manifest *models.CheckpointManifest
}

// Inspect reads a checkpoint and its manifest without modifying them
func Inspect(path string) (*Summary, error) {
	header, rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Path:     path,
		Columns:  header,
		Rows:     len(rows),
		Manifest: manifest,
	}
	for _, row := range rows {
		if row.HasSentinel() {
			summary.Degraded++
		}
	}
	return summary, nil
}

// Progress returns the completion percentage against a total record count
func (s *Summary) Progress(total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(s.Rows) / float64(total) * 100.0
}
