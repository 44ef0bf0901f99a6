package checkpoint

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/cardforge/internal/metrics"
	"github.com/lamim/cardforge/pkg/models"
)

// ManifestSuffix is appended to the checkpoint path to name its manifest
const ManifestSuffix = ".meta.json"

// Store persists the result accumulator of a run as a CSV table plus a JSON manifest.
// An empty path disables checkpointing.
type Store struct {
	path     string
	profile  string
	columns  []string
	interval int // Save every N records
	counter  int // Records since last save
	manifest *models.CheckpointManifest
	mu       sync.Mutex
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates a checkpoint store for one profile's export columns
func NewStore(path, profileName string, columns []string, interval int, logger *slog.Logger) *Store {
	if interval < 1 {
		interval = 1
	}
	return &Store{
		path:     path,
		profile:  profileName,
		columns:  append([]string(nil), columns...),
		interval: interval,
		metrics:  metrics.NewCollector(logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled reports whether the store writes anything
func (s *Store) Enabled() bool {
	return s.path != ""
}

// Path returns the checkpoint table path
func (s *Store) Path() string {
	return s.path
}

// ManifestPath returns the manifest sidecar path for a checkpoint table
func ManifestPath(path string) string {
	return path + ManifestSuffix
}

// MarkRecordComplete counts one appended record and saves every interval records
func (s *Store) MarkRecordComplete(rows []models.ResultRecord, records []models.InputRecord) error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	s.counter++
	shouldSave := s.counter >= s.interval
	if shouldSave {
		s.counter = 0
	}
	s.mu.Unlock()

	if shouldSave {
		return s.Save(rows, records)
	}
	return nil
}

// Save writes the full accumulator and its manifest synchronously
func (s *Store) Save(rows []models.ResultRecord, records []models.InputRecord) error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(rows) > len(records) {
		return fmt.Errorf("cannot checkpoint %d rows for %d input records", len(rows), len(records))
	}

	if err := WriteRows(s.path, s.columns, rows); err != nil {
		s.metrics.IncrementCheckpointSave(false)
		return err
	}

	now := s.now()
	if s.manifest == nil {
		s.manifest = &models.CheckpointManifest{
			RunID:     uuid.New().String(),
			Profile:   s.profile,
			CreatedAt: now,
		}
	}
	s.manifest.Columns = append([]string(nil), s.columns...)
	s.manifest.LastSavedAt = now
	s.manifest.Rows = len(rows)
	s.manifest.Fingerprints = make([]string, len(rows))
	for i := range rows {
		s.manifest.Fingerprints[i] = Fingerprint(records[i])
	}

	if err := writeManifest(ManifestPath(s.path), s.manifest); err != nil {
		s.metrics.IncrementCheckpointSave(false)
		return err
	}

	s.metrics.IncrementCheckpointSave(true)
	s.logger.Debug("Checkpoint saved", "path", s.path, "rows", len(rows))
	return nil
}

// Clear removes the checkpoint table and its manifest
func (s *Store) Clear() error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []string{s.path, ManifestPath(s.path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	s.manifest = nil
	s.counter = 0
	s.logger.Info("Checkpoint cleared", "path", s.path)
	return nil
}

// Fingerprint identifies an input record inside the manifest
func Fingerprint(rec models.InputRecord) string {
	hash := sha256.Sum256([]byte(rec.Front + "\x1f" + rec.Back))
	return fmt.Sprintf("%x", hash[:8]) // First 8 bytes
}

// ReadRows loads a checkpoint table. The header row names the columns.
func ReadRows(path string) ([]string, []models.ResultRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read checkpoint header: %w", err)
	}

	var rows []models.ResultRecord
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read checkpoint row %d: %w", len(rows)+1, err)
		}
		row := make(models.ResultRecord, len(header))
		for i, col := range header {
			row[col] = fields[i]
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

// WriteRows writes a checkpoint table atomically (temp file, then rename)
func WriteRows(path string, columns []string, rows []models.ResultRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write checkpoint header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.Values(columns)); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write checkpoint row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp checkpoint: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}
	return nil
}

// LoadManifest reads the manifest sidecar of a checkpoint table.
// A missing manifest returns nil without error.
func LoadManifest(path string) (*models.CheckpointManifest, error) {
	data, err := os.ReadFile(ManifestPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint manifest: %w", err)
	}

	var m models.CheckpointManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(path string, m *models.CheckpointManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint manifest: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename manifest: %w", err)
	}
	return nil
}

// Backup moves a checkpoint table and its manifest aside under a timestamped name.
// It returns the new table path.
func Backup(path string, now time.Time) (string, error) {
	stamp := now.Format("20060102-150405")
	backupPath := fmt.Sprintf("%s.%s.bak", path, stamp)
	for i := 1; fileExists(backupPath); i++ {
		backupPath = fmt.Sprintf("%s.%s-%d.bak", path, stamp, i)
	}

	if err := os.Rename(path, backupPath); err != nil {
		return "", fmt.Errorf("failed to back up checkpoint: %w", err)
	}

	manifestPath := ManifestPath(path)
	if fileExists(manifestPath) {
		if err := os.Rename(manifestPath, ManifestPath(backupPath)); err != nil {
			return backupPath, fmt.Errorf("failed to back up checkpoint manifest: %w", err)
		}
	}
	return backupPath, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
