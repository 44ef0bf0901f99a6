package models

import "time"

// CheckpointManifest is the JSON sidecar stored next to a checkpoint table.
// It ties each checkpointed row to the input record it was generated from.
type CheckpointManifest struct {
	RunID        string    `json:"run_id"`
	Profile      string    `json:"profile"`
	Columns      []string  `json:"columns"`
	CreatedAt    time.Time `json:"created_at"`
	LastSavedAt  time.Time `json:"last_saved_at"`
	Rows         int       `json:"rows"`
	Fingerprints []string  `json:"fingerprints"` // One per row, same order as the table
}
