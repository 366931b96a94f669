package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"breachstudy/internal/errors"
)

// Manifest is the JSON-persisted record of one pipeline run: which stages
// ran, how long they took, and what data they produced.
type Manifest struct {
	mu sync.Mutex

	RunID       string           `json:"run_id"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time,omitempty"`
	Status      string           `json:"status"`
	Stages      []StageExecution `json:"stages"`
	Produced    []string         `json:"produced"`
	Error       string           `json:"error,omitempty"`
	LastUpdated time.Time        `json:"last_updated"`
}

// StageExecution records one stage run inside a manifest
type StageExecution struct {
	StageID   string    `json:"stage_id"`
	StageName string    `json:"stage_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`
	Status    string    `json:"status"`
	Outputs   []string  `json:"outputs,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewManifest starts a manifest for a run
func NewManifest(runID string) *Manifest {
	now := time.Now().UTC()
	return &Manifest{
		RunID:       runID,
		StartTime:   now,
		Status:      StatusRunning,
		LastUpdated: now,
	}
}

// RecordStage appends a stage execution record
func (m *Manifest) RecordStage(exec StageExecution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stages = append(m.Stages, exec)
	if exec.Status == StatusCompleted {
		m.Produced = append(m.Produced, exec.Outputs...)
	}
	m.LastUpdated = time.Now().UTC()
}

// Finish marks the run completed or failed
func (m *Manifest) Finish(runErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now().UTC()
	m.LastUpdated = m.EndTime
	if runErr != nil {
		m.Status = StatusFailed
		m.Error = runErr.Error()
		return
	}
	m.Status = StatusCompleted
}

// Save writes the manifest as indented JSON under dir
func (m *Manifest) Save(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewStorageError("failed to create run directory", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.NewStorageError("failed to marshal manifest", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewStorageError("failed to write manifest", err)
	}
	return nil
}

// LoadManifest reads a manifest saved under dir
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, errors.NewStorageError("failed to read manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.NewParsingError("failed to unmarshal manifest", err)
	}
	return &m, nil
}
