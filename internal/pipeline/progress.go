package pipeline

import (
	"sync"
	"time"
)

// Stage names the pipeline phase a progress snapshot belongs to.
type Stage string

const (
	StageScan    Stage = "scan"
	StageProcess Stage = "process"
	StageReport  Stage = "report"
)

// Progress is a point-in-time view of the run. It is published per file and
// per batch; consumers must treat it as a value.
type Progress struct {
	Stage        Stage   `json:"stage"`
	CurrentFile  string  `json:"current_file,omitempty"`
	TotalFiles   int     `json:"total_files"`
	Processed    int     `json:"processed_files"`
	CurrentBatch int     `json:"current_batch"`
	TotalBatches int     `json:"total_batches"`
	Success      int     `json:"success"`
	Failed       int     `json:"failed"`
	Skipped      int     `json:"skipped"`
	FilesPerMin  float64 `json:"files_per_min"`
	LastUpdate   string  `json:"last_update"`
}

// Publisher receives progress snapshots. Implementations must not block;
// the orchestrator calls Publish inline between files.
type Publisher interface {
	Publish(p Progress)
}

// NopPublisher discards all snapshots.
type NopPublisher struct{}

func (NopPublisher) Publish(Progress) {}

// MultiPublisher fans snapshots out to several consumers.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(p Progress) {
	for _, pub := range m {
		pub.Publish(p)
	}
}

// Tracker holds the latest snapshot behind a mutex so pull-based consumers
// (the HTTP progress endpoint) can read it at any time.
type Tracker struct {
	mu     sync.RWMutex
	latest Progress
}

func (t *Tracker) Publish(p Progress) {
	t.mu.Lock()
	t.latest = p
	t.mu.Unlock()
}

// Latest returns the most recently published snapshot.
func (t *Tracker) Latest() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
