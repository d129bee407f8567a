package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaptinlin/jsonrepair"

	"github.com/nordlicht-labs/corpusgraph/pkg/common"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger"
)

const (
	resultsFile  = "results.json"
	skippedFile  = "skipped.json"
	progressFile = "progress.json"
)

// journalState is the on-disk shape of results.json.
type journalState struct {
	Total      int                        `json:"total"`
	Success    int                        `json:"success"`
	Failed     int                        `json:"failed"`
	Skipped    int                        `json:"skipped"`
	LastUpdate string                     `json:"last_update"`
	Results    []common.FileProcessResult `json:"results"`
}

// progressState is the on-disk shape of progress.json.
type progressState struct {
	TotalFiles     int    `json:"total_files"`
	ProcessedFiles int    `json:"processed_files"`
	CurrentBatch   int    `json:"current_batch"`
	TotalBatches   int    `json:"total_batches"`
	LastUpdate     string `json:"last_update"`
}

// Journal is the single-writer results journal for phase 2. It accumulates
// per-file results in memory and flushes them atomically after each batch
// and on every exit path. A previous run's journal is loaded on open so
// resume sees earlier successes.
type Journal struct {
	dir     string
	state   journalState
	skipped map[string][]string
	seen    map[string]struct{}
}

// OpenJournal loads the journal from dir, creating the directory if needed.
// A torn or truncated results.json from a crashed run is repaired when
// possible and discarded otherwise; losing the journal only costs
// re-processing, the graph store still carries the resume set.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir journal dir: %w", err)
	}

	j := &Journal{
		dir:     dir,
		skipped: make(map[string][]string),
		seen:    make(map[string]struct{}),
	}

	raw, err := os.ReadFile(filepath.Join(dir, resultsFile))
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	if err := json.Unmarshal(raw, &j.state); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(string(raw))
		if rerr != nil || json.Unmarshal([]byte(repaired), &j.state) != nil {
			logger.Warn("Journal unreadable, starting fresh", "err", err)
			j.state = journalState{}
		} else {
			logger.Warn("Journal had a torn write, repaired", "results", len(j.state.Results))
		}
	}

	for _, r := range j.state.Results {
		j.seen[r.FileID] = struct{}{}
		if r.Status == common.StatusSkipped {
			reason := r.Error
			if reason == "" {
				reason = "unknown"
			}
			j.skipped[reason] = append(j.skipped[reason], r.Name)
		}
	}

	return j, nil
}

// Append records one result. Appends are in processing order; a file id
// already present in the journal is recorded again only if its previous
// status was not success (a retried failure overwrites nothing, it appends).
func (j *Journal) Append(res common.FileProcessResult) {
	j.state.Results = append(j.state.Results, res)
	j.state.Total++
	switch res.Status {
	case common.StatusSuccess:
		j.state.Success++
	case common.StatusFailed:
		j.state.Failed++
	case common.StatusSkipped:
		j.state.Skipped++
		reason := res.Error
		if reason == "" {
			reason = "unknown"
		}
		j.skipped[reason] = append(j.skipped[reason], res.Name)
	}
	j.state.LastUpdate = timestamp()
	j.seen[res.FileID] = struct{}{}
}

// Has reports whether any result for the file id is already journaled.
func (j *Journal) Has(fileID string) bool {
	_, ok := j.seen[fileID]
	return ok
}

// SuccessIDs returns the ids journaled with status success, for the resume
// set.
func (j *Journal) SuccessIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, r := range j.state.Results {
		if r.Status == common.StatusSuccess {
			ids[r.FileID] = struct{}{}
		}
	}
	return ids
}

// Counts returns the running success, failed and skipped totals.
func (j *Journal) Counts() (success, failed, skipped int) {
	return j.state.Success, j.state.Failed, j.state.Skipped
}

// Results returns the journaled records in append order.
func (j *Journal) Results() []common.FileProcessResult {
	return j.state.Results
}

// Flush writes results.json and skipped.json atomically.
func (j *Journal) Flush() error {
	if err := writeJSONAtomic(filepath.Join(j.dir, resultsFile), j.state); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(j.dir, skippedFile), j.skipped); err != nil {
		return fmt.Errorf("flush skipped: %w", err)
	}
	return nil
}

// WriteProgress persists the progress checkpoint next to the journal.
func (j *Journal) WriteProgress(p Progress) error {
	state := progressState{
		TotalFiles:     p.TotalFiles,
		ProcessedFiles: p.Processed,
		CurrentBatch:   p.CurrentBatch,
		TotalBatches:   p.TotalBatches,
		LastUpdate:     timestamp(),
	}
	return writeJSONAtomic(filepath.Join(j.dir, progressFile), state)
}

func writeJSONAtomic(path string, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
