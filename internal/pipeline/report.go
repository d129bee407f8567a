package pipeline

import (
	"context"

	"github.com/nordlicht-labs/corpusgraph/pkg/graphstore"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger"
)

// Report is the phase-3 aggregate: journal totals plus graph counts per
// category pair.
type Report struct {
	Total   int
	Success int
	Failed  int
	Skipped int

	SkippedReasons map[string][]string
	Categories     []graphstore.CategoryCount
}

// Report aggregates the journal and, when a graph store is wired, the
// per-category file counts.
func (p *Pipeline) Report(ctx context.Context) (*Report, error) {
	journal, err := OpenJournal(p.cfg.DataDir)
	if err != nil {
		return nil, err
	}

	success, failed, skipped := journal.Counts()
	report := &Report{
		Total:          len(journal.Results()),
		Success:        success,
		Failed:         failed,
		Skipped:        skipped,
		SkippedReasons: journal.skipped,
	}

	if p.store != nil {
		counts, err := p.store.CountByCategory(ctx)
		if err != nil {
			return nil, err
		}
		report.Categories = counts
	}

	p.progress.Publish(Progress{
		Stage:      StageReport,
		Success:    success,
		Failed:     failed,
		Skipped:    skipped,
		LastUpdate: timestamp(),
	})

	return report, nil
}

// Log writes the report through the structured logger.
func (r *Report) Log() {
	logger.Info("Run summary",
		"total", r.Total,
		"success", r.Success,
		"failed", r.Failed,
		"skipped", r.Skipped,
	)
	for reason, files := range r.SkippedReasons {
		logger.Info("Skipped", "reason", reason, "count", len(files))
	}
	for _, c := range r.Categories {
		logger.Info("Category", "l1", c.CategoryL1, "l2", c.CategoryL2, "files", c.Files)
	}
}
