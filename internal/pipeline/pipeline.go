// Package pipeline orchestrates the three run phases: scan, process,
// report. Files are handled one at a time in inventory order; the external
// calls dominate wall-time and benefit from the back-pressure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nordlicht-labs/corpusgraph/internal/config"
	"github.com/nordlicht-labs/corpusgraph/internal/scan"
	"github.com/nordlicht-labs/corpusgraph/pkg/common"
	"github.com/nordlicht-labs/corpusgraph/pkg/extract"
	"github.com/nordlicht-labs/corpusgraph/pkg/graphstore"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger"
	"github.com/nordlicht-labs/corpusgraph/pkg/remote"
)

const inventoryFile = "inventory.json"

// Downloader is the slice of the remote client phase 2 needs.
type Downloader interface {
	DownloadBytes(ctx context.Context, fileID string) ([]byte, error)
}

// Extractor turns a downloaded file into extraction output.
type Extractor interface {
	Extract(ctx context.Context, path string, ext string) extract.Result
}

// CapsuleGenerator produces the capsule for one file.
type CapsuleGenerator interface {
	Generate(ctx context.Context, fd common.FileDescriptor, res extract.Result) (common.Capsule, error)
}

// Classifier assigns one capsule to a taxonomy pair.
type Classifier interface {
	Classify(ctx context.Context, caps common.Capsule, fd common.FileDescriptor) (common.Classification, error)
}

// Params wires a Pipeline. Store may be nil for a dry run (--no-graph);
// Progress may be nil when nobody subscribes.
type Params struct {
	Config     *config.Config
	Enumerator *scan.Enumerator
	Downloader Downloader
	Extractor  Extractor
	Capsules   CapsuleGenerator
	Classifier Classifier
	Store      graphstore.Store
	Progress   Publisher

	Resume   bool
	MaxFiles int
}

// Pipeline runs the phases. One file at a time, batches sequential;
// cancellation is observed between files.
//
// A Pipeline should be created using New.
type Pipeline struct {
	cfg        *config.Config
	enumerator *scan.Enumerator
	downloader Downloader
	extractor  Extractor
	capsules   CapsuleGenerator
	classifier Classifier
	store      graphstore.Store
	progress   Publisher

	resume   bool
	maxFiles int
}

// New creates a Pipeline from the given parts.
func New(params Params) *Pipeline {
	progress := params.Progress
	if progress == nil {
		progress = NopPublisher{}
	}

	return &Pipeline{
		cfg:        params.Config,
		enumerator: params.Enumerator,
		downloader: params.Downloader,
		extractor:  params.Extractor,
		capsules:   params.Capsules,
		classifier: params.Classifier,
		store:      params.Store,
		progress:   progress,

		resume:   params.Resume,
		maxFiles: params.MaxFiles,
	}
}

// Run executes the selected phases in order.
func (p *Pipeline) Run(ctx context.Context, steps []int) error {
	for _, step := range steps {
		switch step {
		case 1:
			if _, err := p.Scan(ctx); err != nil {
				return fmt.Errorf("phase 1: %w", err)
			}
		case 2:
			if err := p.Process(ctx); err != nil {
				return fmt.Errorf("phase 2: %w", err)
			}
		case 3:
			report, err := p.Report(ctx)
			if err != nil {
				return fmt.Errorf("phase 3: %w", err)
			}
			report.Log()
		default:
			return fmt.Errorf("unknown step %d", step)
		}
	}
	return nil
}

// Scan runs the enumerator and writes the inventory snapshot. In folders
// scan mode the snapshot keeps the tree statistics but drops the per-file
// list.
func (p *Pipeline) Scan(ctx context.Context) (*common.Inventory, error) {
	p.progress.Publish(Progress{Stage: StageScan, LastUpdate: timestamp()})

	inv, err := p.enumerator.Walk(ctx, p.cfg.SpaceID)
	if err != nil {
		return nil, err
	}

	if p.cfg.ScanMode == config.ScanModeFolders {
		inv.AllFiles = []common.FileDescriptor{}
	}

	path := filepath.Join(p.cfg.DataDir, inventoryFile)
	if err := scan.WriteSnapshot(inv, path); err != nil {
		return nil, err
	}
	logger.Info("Inventory snapshot written", "path", path, "files", inv.Files)

	return inv, nil
}

// Process loads the inventory, subtracts the resume set, and runs the
// per-file chain batch by batch. Per-file errors are recorded and never
// abort the batch; auth failures and an unreachable graph store abort the
// phase. The journal is flushed on every exit path.
func (p *Pipeline) Process(ctx context.Context) (err error) {
	inv, err := scan.ReadSnapshot(filepath.Join(p.cfg.DataDir, inventoryFile))
	if err != nil {
		return fmt.Errorf("inventory missing, run phase 1 first: %w", err)
	}

	journal, err := OpenJournal(p.cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := journal.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	if p.store != nil {
		if err := p.store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	pending := p.selectPending(ctx, inv, journal)
	if err := ctx.Err(); err != nil {
		return err
	}

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	totalBatches := (len(pending) + batchSize - 1) / batchSize

	logger.Info("Processing",
		"pending", len(pending),
		"batch_size", batchSize,
		"batches", totalBatches,
	)

	start := time.Now()
	processed := 0

	for bi := 0; bi < totalBatches; bi++ {
		lo := bi * batchSize
		hi := min(lo+batchSize, len(pending))

		for _, fd := range pending[lo:hi] {
			if ctx.Err() != nil {
				logger.Warn("Cancelled, flushing journal", "processed", processed)
				return ctx.Err()
			}

			res, fatal := p.processOne(ctx, fd)
			journal.Append(res)
			processed++
			p.publish(StageProcess, fd.Name, len(pending), processed, bi+1, totalBatches, journal, start)

			if fatal != nil {
				return fatal
			}
		}

		if err := journal.Flush(); err != nil {
			return err
		}
		if err := journal.WriteProgress(p.snapshot(StageProcess, "", len(pending), processed, bi+1, totalBatches, journal, start)); err != nil {
			return err
		}

		success, failed, skipped := journal.Counts()
		logger.Info("Batch done",
			"batch", bi+1,
			"of", totalBatches,
			"success", success,
			"failed", failed,
			"skipped", skipped,
		)
	}

	success, failed, skipped := journal.Counts()
	logger.Info("Processing done", "success", success, "failed", failed, "skipped", skipped)
	return nil
}

// selectPending filters the inventory down to the files phase 2 still has
// to handle, journaling skips for unsupported and empty files.
func (p *Pipeline) selectPending(ctx context.Context, inv *common.Inventory, journal *Journal) []common.FileDescriptor {
	resumed := make(map[string]struct{})
	if p.resume {
		resumed = journal.SuccessIDs()
		if p.store != nil {
			ids, err := p.store.ProcessedFileIDs(ctx)
			if err != nil {
				logger.Warn("Could not read processed ids from graph, resuming from journal only", "err", err)
			} else {
				for id := range ids {
					resumed[id] = struct{}{}
				}
			}
		}
		if len(resumed) > 0 {
			logger.Info("Resuming", "already_processed", len(resumed))
		}
	}

	var pending []common.FileDescriptor
	for _, fd := range inv.AllFiles {
		if _, done := resumed[fd.FileID]; done {
			continue
		}

		if kind := extract.KindForExtension(fd.Extension); kind == common.FileKindUnknown {
			if !journal.Has(fd.FileID) {
				journal.Append(skippedResult(fd, "unsupported extension: "+fd.Extension))
			}
			continue
		}
		if fd.SizeBytes == 0 {
			if !journal.Has(fd.FileID) {
				journal.Append(skippedResult(fd, "empty content"))
			}
			continue
		}

		// The cap limits work taken on, not the skip bookkeeping: keep
		// walking so every unsupported and empty file gets journaled.
		if p.maxFiles > 0 && len(pending) >= p.maxFiles {
			continue
		}
		pending = append(pending, fd)
	}
	return pending
}

// processOne runs the full chain for one file. The second return value is
// non-nil only for run-fatal errors (credentials refused after refresh).
// The temp file is removed on every exit path.
func (p *Pipeline) processOne(ctx context.Context, fd common.FileDescriptor) (common.FileProcessResult, error) {
	start := time.Now()
	res := common.FileProcessResult{FileDescriptor: fd}

	finish := func(status common.ProcessStatus, errMsg string) common.FileProcessResult {
		res.Status = status
		res.Error = errMsg
		res.ProcessingTime = time.Since(start).Seconds()
		return res
	}

	data, err := p.downloader.DownloadBytes(ctx, fd.FileID)
	if err != nil {
		if errors.Is(err, remote.ErrAuth) {
			return finish(common.StatusFailed, err.Error()), err
		}
		logger.Warn("Download failed", "file", fd.Name, "err", err)
		return finish(common.StatusFailed, "download: "+err.Error()), nil
	}

	tmp, err := os.CreateTemp("", "corpusgraph-*."+fd.Extension)
	if err != nil {
		return finish(common.StatusFailed, "temp file: "+err.Error()), nil
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return finish(common.StatusFailed, "temp write: "+err.Error()), nil
	}
	if err := tmp.Close(); err != nil {
		return finish(common.StatusFailed, "temp close: "+err.Error()), nil
	}

	extracted := p.extractor.Extract(ctx, tmpPath, fd.Extension)

	caps, err := p.capsules.Generate(ctx, fd, extracted)
	if err != nil {
		logger.Warn("Capsule failed", "file", fd.Name, "err", err)
		return finish(common.StatusFailed, err.Error()), nil
	}
	res.Capsule = &caps

	cls, err := p.classifier.Classify(ctx, caps, fd)
	res.Classification = &cls
	if err != nil {
		logger.Warn("Classification failed", "file", fd.Name, "err", err)
		return finish(common.StatusFailed, err.Error()), nil
	}

	if p.store != nil {
		rec := graphstore.FileRecord{
			FileDescriptor: fd,
			Capsule:        caps,
			Classification: cls,
		}
		if err := p.store.UpsertFile(ctx, rec); err != nil {
			logger.Warn("Graph upsert failed", "file", fd.Name, "err", err)
			return finish(common.StatusFailed, "graph: "+err.Error()), nil
		}
	}

	logger.Debug("Processed file",
		"file", fd.Name,
		"l1", cls.CategoryL1,
		"l2", cls.CategoryL2,
		"modality", string(caps.Modality),
	)
	return finish(common.StatusSuccess, ""), nil
}

func (p *Pipeline) snapshot(
	stage Stage,
	current string,
	total int,
	processed int,
	batch int,
	totalBatches int,
	journal *Journal,
	start time.Time,
) Progress {
	success, failed, skipped := journal.Counts()

	perMin := 0.0
	if elapsed := time.Since(start).Minutes(); elapsed > 0 {
		perMin = float64(processed) / elapsed
	}

	return Progress{
		Stage:        stage,
		CurrentFile:  current,
		TotalFiles:   total,
		Processed:    processed,
		CurrentBatch: batch,
		TotalBatches: totalBatches,
		Success:      success,
		Failed:       failed,
		Skipped:      skipped,
		FilesPerMin:  perMin,
		LastUpdate:   timestamp(),
	}
}

func (p *Pipeline) publish(
	stage Stage,
	current string,
	total int,
	processed int,
	batch int,
	totalBatches int,
	journal *Journal,
	start time.Time,
) {
	p.progress.Publish(p.snapshot(stage, current, total, processed, batch, totalBatches, journal, start))
}

func skippedResult(fd common.FileDescriptor, reason string) common.FileProcessResult {
	return common.FileProcessResult{
		FileDescriptor: fd,
		Status:         common.StatusSkipped,
		Error:          reason,
	}
}
