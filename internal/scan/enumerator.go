package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nordlicht-labs/corpusgraph/internal/util"
	"github.com/nordlicht-labs/corpusgraph/pkg/common"
	"github.com/nordlicht-labs/corpusgraph/pkg/extract"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger"
	"github.com/nordlicht-labs/corpusgraph/pkg/remote"
)

// maxExamplesPerExtension bounds the sample file names kept per extension in
// the snapshot.
const maxExamplesPerExtension = 3

// Lister is the slice of the remote client the enumerator needs. The
// enumerator is read-only: it never downloads file bodies.
type Lister interface {
	ListChildren(ctx context.Context, folderID string, pageSize int, order string) ([]remote.Entry, error)
}

// Enumerator walks the remote folder tree and produces the inventory
// snapshot that phase 2 consumes.
type Enumerator struct {
	lister     Lister
	spaceID    string
	maxDepth   int
	maxRetries int
	pageSize   int
	pace       time.Duration
}

// NewEnumeratorParams contains configuration for creating an Enumerator.
type NewEnumeratorParams struct {
	Lister     Lister
	SpaceID    string
	MaxDepth   int
	MaxRetries int
	PageSize   int
	Pace       time.Duration
}

// NewEnumerator creates an enumerator. MaxDepth defaults to 10; the
// inter-folder pacing sleep defaults to 200 ms.
func NewEnumerator(params NewEnumeratorParams) *Enumerator {
	maxDepth := params.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pace := params.Pace
	if pace < 0 {
		pace = 0
	} else if pace == 0 {
		pace = 200 * time.Millisecond
	}

	return &Enumerator{
		lister:     params.Lister,
		spaceID:    params.SpaceID,
		maxDepth:   maxDepth,
		maxRetries: maxRetries,
		pageSize:   pageSize,
		pace:       pace,
	}
}

// Walk enumerates the tree under rootID depth-first and returns the
// inventory. A listing failure on a folder is retried, then the folder is
// skipped with a warning; only credential rejection aborts the whole scan.
// Cycles from self-referential folders are cut by a visited-id guard.
func (e *Enumerator) Walk(ctx context.Context, rootID string) (*common.Inventory, error) {
	start := time.Now()
	inv := &common.Inventory{
		Extensions: make(map[string]int),
		Categories: make(map[string]int),
		Examples:   make(map[string][]string),
		AllFiles:   []common.FileDescriptor{},
	}
	visited := make(map[string]struct{})

	if err := e.walkFolder(ctx, rootID, "", 0, visited, inv); err != nil {
		return nil, err
	}

	inv.ScanTime = start.UTC().Format(time.RFC3339)
	logger.Info("Scan completed",
		"folders", inv.Folders,
		"files", inv.Files,
		"total_size", inv.TotalSize,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)

	return inv, nil
}

func (e *Enumerator) walkFolder(
	ctx context.Context,
	folderID string,
	path string,
	depth int,
	visited map[string]struct{},
	inv *common.Inventory,
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if depth > e.maxDepth {
		logger.Warn("Max depth reached, not descending", "folder", folderID, "depth", depth)
		return nil
	}
	if _, seen := visited[folderID]; seen {
		logger.Warn("Folder already visited, skipping cycle", "folder", folderID)
		return nil
	}
	visited[folderID] = struct{}{}

	entries, err := util.RetryWithContext(ctx, e.maxRetries, func(ctx context.Context) ([]remote.Entry, error) {
		return e.lister.ListChildren(ctx, folderID, e.pageSize, "name")
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Rejected credentials will refuse every folder; abort the scan.
		if errors.Is(err, remote.ErrAuth) {
			return fmt.Errorf("listing %s: %w", pathOrRoot(path), err)
		}
		logger.Warn("Listing folder failed, skipping", "folder", folderID, "path", path, "err", err)
		return nil
	}

	inv.Folders++
	logger.Info("Scanning folder", "path", pathOrRoot(path), "entries", len(entries), "depth", depth)

	for _, entry := range entries {
		entryPath := joinPath(path, entry.Name)

		switch entry.Type {
		case remote.EntryTypeFolder:
			if e.pace > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(e.pace):
				}
			}
			if err := e.walkFolder(ctx, entry.ID, entryPath, depth+1, visited, inv); err != nil {
				return err
			}
		case remote.EntryTypeFile:
			e.recordFile(inv, folderID, entryPath, entry)
		default:
			logger.Debug("Unknown entry type, skipping", "id", entry.ID, "type", string(entry.Type))
		}
	}

	return nil
}

func (e *Enumerator) recordFile(inv *common.Inventory, parentID string, path string, entry remote.Entry) {
	ext := entry.Extension
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(entry.Name), ".")
	}
	ext = strings.ToLower(ext)

	size := entry.Size
	if size < 0 {
		size = 0
	}

	fd := common.FileDescriptor{
		FileID:       entry.ID,
		Name:         entry.Name,
		Path:         path,
		Extension:    ext,
		SizeBytes:    size,
		ModifiedTime: entry.ModifiedTime,
		ParentFolder: parentID,
		SpaceID:      e.spaceID,
	}

	inv.Files++
	inv.TotalSize += size
	inv.Extensions[ext]++
	inv.Categories[string(extract.KindForExtension(ext))]++
	if len(inv.Examples[ext]) < maxExamplesPerExtension {
		inv.Examples[ext] = append(inv.Examples[ext], entry.Name)
	}
	inv.AllFiles = append(inv.AllFiles, fd)
}

func pathOrRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func joinPath(parent string, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// WriteSnapshot persists the inventory to path, creating parent directories.
// The write is atomic: a temp file in the same directory is renamed over the
// target so a crashed writer never leaves a torn snapshot.
func WriteSnapshot(inv *common.Inventory, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir snapshot dir: %w", err)
	}

	encoded, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a previously written inventory snapshot.
func ReadSnapshot(path string) (*common.Inventory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	inv := new(common.Inventory)
	if err := json.Unmarshal(raw, inv); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return inv, nil
}
