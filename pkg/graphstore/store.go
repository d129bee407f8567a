// Package graphstore defines the property-graph persistence surface for
// processed files. The concrete Neo4j implementation lives in the neo4j
// subpackage.
package graphstore

import (
	"context"

	"github.com/nordlicht-labs/corpusgraph/pkg/common"
)

// FileRecord is everything persisted for one processed file.
type FileRecord struct {
	common.FileDescriptor
	Capsule        common.Capsule
	Classification common.Classification
}

// CategoryCount is one (L1, L2) bucket with its file count.
type CategoryCount struct {
	CategoryL1 string
	CategoryL2 string
	Files      int64
}

// Store persists the L1Category -> L2Category -> File graph.
//
// EnsureSchema is idempotent and must be called before the first upsert.
// UpsertFile is idempotent per file id: repeating it never duplicates
// nodes or edges, and a changed classification moves the file to its new
// L2 parent. ProcessedFileIDs feeds resume: ids already in the graph are
// not reprocessed.
type Store interface {
	EnsureSchema(ctx context.Context) error
	UpsertFile(ctx context.Context, rec FileRecord) error
	ProcessedFileIDs(ctx context.Context) (map[string]struct{}, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
	Close(ctx context.Context) error
}
