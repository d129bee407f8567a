// Package neo4j implements graphstore.Store on a Neo4j database.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nordlicht-labs/corpusgraph/pkg/graphstore"
)

// Store is the Neo4j-backed graph store.
//
// A Store should be created using NewStore.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewStoreParams defines the connection parameters for creating a new
// Store. Database may be empty for the server default.
type NewStoreParams struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewStore connects to Neo4j and verifies connectivity.
func NewStore(ctx context.Context, params NewStoreParams) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		params.URI,
		neo4j.BasicAuth(params.Username, params.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}

	return &Store{
		driver:   driver,
		database: params.Database,
	}, nil
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
	})
}

// EnsureSchema creates the uniqueness constraints. Safe to call on every
// startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	constraints := []string{
		`CREATE CONSTRAINT l1_name IF NOT EXISTS
		 FOR (c:L1Category) REQUIRE c.name IS UNIQUE`,
		`CREATE CONSTRAINT l2_id IF NOT EXISTS
		 FOR (c:L2Category) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT file_id IF NOT EXISTS
		 FOR (f:File) REQUIRE f.file_id IS UNIQUE`,
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	for _, stmt := range constraints {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	return nil
}

// UpsertFile merges the L1 -> L2 -> File chain in one write transaction.
// A file whose classification changed is detached from its previous L2
// parent.
func (s *Store) UpsertFile(ctx context.Context, rec graphstore.FileRecord) error {
	l2ID := graphstore.CategoryL2ID(
		rec.Classification.CategoryL1,
		rec.Classification.CategoryL2,
	)
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MERGE (l1:L1Category {name: $l1_name})
		ON CREATE SET l1.created_at = $now
		ON MATCH SET l1.updated_at = $now
		MERGE (l2:L2Category {id: $l2_id})
		ON CREATE SET l2.created_at = $now
		ON MATCH SET l2.updated_at = $now
		SET l2.name = $l2_name
		MERGE (l1)-[:HAS_SUBCATEGORY]->(l2)
		MERGE (f:File {file_id: $file_id})
		ON CREATE SET f.created_at = $now
		SET f += $props, f.updated_at = $now
		WITH l2, f
		OPTIONAL MATCH (stale:L2Category)-[r:CONTAINS]->(f)
		WHERE stale.id <> $l2_id
		DELETE r
		MERGE (l2)-[:CONTAINS]->(f)
	`
	params := map[string]any{
		"l1_name": rec.Classification.CategoryL1,
		"l2_id":   l2ID,
		"l2_name": rec.Classification.CategoryL2,
		"file_id": rec.FileID,
		"now":     now,
		"props": map[string]any{
			"name":            rec.Name,
			"path":            rec.Path,
			"extension":       rec.Extension,
			"size_bytes":      rec.SizeBytes,
			"mtime":           rec.ModifiedTime,
			"parent_folder":   rec.ParentFolder,
			"space_id":        rec.SpaceID,
			"summary":         rec.Capsule.Summary,
			"keyphrases":      rec.Capsule.Keyphrases,
			"confidence_read": rec.Capsule.ConfidenceRead,
			"modality":        string(rec.Capsule.Modality),
			"kind":            string(rec.Capsule.Kind),
			"capsule_error":   rec.Capsule.Error,
			"category_l1":     rec.Classification.CategoryL1,
			"category_l2":     rec.Classification.CategoryL2,
			"confidence":      rec.Classification.Confidence,
			"evidence":        rec.Classification.Evidence,
		},
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, params)
	})
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", rec.FileID, err)
	}
	return nil
}

// ProcessedFileIDs returns the ids of all File nodes already in the graph.
func (s *Store) ProcessedFileIDs(ctx context.Context) (map[string]struct{}, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (f:File) RETURN f.file_id AS id`, nil)
		if err != nil {
			return nil, err
		}

		ids := make(map[string]struct{})
		for res.Next(ctx) {
			if id, ok := res.Record().Get("id"); ok {
				if s, ok := id.(string); ok {
					ids[s] = struct{}{}
				}
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("processed file ids: %w", err)
	}
	return result.(map[string]struct{}), nil
}

// CountByCategory returns file counts per (L1, L2) bucket, for the run
// report.
func (s *Store) CountByCategory(ctx context.Context) ([]graphstore.CategoryCount, error) {
	query := `
		MATCH (l1:L1Category)-[:HAS_SUBCATEGORY]->(l2:L2Category)-[:CONTAINS]->(f:File)
		RETURN l1.name AS l1, l2.name AS l2, count(f) AS files
		ORDER BY l1, l2
	`

	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		var counts []graphstore.CategoryCount
		for res.Next(ctx) {
			rec := res.Record()
			c := graphstore.CategoryCount{}
			if v, ok := rec.Get("l1"); ok {
				c.CategoryL1, _ = v.(string)
			}
			if v, ok := rec.Get("l2"); ok {
				c.CategoryL2, _ = v.(string)
			}
			if v, ok := rec.Get("files"); ok {
				c.Files, _ = v.(int64)
			}
			counts = append(counts, c)
		}
		return counts, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	return result.([]graphstore.CategoryCount), nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
