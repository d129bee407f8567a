// Package classify assigns files to taxonomy categories via the
// classification model and normalizes the result onto the tree.
package classify

import (
	"context"
	"fmt"

	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
	"github.com/nordlicht-labs/corpusgraph/pkg/common"
	"github.com/nordlicht-labs/corpusgraph/pkg/taxonomy"
)

// Classifier maps capsules onto the configured taxonomy.
//
// A Classifier should be created using NewClassifier.
type Classifier struct {
	client ai.Client
	tree   *taxonomy.Taxonomy
	pairs  []ai.CategoryPair
}

// NewClassifier creates a Classifier over the given model client and
// taxonomy. The pair list offered to the model is frozen at construction.
func NewClassifier(client ai.Client, tree *taxonomy.Taxonomy) *Classifier {
	return &Classifier{
		client: client,
		tree:   tree,
		pairs:  tree.Pairs(),
	}
}

// Classify returns the category assignment for one capsule. The returned
// pair is always a member of the taxonomy: model output that is not an
// exact member is normalized onto the tree, evidence preserved. On a model
// error the unclassified pair is returned together with the error so the
// caller can record the file as failed.
func (c *Classifier) Classify(
	ctx context.Context,
	caps common.Capsule,
	fd common.FileDescriptor,
) (common.Classification, error) {
	input := ai.ClassifyInput{
		Summary:    caps.Summary,
		Keyphrases: caps.Keyphrases,
		Meta: ai.FileMeta{
			Name:         fd.Name,
			Path:         fd.Path,
			Extension:    fd.Extension,
			SizeBytes:    fd.SizeBytes,
			ModifiedTime: fd.ModifiedTime,
		},
		Allowed: c.pairs,
	}

	out, err := c.client.Classify(ctx, input)
	if err != nil {
		return common.Classification{
			CategoryL1: taxonomy.Unclassified,
			CategoryL2: taxonomy.Unclassified,
			Confidence: 0,
			Evidence:   err.Error(),
		}, fmt.Errorf("classify %s: %w", fd.Name, err)
	}

	l1, l2 := c.tree.Normalize(out.L1, out.L2)
	return common.Classification{
		CategoryL1: l1,
		CategoryL2: l2,
		Confidence: common.ClampConfidence(out.Confidence),
		Evidence:   out.Evidence,
	}, nil
}
