package ai

import (
	"context"
	"errors"
)

// ErrLLM marks a failed model request: transport failure, empty response, or
// output that could not be parsed after repair. A file whose capsule or
// classification hits ErrLLM is recorded as failed.
var ErrLLM = errors.New("ai: model request failed")

// FileMeta is the minimal file context passed alongside content so the model
// can use the name and location as signals.
type FileMeta struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Extension    string `json:"extension"`
	SizeBytes    int64  `json:"size_bytes"`
	ModifiedTime string `json:"mtime,omitempty"`
}

// CapsuleResult is the structured output of a describe call.
type CapsuleResult struct {
	Summary    string   `json:"summary" jsonschema_description:"Two to three sentence summary of the file content"`
	Keyphrases []string `json:"keyphrases" jsonschema_description:"Up to ten short keyphrases capturing the content"`
	Confidence float64  `json:"confidence" jsonschema_description:"How confidently the content could be read, 0 to 1"`
}

// CategoryPair is one allowed (L1, L2) assignment offered to the
// classification model.
type CategoryPair struct {
	L1 string `json:"l1"`
	L2 string `json:"l2"`
}

// ClassifyInput is the request for a classification call: the capsule plus
// the allowed category pairs.
type ClassifyInput struct {
	Summary    string
	Keyphrases []string
	Meta       FileMeta
	Allowed    []CategoryPair
}

// ClassifyResult is the structured output of a classification call. The
// returned pair is validated against the taxonomy by the caller.
type ClassifyResult struct {
	L1         string  `json:"category_l1" jsonschema_description:"First-level category, exactly as listed"`
	L2         string  `json:"category_l2" jsonschema_description:"Second-level category under the chosen first level"`
	Confidence float64 `json:"confidence" jsonschema_description:"Classification confidence, 0 to 1"`
	Evidence   string  `json:"evidence" jsonschema_description:"Short justification for the assignment"`
}

// Client is the LLM surface the pipeline issues: two describe RPCs (vision
// and text) and one classification RPC. Implementations wrap a concrete
// model backend.
type Client interface {
	DescribeText(ctx context.Context, excerpt string, meta FileMeta) (CapsuleResult, error)
	DescribeImage(ctx context.Context, dataURL string, meta FileMeta) (CapsuleResult, error)
	Classify(ctx context.Context, input ClassifyInput) (ClassifyResult, error)
}
