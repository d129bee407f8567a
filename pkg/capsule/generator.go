// Package capsule turns extractor output into content capsules by routing
// it to the right model call per file kind.
package capsule

import (
	"context"
	"fmt"

	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
	"github.com/nordlicht-labs/corpusgraph/pkg/common"
	"github.com/nordlicht-labs/corpusgraph/pkg/extract"
)

// Generator produces capsules from extraction results.
//
// A Generator should be created using NewGenerator.
type Generator struct {
	client ai.Client
}

// NewGenerator creates a Generator backed by the given model client.
func NewGenerator(client ai.Client) *Generator {
	return &Generator{client: client}
}

// Generate builds the capsule for one file. Missing or unreadable content
// yields a failure capsule with confidence 0 and the extraction error
// recorded; a non-nil error is returned only when a model call fails.
//
// Routing per kind: images go to the vision model, spreadsheets and plain
// text to the text model, PDFs prefer their text layer and fall back to the
// rendered first page, Word documents prefer text and fall back to the
// first embedded image.
func (g *Generator) Generate(
	ctx context.Context,
	fd common.FileDescriptor,
	res extract.Result,
) (common.Capsule, error) {
	meta := fileMeta(fd)
	modality := defaultModality(res.Kind)

	var (
		out ai.CapsuleResult
		err error
	)

	switch res.Kind {
	case common.FileKindImage:
		if !res.HasImage() {
			return failureCapsule(modality, res), nil
		}
		out, err = g.client.DescribeImage(ctx, res.ImageDataURL, meta)

	case common.FileKindExcel, common.FileKindText:
		if !res.HasText() {
			return failureCapsule(modality, res), nil
		}
		out, err = g.client.DescribeText(ctx, res.Text, meta)

	case common.FileKindPDF, common.FileKindDocx:
		// Modality follows the route taken: a scanned PDF described from
		// its rendered first page is an image capsule even though the
		// file kind stays pdf.
		switch {
		case res.HasText():
			out, err = g.client.DescribeText(ctx, res.Text, meta)
		case res.HasImage():
			modality = common.ModalityImage
			out, err = g.client.DescribeImage(ctx, res.ImageDataURL, meta)
		default:
			return failureCapsule(modality, res), nil
		}

	default:
		return failureCapsule(modality, res), nil
	}

	if err != nil {
		return common.Capsule{}, fmt.Errorf("capsule for %s: %w", fd.Name, err)
	}

	return common.Capsule{
		Summary:        out.Summary,
		Keyphrases:     out.Keyphrases,
		ConfidenceRead: common.ClampConfidence(out.Confidence),
		Modality:       modality,
		Kind:           res.Kind,
	}, nil
}

func fileMeta(fd common.FileDescriptor) ai.FileMeta {
	return ai.FileMeta{
		Name:         fd.Name,
		Path:         fd.Path,
		Extension:    fd.Extension,
		SizeBytes:    fd.SizeBytes,
		ModifiedTime: fd.ModifiedTime,
	}
}

func defaultModality(kind common.FileKind) common.Modality {
	switch kind {
	case common.FileKindImage:
		return common.ModalityImage
	case common.FileKindExcel:
		return common.ModalityTable
	default:
		return common.ModalityDocument
	}
}

func failureCapsule(modality common.Modality, res extract.Result) common.Capsule {
	reason := "no readable content"
	if res.Err != "" {
		reason = res.Err
	}
	return common.Capsule{
		Summary:        "content could not be read: " + reason,
		Keyphrases:     []string{},
		ConfidenceRead: 0,
		Modality:       modality,
		Kind:           res.Kind,
		Error:          reason,
	}
}
