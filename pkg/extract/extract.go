package extract

import (
	"context"
	"strings"

	"github.com/nordlicht-labs/corpusgraph/pkg/common"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger"
)

// Result is the tagged outcome of content extraction. Absence of a payload is
// a value here, not an exception: downstream branching on Text/ImageDataURL
// replaces control flow by error in the capsule generator.
type Result struct {
	Kind         common.FileKind
	Text         string
	ImageDataURL string
	Err          string
}

// HasText reports whether a non-empty text excerpt was produced.
func (r Result) HasText() bool {
	return strings.TrimSpace(r.Text) != ""
}

// HasImage reports whether a non-empty image data URL was produced.
func (r Result) HasImage() bool {
	return r.ImageDataURL != ""
}

// Options bounds what extraction produces.
type Options struct {
	MaxChars      int
	MaxImageBytes int64
	PDFMaxPages   int
	ExcelNRows    int
}

// Extractor dispatches a local file to the parser matching its declared
// extension and normalizes the output into a Result.
type Extractor struct {
	opts Options
}

// NewExtractor creates an extractor. Zero-valued options fall back to the
// shipped defaults (4000 chars, 20 MB, 3 pages, 20 rows).
func NewExtractor(opts Options) *Extractor {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 4000
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 20 << 20
	}
	if opts.PDFMaxPages <= 0 {
		opts.PDFMaxPages = 3
	}
	if opts.ExcelNRows <= 0 {
		opts.ExcelNRows = 20
	}
	return &Extractor{opts: opts}
}

// KindForExtension maps a lowercased extension (no dot) to its extraction
// kind.
func KindForExtension(ext string) common.FileKind {
	switch strings.ToLower(ext) {
	case "png", "jpg", "jpeg", "bmp", "gif", "tif", "tiff", "webp":
		return common.FileKindImage
	case "xlsx", "xls":
		return common.FileKindExcel
	case "md", "markdown", "txt", "json":
		return common.FileKindText
	case "pdf":
		return common.FileKindPDF
	case "docx", "doc":
		return common.FileKindDocx
	default:
		return common.FileKindUnknown
	}
}

// Extract parses the file at path according to its declared extension.
// Extraction failures are non-fatal: they yield an empty payload of the
// chosen modality and a short error string on the Result.
func (e *Extractor) Extract(ctx context.Context, path string, ext string) Result {
	kind := KindForExtension(ext)
	result := Result{Kind: kind}

	switch kind {
	case common.FileKindImage:
		dataURL, err := e.imageDataURL(path, ext)
		if err != nil {
			result.Err = err.Error()
			logger.Debug("Image extraction failed", "path", path, "err", err)
			break
		}
		result.ImageDataURL = dataURL

	case common.FileKindExcel:
		table, err := e.excelTable(ctx, path, ext)
		if err != nil {
			result.Err = err.Error()
			logger.Debug("Excel extraction failed", "path", path, "err", err)
			break
		}
		result.Text = table

	case common.FileKindText:
		excerpt, err := e.textExcerpt(path)
		if err != nil {
			result.Err = err.Error()
			break
		}
		result.Text = excerpt

	case common.FileKindPDF:
		text, textErr := e.pdfText(ctx, path)
		if textErr == nil {
			result.Text = text
		}
		image, imageErr := e.pdfFirstPageImage(ctx, path)
		if imageErr == nil {
			result.ImageDataURL = image
		}
		if textErr != nil && imageErr != nil {
			result.Err = textErr.Error()
			logger.Debug("PDF extraction failed", "path", path, "text_err", textErr, "image_err", imageErr)
		}

	case common.FileKindDocx:
		text, textErr := e.docText(path)
		if textErr == nil && strings.TrimSpace(text) != "" {
			result.Text = text
			break
		}
		image, imageErr := e.docxFirstImage(path)
		if imageErr == nil {
			result.ImageDataURL = image
			break
		}
		if textErr != nil {
			result.Err = textErr.Error()
		} else {
			result.Err = "document contains no extractable text or images"
		}

	default:
		result.Err = "unsupported extension: " + ext
	}

	return result
}
