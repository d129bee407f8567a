package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/nordlicht-labs/corpusgraph/internal/util"
	"github.com/nordlicht-labs/corpusgraph/pkg/common"
)

// docXMLMax bounds how much of an embedded media entry is read from a docx
// archive.
const docXMLMax = 50 << 20

// docText extracts the text content of a Word document, paragraphs and
// tables joined, bounded to the configured character limit.
func (e *Extractor) docText(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("convert document: %w", err)
	}
	return util.TruncateRunes(strings.TrimSpace(res.Body), e.opts.MaxChars), nil
}

// docxFirstImage returns the first embedded image of a docx archive as a
// bounded data URL. It is the fallback for documents without extractable
// text (scans pasted into Word).
func (e *Extractor) docxFirstImage(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if !strings.HasPrefix(entry.Name, "word/media/") {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name), "."))
		if KindForExtension(ext) != common.FileKindImage {
			continue
		}

		reader, err := entry.Open()
		if err != nil {
			return "", fmt.Errorf("open embedded image: %w", err)
		}
		raw, err := io.ReadAll(io.LimitReader(reader, docXMLMax))
		reader.Close()
		if err != nil {
			return "", fmt.Errorf("read embedded image: %w", err)
		}

		if int64(len(raw)) <= e.opts.MaxImageBytes {
			return dataURL(mimeForExtension(ext), raw), nil
		}
		return e.boundedDataURL(raw)
	}

	return "", fmt.Errorf("no embedded images in document")
}
