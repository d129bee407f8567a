package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/nordlicht-labs/corpusgraph/internal/util"
)

const pdfToolTimeout = 120 * time.Second

// pdfText extracts the text layer of the first pages of a PDF using
// pdftotext, bounded to the configured page and character limits.
func (e *Extractor) pdfText(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found in PATH: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pdfToolTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdftotext",
		"-l", strconv.Itoa(e.opts.PDFMaxPages),
		"-q",
		path, "-",
	)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("pdftotext timed out")
	}
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", fmt.Errorf("pdf has no text layer")
	}
	return util.TruncateRunes(text, e.opts.MaxChars), nil
}

// pdfFirstPageImage renders the first page of a PDF as a PNG and returns it
// as a bounded data URL. The render goes through a scoped temp directory
// that is removed on every exit path.
func (e *Extractor) pdfFirstPageImage(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return "", fmt.Errorf("pdftoppm not found in PATH: %w", err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("nanoid: %w", err)
	}
	tmpDir := filepath.Join(os.TempDir(), "corpusgraph-pdf-"+id)
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir tmp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	ctx, cancel := context.WithTimeout(ctx, pdfToolTimeout)
	defer cancel()

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", "150",
		"-q",
		"-singlefile",
		"-f", "1",
		"-l", "1",
		path, prefix,
	)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("pdftoppm timed out")
	}
	if err != nil {
		return "", fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	raw, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return "", fmt.Errorf("read rendered page: %w", err)
	}

	if int64(len(raw)) <= e.opts.MaxImageBytes {
		return dataURL("image/png", raw), nil
	}
	return e.boundedDataURL(raw)
}
