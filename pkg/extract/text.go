package extract

import (
	"fmt"
	"os"

	"github.com/nordlicht-labs/corpusgraph/internal/util"
)

// textExcerpt reads a plain-text file and bounds it to the configured
// character limit.
func (e *Extractor) textExcerpt(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	return util.TruncateRunes(string(raw), e.opts.MaxChars), nil
}
