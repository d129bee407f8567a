package ai

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/nordlicht-labs/corpusgraph/internal/util"
)

// DefaultEncoding is the token encoding used to bound excerpts before they
// are put into prompts.
const DefaultEncoding = "o200k_base"

// ClipTokens bounds text to at most maxTokens tokens of the given encoding.
// When the encoding is unavailable it falls back to a conservative rune
// bound (roughly four runes per token).
func ClipTokens(text string, encoding string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return util.TruncateRunes(text, maxTokens*4)
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
