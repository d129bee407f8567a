package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
)

const maxExcerptTokens = 3000

// DescribeText produces a content capsule from a bounded text excerpt.
func (c *Client) DescribeText(
	ctx context.Context,
	excerpt string,
	meta ai.FileMeta,
) (ai.CapsuleResult, error) {
	excerpt = ai.ClipTokens(excerpt, ai.DefaultEncoding, maxExcerptTokens)
	prompt := fmt.Sprintf(ai.TextCapsulePrompt, ai.FormatFileMeta(meta), excerpt)

	var out ai.CapsuleResult
	err := c.chatWithFormat(ctx, c.chatModel, []api.Message{
		{Role: "user", Content: prompt},
	}, &out)
	return out, err
}

// DescribeImage produces a content capsule from a data URL image via the
// vision model.
func (c *Client) DescribeImage(
	ctx context.Context,
	dataURL string,
	meta ai.FileMeta,
) (ai.CapsuleResult, error) {
	raw, err := decodeDataURL(dataURL)
	if err != nil {
		return ai.CapsuleResult{}, fmt.Errorf("%w: %v", ai.ErrLLM, err)
	}

	prompt := fmt.Sprintf(ai.ImageCapsulePrompt, ai.FormatFileMeta(meta))

	var out ai.CapsuleResult
	err = c.chatWithFormat(ctx, c.imageModel, []api.Message{
		{Role: "system", Content: prompt},
		{
			Role:    "user",
			Content: "",
			Images:  []api.ImageData{raw},
		},
	}, &out)
	return out, err
}

// decodeDataURL extracts the raw bytes from a base64 data URL. Ollama takes
// image bytes, not URLs.
func decodeDataURL(dataURL string) ([]byte, error) {
	_, payload, found := strings.Cut(dataURL, ";base64,")
	if !found {
		return nil, fmt.Errorf("not a base64 data URL")
	}
	return base64.StdEncoding.DecodeString(payload)
}
