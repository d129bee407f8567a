package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"

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
	err := c.completionWithFormat(
		ctx,
		"file_capsule",
		"Compact content capsule for one file",
		c.chatModel,
		[]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		&out,
	)
	return out, err
}

// DescribeImage produces a content capsule from a data URL image via the
// vision model.
func (c *Client) DescribeImage(
	ctx context.Context,
	dataURL string,
	meta ai.FileMeta,
) (ai.CapsuleResult, error) {
	prompt := fmt.Sprintf(ai.ImageCapsulePrompt, ai.FormatFileMeta(meta))

	var out ai.CapsuleResult
	err := c.completionWithFormat(
		ctx,
		"file_capsule",
		"Compact content capsule for one file",
		c.imageModel,
		[]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		&out,
	)
	return out, err
}
