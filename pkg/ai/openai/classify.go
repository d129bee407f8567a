package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"

	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
)

// Classify assigns the capsule to one of the allowed category pairs.
func (c *Client) Classify(
	ctx context.Context,
	input ai.ClassifyInput,
) (ai.ClassifyResult, error) {
	prompt := fmt.Sprintf(
		ai.ClassifyPrompt,
		ai.FormatFileMeta(input.Meta),
		input.Summary,
		strings.Join(input.Keyphrases, ", "),
		ai.FormatCategoryPairs(input.Allowed),
	)

	var out ai.ClassifyResult
	err := c.completionWithFormat(
		ctx,
		"file_classification",
		"Two-level category assignment for one file",
		c.chatModel,
		[]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		&out,
	)
	return out, err
}
