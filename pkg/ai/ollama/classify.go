package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

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
	err := c.chatWithFormat(ctx, c.chatModel, []api.Message{
		{Role: "user", Content: prompt},
	}, &out)
	return out, err
}
