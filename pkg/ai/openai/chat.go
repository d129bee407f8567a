package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"

	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
)

// completionWithFormat sends the messages with a strict JSON schema derived
// from out and unmarshals the response into out. All model calls in this
// adapter funnel through here so concurrency and timeout limits apply
// uniformly.
func (c *Client) completionWithFormat(
	ctx context.Context,
	name string,
	description string,
	model string,
	msgs []openai.ChatCompletionMessageParamUnion,
	out any,
) error {
	schema := ai.GenerateSchema(out)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages:    msgs,
		Temperature: openai.Float(0.1),
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrLLM, err)
	}
	defer c.reqLock.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response, err := c.chat.Chat.Completions.New(ctx, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ai.ErrLLM, err)
	}

	if len(response.Choices) == 0 {
		return fmt.Errorf("%w: no choices in response", ai.ErrLLM)
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return fmt.Errorf(
			"%w: empty response (finish_reason: %s)",
			ai.ErrLLM, response.Choices[0].FinishReason,
		)
	}

	if err := ai.UnmarshalFlexible(message, out); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrLLM, err)
	}
	return nil
}
