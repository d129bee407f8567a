package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"

	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
)

// chatWithFormat sends the messages with a JSON schema format derived from
// out and unmarshals the response into out. All model calls in this adapter
// funnel through here so concurrency and timeout limits apply uniformly.
func (c *Client) chatWithFormat(
	ctx context.Context,
	model string,
	msgs []api.Message,
	out any,
) error {
	schemaObj := ai.GenerateSchema(out)
	formatBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return fmt.Errorf("%w: marshal schema: %v", ai.ErrLLM, err)
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
		Format:   json.RawMessage(formatBytes),
		Options:  map[string]any{"temperature": 0.1},
	}

	// Grow the context window when the prompt alone would not fit the
	// default.
	if enc, err := tiktoken.GetEncoding(ai.DefaultEncoding); err == nil {
		tokens := 200
		for _, m := range msgs {
			tokens += len(enc.Encode(m.Content, nil, nil))
		}
		if tokens > 4096 {
			req.Options["num_ctx"] = tokens
		}
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrLLM, err)
	}
	defer c.reqLock.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var final api.ChatResponse
	if err := c.client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
		}
		return nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrLLM, err)
	}

	if final.Message.Content == "" {
		return fmt.Errorf("%w: empty response from model", ai.ErrLLM)
	}

	if err := ai.UnmarshalFlexible(final.Message.Content, out); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrLLM, err)
	}
	return nil
}
