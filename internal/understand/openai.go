package understand

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"

	"github.com/slotbot-ai/slotbot/internal/adapters"
	"github.com/slotbot-ai/slotbot/internal/model"
)

const systemPrompt = "You are a scheduling assistant. Always respond with valid JSON only."

// Options configure the OpenAI classifier. Kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model       string
	Temperature float64
	// Timeout is the per-call latency budget. Exceeding it is a failure,
	// not an indefinite wait.
	Timeout time.Duration
}

// Classifier implements Understander on the OpenAI Chat Completions API.
type Classifier struct {
	client *openai.Client
	opts   Options
}

// New creates a Classifier using the default client (reads OPENAI_API_KEY).
func New(optFns ...func(o *Options)) *Classifier {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a Classifier from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.1,
		Timeout:     15 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{client: client, opts: opts}
}

// Classify runs one completion and parses the structured result.
func (c *Classifier) Classify(ctx context.Context, req Request) (*model.IntentResult, adapters.Outcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model:       c.opts.Model,
		Temperature: openai.Float(c.opts.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
	})
	if err != nil {
		return nil, adapters.ClassifyErr(err), fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, adapters.OutcomeTransient, fmt.Errorf("no choices returned")
	}

	res, err := parseIntentJSON(resp.Choices[0].Message.Content)
	if err != nil {
		// A malformed completion may well parse on the next attempt.
		return nil, adapters.OutcomeTransient, err
	}
	return res, adapters.OutcomeSuccess, nil
}
