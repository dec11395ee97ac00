package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/airquality/internal/htmlutil"
)

const systemPrompt = `You summarise air quality findings for a public dashboard about twelve Beijing monitoring stations.
Write one short paragraph of plain prose, at most four sentences. Use only the facts given. Do not add advice.`

// Generator writes a narrative summary of the conclusions using OpenAI's
// chat completions API.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator creates a generator authenticated with apiKey.
func NewGenerator(apiKey string, opts ...option.RequestOption) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Generator{
		client: openai.NewClient(opts...),
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Narrate returns a paragraph summarising conclusions.
func (g *Generator) Narrate(ctx context.Context, conclusions []string) (string, error) {
	if len(conclusions) == 0 {
		return "", errors.New("no conclusions to narrate")
	}

	slog.Info("generating narrative", "component", "insight", "facts", len(conclusions), "model", g.model)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("Facts:\n- " + strings.Join(conclusions, "\n- ")),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	text := htmlutil.ToText(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion returned")
	}
	return text, nil
}
