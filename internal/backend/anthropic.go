package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic generates responses through the Claude Messages API using the
// official SDK.
type Anthropic struct {
	name      string
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
	haveKey   bool
}

func NewAnthropic(name, apiKey, model string) *Anthropic {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(clientOpts...)

	m := anthropic.ModelClaude3_5Sonnet20241022
	if model != "" {
		m = anthropic.Model(model)
	}

	return &Anthropic{
		name:      name,
		client:    &client,
		model:     m,
		maxTokens: 1024,
		haveKey:   apiKey != "",
	}
}

func (a *Anthropic) Name() string { return a.name }

// ProbeAvailable only checks that an API key was configured; the API has no
// cheap health endpoint worth spending a paid call on.
func (a *Anthropic) ProbeAvailable(_ context.Context) (bool, error) {
	return a.haveKey, nil
}

func (a *Anthropic) Respond(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)),
		},
	}

	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	if sb.Len() == 0 {
		return nil, errors.New("anthropic returned an empty completion")
	}

	return &Response{Text: sb.String(), Model: string(a.model)}, nil
}
