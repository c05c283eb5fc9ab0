package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI generates responses through the Chat Completions API using the
// official SDK.
type OpenAI struct {
	name      string
	client    *openai.Client
	model     string
	maxTokens int64
	haveKey   bool
}

func NewOpenAI(name, apiKey, model string) *OpenAI {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(clientOpts...)

	if model == "" {
		model = openai.ChatModelGPT4oMini
	}

	return &OpenAI{
		name:      name,
		client:    &client,
		model:     model,
		maxTokens: 1024,
		haveKey:   apiKey != "",
	}
}

func (o *OpenAI) Name() string { return o.name }

// ProbeAvailable only checks that an API key was configured.
func (o *OpenAI) ProbeAvailable(_ context.Context) (bool, error) {
	return o.haveKey, nil
}

func (o *OpenAI) Respond(ctx context.Context, req Request) (*Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Message))

	params := openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(o.maxTokens),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, errors.New("openai returned an empty completion")
	}

	return &Response{Text: resp.Choices[0].Message.Content, Model: o.model}, nil
}
