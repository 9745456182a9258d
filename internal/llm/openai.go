package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const ProviderOpenAI = "openai"

// OpenAI talks to any OpenAI-compatible chat completions endpoint (vLLM, OpenRouter, ...).
type OpenAI struct {
	client openai.Client
	model  string
	apiKey string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		apiKey: strings.TrimSpace(apiKey),
	}
}

func (o *OpenAI) Name() string {
	return ProviderOpenAI
}

func (o *OpenAI) Ready() error {
	if o.apiKey == "" {
		return ErrNotConfigured
	}
	return nil
}

func (o *OpenAI) Generate(ctx context.Context, in Input) (string, error) {
	if err := o.Ready(); err != nil {
		return "", err
	}

	resp, err := o.client.Chat.Completions.New(ctx, o.params(in))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Stream(ctx context.Context, in Input, onDelta func(delta string) error) (string, error) {
	if err := o.Ready(); err != nil {
		return "", err
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(in))
	defer stream.Close()

	var builder strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		builder.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return builder.String(), err
		}
	}
	return builder.String(), stream.Err()
}

func (o *OpenAI) params(in Input) openai.ChatCompletionNewParams {
	imageData := fmt.Sprintf("data:%s;base64,%s", in.MIMEType, base64.StdEncoding.EncodeToString(in.ImageBytes))

	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(in.PromptText),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: imageData,
				}),
			}),
		},
	}
}
