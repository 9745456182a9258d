package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const ProviderGemini = "gemini"

type Gemini struct {
	client  *genai.Client
	model   string
	initErr error
}

// NewGemini never fails: a missing key or a client error is kept and reported
// by Ready, so the server still starts and degrades per request.
func NewGemini(ctx context.Context, apiKey, model string) *Gemini {
	g := &Gemini{model: model}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		g.initErr = ErrNotConfigured
		return g
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		g.initErr = fmt.Errorf("%w: %v", ErrNotConfigured, err)
		return g
	}
	g.client = client
	return g
}

func (g *Gemini) Name() string {
	return ProviderGemini
}

func (g *Gemini) Ready() error {
	return g.initErr
}

func (g *Gemini) Generate(ctx context.Context, in Input) (string, error) {
	if err := g.Ready(); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(in), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (g *Gemini) Stream(ctx context.Context, in Input, onDelta func(delta string) error) (string, error) {
	if err := g.Ready(); err != nil {
		return "", err
	}

	var builder strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, geminiContents(in), nil) {
		if err != nil {
			return builder.String(), err
		}

		delta := resp.Text()
		if delta == "" {
			continue
		}
		builder.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return builder.String(), err
		}
	}
	return builder.String(), nil
}

func geminiContents(in Input) []*genai.Content {
	return []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: in.PromptText},
			{InlineData: &genai.Blob{MIMEType: in.MIMEType, Data: in.ImageBytes}},
		},
	}}
}
