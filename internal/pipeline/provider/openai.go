package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIText generates stories through the Chat Completions API.
type OpenAIText struct {
	client openai.Client
}

// NewOpenAIText builds a text provider authenticated with apiKey. Extra
// options let tests point the client at a local server.
func NewOpenAIText(apiKey string, opts ...option.RequestOption) *OpenAIText {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIText{client: openai.NewClient(all...)}
}

func (p *OpenAIText) Name() string { return "openai" }

// Complete issues one chat completion and returns the first choice's text.
func (p *OpenAIText) Complete(ctx context.Context, req TextRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Model: openai.ChatModel(req.Model),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(p.Name(), "text", err)
	}
	if len(completion.Choices) == 0 {
		return "", Permanent(p.Name(), "text", errors.New("completion returned no choices"))
	}
	text := completion.Choices[0].Message.Content
	if text == "" {
		return "", Permanent(p.Name(), "text", errors.New("completion returned empty content"))
	}
	return text, nil
}

// OpenAIImage renders scene images through the Images API.
type OpenAIImage struct {
	client openai.Client
}

// NewOpenAIImage builds an image provider authenticated with apiKey.
func NewOpenAIImage(apiKey string, opts ...option.RequestOption) *OpenAIImage {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIImage{client: openai.NewClient(all...)}
}

func (p *OpenAIImage) Name() string { return "openai" }

// Generate renders one image and returns its hosted URL.
func (p *OpenAIImage) Generate(ctx context.Context, req ImageRequest) (ImageArtifact, error) {
	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(req.Model),
		N:      openai.Int(1),
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}

	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		return ImageArtifact{}, classifyOpenAI(p.Name(), "image", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return ImageArtifact{}, Permanent(p.Name(), "image", errors.New("image response carried no URL"))
	}
	return ImageArtifact{URI: resp.Data[0].URL}, nil
}

// classifyOpenAI maps SDK errors onto the retry taxonomy using the API
// error's HTTP status when one is present.
func classifyOpenAI(providerName, kind string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return FromStatus(providerName, kind, apiErr.StatusCode,
			fmt.Errorf("openai api status %d: %w", apiErr.StatusCode, err))
	}
	return asFailure(providerName, kind, err)
}
