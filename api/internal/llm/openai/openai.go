package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"cbc-anemia/api/internal/llm"
	"cbc-anemia/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string
	name   string
	client openai.Client
}

// New: OpenAI chat completions.
func New(key, model string) *Engine {
	return NewCompatible("gpt", key, model, "")
}

// NewCompatible talks to any OpenAI-compatible chat completions endpoint.
// Empty baseURL means api.openai.com.
func NewCompatible(name, key, model, baseURL string) *Engine {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(key)),
		option.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Engine{
		APIKey: strings.TrimSpace(key),
		Model:  strings.TrimSpace(model),
		name:   name,
		client: openai.NewClient(opts...),
	}
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%s: api key is empty", e.name)
	}
	user, err := userContent(req)
	if err != nil {
		return "", err
	}
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{OfString: openai.String(req.System)},
			},
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{Content: user},
	})

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(e.Model),
		Messages:    msgs,
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s chat: %w", e.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices", e.name)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%s: empty response", e.name)
	}
	return out, nil
}

func userContent(req llm.Request) (openai.ChatCompletionUserMessageParamContentUnion, error) {
	if len(req.Image) == 0 {
		return openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(req.User)}, nil
	}
	mime := util.PickMIME(req.MIME, "", req.Image)
	if !isOpenAIImageMIME(mime) {
		return openai.ChatCompletionUserMessageParamContentUnion{},
			errors.New("unsupported image MIME for vision model: " + mime)
	}
	dataURL := util.MakeDataURL(mime, base64.StdEncoding.EncodeToString(req.Image))
	return openai.ChatCompletionUserMessageParamContentUnion{
		OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
			{OfText: &openai.ChatCompletionContentPartTextParam{Text: req.User}},
			{OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL, Detail: "high"},
			}},
		},
	}, nil
}

func isOpenAIImageMIME(m string) bool {
	m = strings.ToLower(strings.TrimSpace(m))
	switch m {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}
