package deepseek

import (
	"context"
	"errors"

	"cbc-anemia/api/internal/llm"
	"cbc-anemia/api/internal/llm/openai"
)

const baseURL = "https://api.deepseek.com/"

// Engine: DeepSeek через OpenAI-совместимый API. Только текст.
type Engine struct {
	*openai.Engine
}

func New(key, model string) *Engine {
	return NewWithBaseURL(key, model, baseURL)
}

func NewWithBaseURL(key, model, url string) *Engine {
	return &Engine{Engine: openai.NewCompatible("deepseek", key, model, url)}
}

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	if len(req.Image) > 0 {
		return "", errors.New("DeepSeek Chat API не поддерживает анализ изображений. Используйте /engine gemini | gpt")
	}
	return e.Engine.Complete(ctx, req)
}
