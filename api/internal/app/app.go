// Package app собирает сервис из конфига; общий для cbc-api и бота.
package app

import (
	"context"
	"fmt"

	"cbc-anemia/api/internal/cbc"
	"cbc-anemia/api/internal/config"
	"cbc-anemia/api/internal/handle"
	"cbc-anemia/api/internal/llm"
	"cbc-anemia/api/internal/llm/deepseek"
	"cbc-anemia/api/internal/llm/gemini"
	"cbc-anemia/api/internal/llm/openai"
	"cbc-anemia/api/internal/logger"
	"cbc-anemia/api/internal/ocr"
	"cbc-anemia/api/internal/ocr/tesseract"
	"cbc-anemia/api/internal/ocr/yandex"
	"cbc-anemia/api/internal/service"
	"cbc-anemia/api/internal/store"
)

type App struct {
	Svc *service.Service
	// Repo is nil when DATABASE_URL is empty.
	Repo *store.ResultRepo

	close []func()
}

// Build wires OCR, LLM engines, prompts and the optional result store.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	rules := Rules(cfg)

	opts := service.Options{
		OCR:        OCREngine(cfg),
		Workers:    cfg.OCRWorkers,
		Rules:      rules,
		LLMs:       LLMEngines(cfg),
		Prompts:    llm.LoadPrompts(cfg.PromptDir),
		DefaultLLM: cfg.LLMDefault,
		MaxBytes:   cfg.MaxUploadBytes(),
		Log:        logger.Default,
	}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.close = append(a.close, func() { _ = db.Close() })
		repo := store.NewResultRepo(db, cfg.DBDriver)
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.Repo = repo
		opts.Results = repo
		logger.Infof("result store: %s", cfg.DBDriver)
	} else {
		logger.Infof("result store: disabled (DATABASE_URL is empty)")
	}

	svc, err := service.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Svc = svc
	a.close = append(a.close, svc.Close)

	logger.Infof("ocr=%s llm=%v default=%s", svc.OCREngine(), svc.LLMEngines(), cfg.LLMDefault)
	return a, nil
}

// Close releases everything in reverse order.
func (a *App) Close() {
	for i := len(a.close) - 1; i >= 0; i-- {
		a.close[i]()
	}
	a.close = nil
}

// Rules: full table or only the parameters the classifier reads.
func Rules(cfg *config.Config) *cbc.Rules {
	rules := cbc.DefaultRules()
	if cfg.RuleSet == "minimal" {
		rules = rules.Subset(cbc.ClassifierKeys()...)
	}
	rules.MinResolved = cfg.MinResolved
	return rules
}

func OCREngine(cfg *config.Config) ocr.Engine {
	if cfg.OCREngine == "yandex" {
		return yandex.New(cfg.YCOAuthToken, cfg.YCFolderID)
	}
	return tesseract.New(cfg.TesseractLang)
}

// LLMEngines регистрирует только модели с ключом.
func LLMEngines(cfg *config.Config) *llm.Engines {
	e := &llm.Engines{}
	if cfg.GeminiAPIKey != "" {
		e.Gemini = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if cfg.OpenAIAPIKey != "" {
		e.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	if cfg.DeepSeekAPIKey != "" {
		e.DeepSeek = deepseek.New(cfg.DeepSeekAPIKey, cfg.DeepSeekModel)
	}
	return e
}

// Results: nil interface (not a typed nil) when storage is off.
func (a *App) Results() handle.ResultStore {
	if a.Repo == nil {
		return nil
	}
	return a.Repo
}
