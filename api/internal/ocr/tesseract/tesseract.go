// Package tesseract is the local OCR engine (libtesseract via cgo).
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"cbc-anemia/api/internal/ocr"
)

type Engine struct {
	langs []string
}

// New: langs like "eng" or "eng+rus".
func New(langs string) *Engine {
	var ls []string
	for _, l := range strings.Split(langs, "+") {
		if l = strings.TrimSpace(l); l != "" {
			ls = append(ls, l)
		}
	}
	if len(ls) == 0 {
		ls = []string{"eng"}
	}
	return &Engine{langs: ls}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img []byte, cfg ocr.Config) (string, error) {
	return e.run(ctx, cfg, func(c *gosseract.Client) error { return c.SetImageFromBytes(img) })
}

func (e *Engine) RecognizeFile(ctx context.Context, path string, cfg ocr.Config) (string, error) {
	return e.run(ctx, cfg, func(c *gosseract.Client) error { return c.SetImage(path) })
}

// gosseract.Client is not safe for concurrent use, so every call gets its own.
func (e *Engine) run(ctx context.Context, cfg ocr.Config, setImage func(*gosseract.Client) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer func() {
		_ = client.Close()
	}()

	if err := client.SetLanguage(e.langs...); err != nil {
		return "", fmt.Errorf("tesseract language: %w", err)
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", fmt.Errorf("tesseract variable: %w", err)
	}
	if !cfg.Default() {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
			return "", fmt.Errorf("tesseract psm %d: %w", cfg.PSM, err)
		}
		if cfg.Whitelist != "" {
			if err := client.SetWhitelist(cfg.Whitelist); err != nil {
				return "", fmt.Errorf("tesseract whitelist: %w", err)
			}
		}
	}
	if err := setImage(client); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}
	return client.Text()
}
