// Package ocr turns image variants into raw text candidates. Engines are
// black boxes: image + configuration in, text (possibly empty) out.
package ocr

import (
	"context"
	"fmt"
	"strings"
)

// Config: одна конфигурация распознавания (page segmentation mode + whitelist).
type Config struct {
	PSM       int
	Whitelist string
}

// String renders the config the way tesseract's CLI spells it.
func (c Config) String() string {
	if c.PSM == 0 && c.Whitelist == "" {
		return "default"
	}
	parts := []string{fmt.Sprintf("--psm %d", c.PSM)}
	if c.Whitelist != "" {
		parts = append(parts, "-c tessedit_char_whitelist="+c.Whitelist)
	}
	return strings.Join(parts, " ")
}

// Default reports whether c asks for the engine's own settings.
func (c Config) Default() bool { return c.PSM == 0 && c.Whitelist == "" }

const reportWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.%/"

// DefaultConfigs: block/column layouts with a whitelist first, then the
// generic page modes.
func DefaultConfigs() []Config {
	return []Config{
		{PSM: 6, Whitelist: reportWhitelist},
		{PSM: 4, Whitelist: reportWhitelist},
		{PSM: 3},
		{PSM: 11},
		{PSM: 12},
		{PSM: 13},
	}
}

type Engine interface {
	Name() string
	Recognize(ctx context.Context, img []byte, cfg Config) (string, error)
}

// FileEngine is implemented by engines that read images from disk directly.
type FileEngine interface {
	Engine
	RecognizeFile(ctx context.Context, path string, cfg Config) (string, error)
}

// ConfigSet lets an engine replace DefaultConfigs (cloud OCR has no PSM).
type ConfigSet interface {
	Configs() []Config
}

// ConfigsFor returns the configurations worth trying with e.
func ConfigsFor(e Engine) []Config {
	if cs, ok := e.(ConfigSet); ok {
		return cs.Configs()
	}
	return DefaultConfigs()
}
