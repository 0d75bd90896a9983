package telegram

import (
	"sync"

	"cbc-anemia/api/internal/service"
)

// Choice: выбранный в чате способ анализа.
type Choice struct {
	Mode service.Mode
	LLM  string
}

func (c Choice) String() string {
	if c.Mode == service.ModeRules || c.LLM == "" {
		return string(service.ModeRules)
	}
	if c.Mode == service.ModeLLMImage {
		return c.LLM + " (image)"
	}
	return c.LLM
}

// Prefs хранит выбор движка по chatID.
type Prefs struct {
	def Choice
	m   sync.Map // chatID -> Choice
}

func NewPrefs(def Choice) *Prefs {
	return &Prefs{def: def}
}

func (p *Prefs) Get(chatID int64) Choice {
	if v, ok := p.m.Load(chatID); ok {
		return v.(Choice)
	}
	return p.def
}

func (p *Prefs) Set(chatID int64, c Choice) {
	p.m.Store(chatID, c)
}
