package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"cbc-anemia/api/internal/cbc"
	"cbc-anemia/api/internal/llm"
	"cbc-anemia/api/internal/service"
)

const maxMessage = 3900

// лёгкое экранирование для Markdown
func esc(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "[", "\\[")
	return s
}

// FormatPrediction renders the bot reply (Markdown).
func FormatPrediction(p *service.Prediction) string {
	var b strings.Builder
	switch p.Classification {
	case llm.ClassNotCBC:
		b.WriteString("🔍 *Не удалось распознать анализ крови.*\n")
		b.WriteString("Пришлите более чёткое фото бланка ОАК (общего анализа крови).\n")
		if t := strings.TrimSpace(p.ExtractedText); t != "" {
			b.WriteString("\nРаспознанный текст:\n```\n")
			b.WriteString(strings.ReplaceAll(t, "`", "'"))
			b.WriteString("\n```\n")
		}
		return clip(b.String())
	case llm.ClassAnalysisError:
		b.WriteString("⚠️ *Модель вернула неразборчивый ответ.*\n")
	default:
		fmt.Fprintf(&b, "🩸 *%s*\n", esc(p.Classification))
	}
	if p.ConfidenceScore != "" {
		fmt.Fprintf(&b, "Уверенность: %s\n", esc(p.ConfidenceScore))
	}
	if p.LLM != "" {
		fmt.Fprintf(&b, "Модель: %s\n", esc(p.LLM))
	}
	if e := strings.TrimSpace(p.Explanation); e != "" {
		b.WriteString("\n")
		b.WriteString(esc(e))
		b.WriteString("\n")
	}
	if h := strings.TrimSpace(p.HealthRisk); h != "" {
		b.WriteString("\n*Риски и рекомендации:* ")
		b.WriteString(esc(h))
		b.WriteString("\n")
	}
	if p.Diagnosis != nil && p.LLM != "" {
		fmt.Fprintf(&b, "\nПо правилам: %s\n", esc(string(p.Diagnosis.Label)))
	}
	if len(p.ExtractedCBC) > 0 {
		b.WriteString("\n*Показатели:*\n")
		for _, k := range cbc.AllKeys() {
			if v, ok := p.ExtractedCBC[k]; ok {
				fmt.Fprintf(&b, "• %s: %s\n", esc(k.String()), strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
	}
	for _, w := range p.Warnings {
		fmt.Fprintf(&b, "⚠️ %s\n", esc(w))
	}
	b.WriteString("\n_Это не медицинский диагноз. Обратитесь к врачу._")
	return clip(b.String())
}

func clip(s string) string {
	r := []rune(s)
	if len(r) > maxMessage {
		return string(r[:maxMessage]) + "…"
	}
	return s
}
