package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cbc-anemia/api/internal/cbc"
	"cbc-anemia/api/internal/diagnosis"
	"cbc-anemia/api/internal/llm"
	"cbc-anemia/api/internal/logger"
	"cbc-anemia/api/internal/service"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (b *fakeBot) last() string {
	if len(b.sent) == 0 {
		return ""
	}
	return b.sent[len(b.sent)-1].Text
}

type fakePredictor struct {
	got   service.Request
	resp  *service.Prediction
	err   error
	panic string
}

func (f *fakePredictor) Predict(_ context.Context, req service.Request) (*service.Prediction, error) {
	f.got = req
	if f.panic != "" {
		panic(f.panic)
	}
	return f.resp, f.err
}

func (f *fakePredictor) LLMEngines() []string { return []string{"gemini", "deepseek"} }

func newRouter() (*Router, *fakeBot, *fakePredictor) {
	bot := &fakeBot{}
	pred := &fakePredictor{resp: &service.Prediction{Classification: "No Anemia"}}
	r := &Router{
		Bot:   bot,
		Svc:   pred,
		Prefs: NewPrefs(Choice{Mode: service.ModeRules}),
		Log:   logger.Nop(),
		Download: func(_ context.Context, url string) ([]byte, error) {
			return []byte(url), nil
		},
	}
	return r, bot, pred
}

func command(chatID int64, text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func TestEngineCommand(t *testing.T) {
	r, bot, _ := newRouter()

	tests := []struct {
		cmd    string
		reply  string
		choice Choice
	}{
		{"/engine", "Текущий движок: rules", Choice{Mode: service.ModeRules}},
		{"/engine gemini", "✅ Движок: gemini.", Choice{Mode: service.ModeLLM, LLM: "gemini"}},
		{"/engine gemini image", "✅ Движок: gemini (image).", Choice{Mode: service.ModeLLMImage, LLM: "gemini"}},
		{"/engine gpt", "❌ gpt не настроен.", Choice{Mode: service.ModeLLMImage, LLM: "gemini"}},
		{"/engine deepseek image", "⚠️ DeepSeek не анализирует изображения", Choice{Mode: service.ModeLLMImage, LLM: "gemini"}},
		{"/engine yandex", "Неизвестный движок", Choice{Mode: service.ModeLLMImage, LLM: "gemini"}},
		{"/engine rules", "✅ Движок: rules", Choice{Mode: service.ModeRules}},
	}
	for _, tt := range tests {
		r.HandleUpdate(command(42, tt.cmd))
		assert.True(t, strings.HasPrefix(bot.last(), tt.reply), "%s -> %q", tt.cmd, bot.last())
		assert.Equal(t, tt.choice, r.Prefs.Get(42), tt.cmd)
	}
	// другой чат не затронут
	assert.Equal(t, Choice{Mode: service.ModeRules}, r.Prefs.Get(7))
}

func TestPhoto(t *testing.T) {
	r, bot, pred := newRouter()
	r.Prefs.Set(5, Choice{Mode: service.ModeLLM, LLM: "gemini"})

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 5},
		From:  &tgbotapi.User{ID: 99},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	}})

	assert.Equal(t, []byte("https://files.example/big"), pred.got.ImageBytes)
	assert.Equal(t, service.ModeLLM, pred.got.Mode)
	assert.Equal(t, "gemini", pred.got.LLMName)
	assert.Equal(t, "tg:99", pred.got.UserID)
	require.Len(t, bot.sent, 2)
	assert.Equal(t, "Markdown", bot.sent[1].ParseMode)
	assert.Contains(t, bot.last(), "No Anemia")
}

func TestImageDocumentAndErrors(t *testing.T) {
	r, bot, pred := newRouter()
	pred.err = &service.InputError{Err: service.ErrUnsupportedFormat, Detail: "webp"}

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 1},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/webp"},
	}})
	assert.Equal(t, "❌ unsupported image format: webp", bot.last())

	pred.err = errors.New("disk full")
	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 1},
		Photo: []tgbotapi.PhotoSize{{FileID: "p"}},
	}})
	assert.Equal(t, "Ошибка обработки: disk full", bot.last())

	n := len(bot.sent)
	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 1},
		Document: &tgbotapi.Document{FileID: "x", MimeType: "application/pdf"},
	}})
	assert.Len(t, bot.sent, n)
}

func TestFormatPrediction(t *testing.T) {
	d := diagnosis.Classify(cbc.ValueMap{cbc.Hemoglobin: 100, cbc.Hematocrit: 0.30, cbc.MCV: 70})
	out := FormatPrediction(&service.Prediction{
		Classification:  "Microcytic anemia",
		ConfidenceScore: "85%",
		Explanation:     "MCV_low",
		HealthRisk:      "iron",
		LLM:             "gemini",
		Diagnosis:       &d,
		ExtractedCBC:    cbc.ValueMap{cbc.MCV: 70, cbc.Hemoglobin: 100},
		Warnings:        []string{"differential count sum is 1.55, outside 0.5-1.5"},
	})
	assert.Contains(t, out, "🩸 *Microcytic anemia*")
	assert.Contains(t, out, "MCV\\_low")
	assert.Contains(t, out, "По правилам: Microcytic Anemia")
	assert.Less(t, strings.Index(out, "Hemoglobin: 100"), strings.Index(out, "MCV: 70"))
	assert.Contains(t, out, "differential count sum")

	notCBC := FormatPrediction(&service.Prediction{Classification: llm.ClassNotCBC, ExtractedText: "some `text`"})
	assert.Contains(t, notCBC, "Не удалось распознать")
	assert.Contains(t, notCBC, "some 'text'")

	long := FormatPrediction(&service.Prediction{Classification: "x", Explanation: strings.Repeat("я", 5000)})
	assert.Len(t, []rune(long), maxMessage+1)
}

func TestHandleUpdate_RecoversFromPanic(t *testing.T) {
	r, bot, pred := newRouter()
	pred.panic = "decoder exploded"

	upd := tgbotapi.Update{UpdateID: 3, Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 8},
		Photo: []tgbotapi.PhotoSize{{FileID: "p"}},
	}}
	assert.NotPanics(t, func() { r.HandleUpdate(upd) })
	assert.Equal(t, "Ошибка обработки: internal error: decoder exploded", bot.last())

	// следующий апдейт обрабатывается как обычно
	pred.panic = ""
	r.HandleUpdate(upd)
	assert.Contains(t, bot.last(), "No Anemia")
}
