package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cbc-anemia/api/internal/logger"
	"cbc-anemia/api/internal/service"
)

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Predictor runs the pipeline for one image.
type Predictor interface {
	Predict(ctx context.Context, req service.Request) (*service.Prediction, error)
	LLMEngines() []string
}

type Router struct {
	Bot   Bot
	Svc   Predictor
	Prefs *Prefs
	Log   logger.Logger

	// Download fetches a Telegram file; nil means plain HTTP GET.
	Download func(ctx context.Context, url string) ([]byte, error)
	Timeout  time.Duration
}

const engineUsage = "Использование:\n/engine rules\n/engine gemini [image]\n/engine gpt [image]\n/engine deepseek"

func (r *Router) HandleCommand(upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	switch upd.Message.Command() {
	case "start", "help":
		r.send(cid, "Пришли фото общего анализа крови (ОАК), верну показатели и оценку анемии.\n"+
			"Команды: /health, /engine")
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, upd.Message.CommandArguments())
	default:
		r.send(cid, "Неизвестная команда")
	}
}

// HandleUpdate processes one update; a panic is logged and answered, the
// bot keeps running.
func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	msg := upd.Message
	defer func() {
		if rec := recover(); rec != nil {
			r.log().Errorf("telegram: panic in update %d: %v\n%s", upd.UpdateID, rec, debug.Stack())
			r.SendError(msg.Chat.ID, fmt.Errorf("internal error: %v", rec))
		}
	}()
	if msg.IsCommand() {
		r.HandleCommand(upd)
		return
	}
	if fileID, ok := imageFileID(msg); ok {
		r.handleImage(msg.Chat.ID, fileID, msg.From)
		return
	}
	if msg.Text != "" {
		r.send(msg.Chat.ID, "Пришлите фото бланка анализа. Команды: /engine, /health")
	}
}

// imageFileID: самое большое превью фото или документ-картинка.
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if d := msg.Document; d != nil && strings.HasPrefix(d.MimeType, "image/") {
		return d.FileID, true
	}
	return "", false
}

// handleEngineCommand парсит /engine и переключает способ анализа для чата.
func (r *Router) handleEngineCommand(chatID int64, args string) {
	fields := strings.Fields(strings.ToLower(args))
	if len(fields) == 0 {
		r.send(chatID, "Текущий движок: "+r.Prefs.Get(chatID).String()+"\n"+engineUsage)
		return
	}
	name := fields[0]
	if name == "openai" {
		name = "gpt"
	}
	image := len(fields) > 1 && fields[1] == "image"

	switch name {
	case "rules":
		r.Prefs.Set(chatID, Choice{Mode: service.ModeRules})
		r.send(chatID, "✅ Движок: rules (без LLM).")
		return
	case "gemini", "gpt", "deepseek":
	default:
		r.send(chatID, "Неизвестный движок. Доступны: rules | gemini | gpt | deepseek")
		return
	}
	if !r.configured(name) {
		r.send(chatID, "❌ "+name+" не настроен.")
		return
	}
	if image && name == "deepseek" {
		r.send(chatID, "⚠️ DeepSeek не анализирует изображения. Для режима image используйте /engine gemini image или /engine gpt image.")
		return
	}
	c := Choice{Mode: service.ModeLLM, LLM: name}
	if image {
		c.Mode = service.ModeLLMImage
	}
	r.Prefs.Set(chatID, c)
	r.send(chatID, "✅ Движок: "+c.String()+".")
}

func (r *Router) configured(name string) bool {
	for _, n := range r.Svc.LLMEngines() {
		if n == name {
			return true
		}
	}
	return false
}

func (r *Router) handleImage(chatID int64, fileID string, from *tgbotapi.User) {
	r.send(chatID, "Фото принято, распознаю…")

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	dl := r.Download
	if dl == nil {
		dl = download
	}
	img, err := dl(ctx, url)
	if err != nil {
		r.SendError(chatID, err)
		return
	}

	c := r.Prefs.Get(chatID)
	req := service.Request{ImageBytes: img, Mode: c.Mode, LLMName: c.LLM}
	if from != nil {
		req.UserID = fmt.Sprintf("tg:%d", from.ID)
	}
	p, err := r.Svc.Predict(ctx, req)
	if err != nil {
		r.SendError(chatID, err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatPrediction(p))
	msg.ParseMode = "Markdown"
	if _, err := r.Bot.Send(msg); err != nil {
		// Markdown мог не разобраться: шлём как есть
		r.log().Warnf("telegram send markdown: %v", err)
		r.send(chatID, FormatPrediction(p))
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warnf("telegram send: %v", err)
	}
}

func (r *Router) SendError(chatID int64, err error) {
	var ie *service.InputError
	if errors.As(err, &ie) {
		r.send(chatID, "❌ "+ie.Error())
		return
	}
	r.log().Errorf("chat %d: %v", chatID, err)
	r.send(chatID, fmt.Sprintf("Ошибка обработки: %v", err))
}

func (r *Router) log() logger.Logger {
	if r.Log == nil {
		return logger.Default
	}
	return r.Log
}
