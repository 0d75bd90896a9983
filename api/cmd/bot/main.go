package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cbc-anemia/api/internal/app"
	"cbc-anemia/api/internal/config"
	"cbc-anemia/api/internal/logger"
	"cbc-anemia/api/internal/service"
	"cbc-anemia/api/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}
	if cfg.TelegramBotToken == "" {
		logger.Fatalf("TELEGRAM_BOT_TOKEN is empty")
	}

	// --- storage (опционально) ---
	cfg.DatabaseURL = resolveDSN(cfg.DatabaseURL)
	if cfg.DatabaseURL != "" {
		logger.Infof("db: %s", safeDSNSummary(cfg.DatabaseURL))
	}

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer a.Close()

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatalf("telegram: %v", err)
	}
	bot.Debug = false

	def := telegram.Choice{Mode: service.ModeRules}
	if cfg.LLMDefault != "" && contains(a.Svc.LLMEngines(), cfg.LLMDefault) {
		def = telegram.Choice{Mode: service.ModeLLM, LLM: cfg.LLMDefault}
	}
	r := &telegram.Router{
		Bot:   bot,
		Svc:   a.Svc,
		Prefs: telegram.NewPrefs(def),
		Log:   logger.Default,
	}

	// DefaultServeMux: ListenForWebhook регистрирует обработчик именно там
	http.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := "0.0.0.0:" + cfg.Port
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(addr, bot, r, webhookURL)
	} else {
		startPollingMode(addr, bot, r)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------- Modes -----------------

func startWebhookMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		logger.Fatalf("webhook: %v", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		logger.Fatalf("set webhook: %v", err)
	}

	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			go r.HandleUpdate(upd)
		}
		logger.Warnf("webhook updates channel closed")
	}()

	logger.Infof("webhook listening on %s%s", addr, path)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatalf("http: %v", err)
	}
}

func startPollingMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	go func() {
		logger.Infof("health server listening on %s/healthz", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Fatalf("http: %v", err)
		}
	}()

	// с активным вебхуком getUpdates вернёт 409
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warnf("delete webhook: %v", err)
	}
	runPolling(context.Background(), bot, func(upd tgbotapi.Update) {
		go r.HandleUpdate(upd)
	})
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	const (
		baseDelay = time.Second
		maxDelay  = 15 * time.Second
	)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			logger.Warnf("polling error: %v; retry in %v", err, d)
			time.Sleep(d)
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}
		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// ---------------- Helpers -----------------

// resolveDSN: DATABASE_URL, иначе собираем из POSTGRES_*, если задана база.
func resolveDSN(dsn string) string {
	if dsn = strings.TrimSpace(dsn); dsn != "" {
		return dsn
	}
	name := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if name == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getenvDefault("POSTGRES_USER", "cbc"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(getenvDefault("PGHOST", "db"), getenvDefault("PGPORT", "5432")),
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func shortHash(s string) string {
	// FNV-1a, стабильно для токена
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return fmt.Sprintf("%016x", h)
}

func safeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		// mysql DSN вида user:pass@tcp(host)/db
		if i := strings.LastIndex(dsn, "@"); i >= 0 {
			return dsn[i+1:]
		}
		return "dsn: parse error"
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, u.User.Username())
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, u.User.Username())
}
