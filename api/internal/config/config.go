package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
	CORSOrigins string `mapstructure:"cors_origins"`

	// извлечение
	MinResolved   int    `mapstructure:"min_resolved"`
	RuleSet       string `mapstructure:"rule_set"` // full | minimal
	OCREngine     string `mapstructure:"ocr_engine"`
	TesseractLang string `mapstructure:"tesseract_lang"`
	OCRWorkers    int    `mapstructure:"ocr_workers"`
	YCOAuthToken  string `mapstructure:"yc_oauth_token"`
	YCFolderID    string `mapstructure:"yc_folder_id"`

	// LLM
	LLMDefault     string `mapstructure:"llm_default"`
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	GeminiModel    string `mapstructure:"gemini_model"`
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	OpenAIModel    string `mapstructure:"openai_model"`
	DeepSeekAPIKey string `mapstructure:"deepseek_api_key"`
	DeepSeekModel  string `mapstructure:"deepseek_model"`
	PromptDir      string `mapstructure:"prompt_dir"`

	// хранилище
	DatabaseURL string `mapstructure:"database_url"`
	DBDriver    string `mapstructure:"db_driver"`

	// бот
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	WebhookURL       string `mapstructure:"webhook_url"`
}

var defaults = map[string]any{
	"port":               "8800",
	"log_level":          "info",
	"max_upload_mb":      16,
	"cors_origins":       "*",
	"min_resolved":       3,
	"rule_set":           "full",
	"ocr_engine":         "tesseract",
	"tesseract_lang":     "eng",
	"ocr_workers":        4,
	"yc_oauth_token":     "",
	"yc_folder_id":       "",
	"llm_default":        "gemini",
	"gemini_api_key":     "",
	"gemini_model":       "gemini-2.0-flash",
	"openai_api_key":     "",
	"openai_model":       "gpt-4o-mini",
	"deepseek_api_key":   "",
	"deepseek_model":     "deepseek-chat",
	"prompt_dir":         "",
	"database_url":       "",
	"db_driver":          "pgx",
	"telegram_bot_token": "",
	"webhook_url":        "",
}

// Load reads env (PORT, GEMINI_API_KEY, ...) on top of an optional config
// file named by CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if f := os.Getenv("CONFIG_FILE"); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", f, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.OCREngine = strings.ToLower(strings.TrimSpace(c.OCREngine))
	switch c.OCREngine {
	case "tesseract":
	case "yandex":
		if c.YCOAuthToken == "" || c.YCFolderID == "" {
			return fmt.Errorf("ocr_engine=yandex needs YC_OAUTH_TOKEN and YC_FOLDER_ID")
		}
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q; use tesseract | yandex", c.OCREngine)
	}
	c.RuleSet = strings.ToLower(strings.TrimSpace(c.RuleSet))
	if c.RuleSet != "full" && c.RuleSet != "minimal" {
		return fmt.Errorf("unknown RULE_SET %q; use full | minimal", c.RuleSet)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be > 0")
	}
	if c.MinResolved <= 0 {
		return fmt.Errorf("MIN_RESOLVED must be > 0")
	}
	if c.OCRWorkers <= 0 {
		c.OCRWorkers = 1
	}
	return nil
}

// MaxUploadBytes: лимит тела запроса.
func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }
