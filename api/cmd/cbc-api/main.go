package main

import (
	"context"
	"os"
	"strings"

	"cbc-anemia/api/internal/app"
	"cbc-anemia/api/internal/config"
	"cbc-anemia/api/internal/handle"
	"cbc-anemia/api/internal/httpserver"
	"cbc-anemia/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	// платформенный PORT важнее конфига
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer a.Close()

	h := handle.New(a.Svc, a.Results())
	// base64 раздувает картинку на 4/3, плюс JSON-обвязка
	body := cfg.MaxUploadBytes()*4/3 + 64<<10
	router := httpserver.NewRouter(h, httpserver.Options{
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: body,
	})

	addr := ":" + cfg.Port
	if err := httpserver.StartHTTP(addr, router); err != nil {
		logger.Errorf("http: %v", err)
	}
}
