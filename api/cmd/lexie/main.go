package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"lexie-server/api/internal/app"
	"lexie-server/api/internal/config"
	"lexie-server/api/internal/handle"
	"lexie-server/api/internal/httpserver"
	"lexie-server/api/internal/logger"
	"lexie-server/api/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer a.Close()

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(log),
		middleware.CORS(),
		middleware.BodyLimit(cfg.MaxBodyBytes),
		middleware.RateLimit(limiter(a), cfg.RateLimitWindow, log),
	)
	r.GET("/healthz", gin.WrapF(httpserver.Healthz(a.Ping)))

	handle.New(handle.Options{
		Pipeline:      a.Pipeline,
		Chat:          a.Chat,
		TTS:           a.TTS,
		Log:           log,
		Dev:           cfg.IsDev(),
		Timeout:       cfg.RequestTimeout,
		MaxImageBytes: cfg.MaxTotalImageBytes,
	}).Register(r)

	if err := httpserver.Serve(ctx, ":"+cfg.Port, r, log); err != nil {
		log.Error("server stopped", "error", err)
	}
}

// limiter: с Redis лимит общий для всех инстансов, без него - на процесс.
func limiter(a *app.App) middleware.Limiter {
	if a.Redis != nil {
		return middleware.NewRedisLimiter(a.Redis, a.Config.RateLimitMax, a.Config.RateLimitWindow)
	}
	return middleware.NewMemoryLimiter(a.Config.RateLimitMax, a.Config.RateLimitWindow)
}
