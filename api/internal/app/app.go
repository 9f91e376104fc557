// Package app собирает зависимости, общие для HTTP-сервера и телеграм-бота.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lexie-server/api/internal/cache"
	"lexie-server/api/internal/chat"
	"lexie-server/api/internal/config"
	"lexie-server/api/internal/ledger"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/llm/claude"
	"lexie-server/api/internal/llm/gemini"
	"lexie-server/api/internal/llm/gpt"
	"lexie-server/api/internal/logger"
	"lexie-server/api/internal/pipeline"
	"lexie-server/api/internal/prompt"
	"lexie-server/api/internal/store"
	"lexie-server/api/internal/transcribe"
	"lexie-server/api/internal/tts"
)

const (
	audioTTL          = 7 * 24 * time.Hour
	memoryAudioSize   = 512
	transcriptsMaxAge = 30 * 24 * time.Hour
)

type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Engine   llm.Engine
	Pipeline *pipeline.Pipeline
	Chat     *chat.Service
	TTS      *tts.Service

	// Redis и DB - nil, если не настроены.
	Redis *redis.Client
	DB    *sql.DB
}

// Engines создаёт движки, для которых есть ключ, каждый под общей политикой ретраев.
func Engines(cfg *config.Config, log *logger.Logger) *llm.Engines {
	engs := &llm.Engines{}
	if cfg.OpenAIAPIKey != "" {
		engs.GPT = llm.WithRetry(gpt.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.TTSModel, cfg.TTSVoice), llm.DefaultPolicy, log)
	}
	if cfg.GeminiAPIKey != "" {
		engs.Gemini = llm.WithRetry(gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel), llm.DefaultPolicy, log)
	}
	if cfg.AnthropicAPIKey != "" {
		engs.Claude = llm.WithRetry(claude.New(cfg.AnthropicAPIKey, cfg.AnthropicModel), llm.DefaultPolicy, log)
	}
	return engs
}

func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	engs := Engines(cfg, log)
	engine, err := engs.GetEngine(cfg.LLMEngine)
	if err != nil {
		return nil, err
	}
	log.Info("llm engine selected", "engine", engine.Name(), "model", engine.GetModel())

	prompts, err := prompt.Load(cfg.PromptDir)
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}

	a := &App{Config: cfg, Log: log, Engine: engine}

	var audio cache.Blob = cache.NewMemory(memoryAudioSize, audioTTL)
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
		audio = cache.NewRedis(rdb, "lexie:tts:", audioTTL)
		log.Info("redis connected")
	}

	var (
		transcripts transcribe.Cache
		hints       pipeline.HintCache
	)
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = store.ResolveDSN()
	}
	if dsn != "" {
		db, err := store.Open(ctx, dsn)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := store.Migrate(ctx, db); err != nil {
			_ = db.Close()
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		transcripts = store.NewTranscriptRepo(db, transcriptsMaxAge)
		hints = store.NewHintRepo(db)
		log.Info("db connected", "dsn", store.SafeDSNSummary(dsn))
	}

	a.Pipeline = pipeline.New(pipeline.Options{
		Engine:      engine,
		Prompts:     prompts,
		Ledger:      ledger.New(cfg.LedgerCapacity),
		Transcripts: transcripts,
		Hints:       hints,
		Concurrency: cfg.TranscribeConcurrency,
		Log:         log,
	})
	a.Chat = &chat.Service{Engine: engine, Prompts: prompts, Log: log}

	// речь синтезирует только OpenAI
	var speaker llm.Speaker
	if sp, ok := engs.GPT.(llm.Speaker); ok {
		speaker = sp
	}
	a.TTS = &tts.Service{Speaker: speaker, Cache: audio, Model: cfg.TTSModel, Voice: cfg.TTSVoice, Log: log}
	return a, nil
}

// Ping проверяет внешние хранилища; годится для /healthz.
func (a *App) Ping(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
