package app

import (
	"context"
	"errors"
	"testing"

	"lexie-server/api/internal/config"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/logger"
)

func TestEnginesOnlyWithKeys(t *testing.T) {
	cfg := config.Defaults()
	cfg.GeminiAPIKey = "g-key"
	engs := Engines(&cfg, logger.Nop())

	if engs.GPT != nil || engs.Claude != nil {
		t.Fatal("engines without keys must stay nil")
	}
	e, err := engs.GetEngine("gemini")
	if err != nil || e.Name() != "gemini" || e.GetModel() != cfg.GeminiModel {
		t.Fatalf("%v %v", e, err)
	}
	if _, err := engs.GetEngine("gpt"); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("err=%v", err)
	}
}

func TestBuildWithoutStorage(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "PGHOST", "POSTGRES_PASSWORD"} {
		t.Setenv(k, "")
	}
	cfg := config.Defaults()
	cfg.OpenAIAPIKey = "sk-test"

	a, err := Build(context.Background(), &cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.DB != nil || a.Redis != nil {
		t.Fatal("no storage configured")
	}
	if a.Pipeline.Hints != nil || a.Pipeline.Transcriber.Cache != nil {
		t.Fatal("caches must be off without a database")
	}
	if a.TTS.Speaker == nil {
		t.Fatal("gpt engine should provide speech")
	}
	if err := a.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestBuildUnknownEngine(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLMEngine = "llama"
	if _, err := Build(context.Background(), &cfg, logger.Nop()); err == nil {
		t.Fatal("expected error")
	}
}
