package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // без .env
	for _, k := range []string{"LEXIE_CONFIG", "PORT", "APP_ENV", "NODE_ENV", "LLM_ENGINE", "REQUEST_TIMEOUT", "LEDGER_CAPACITY"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "3000" || cfg.LLMEngine != "gpt" || cfg.RequestTimeout != 120*time.Second || cfg.LedgerCapacity != 10000 {
		t.Fatalf("%+v", cfg)
	}
	if cfg.IsDev() {
		t.Fatal("production by default")
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "lexie.yaml")
	yml := "port: \"4000\"\nllm_engine: gemini\nrequest_timeout: 30s\nrate_limit_max: 7\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEXIE_CONFIG", path)
	t.Setenv("LLM_ENGINE", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("RATE_LIMIT_MAX", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "5000")
	t.Setenv("NODE_ENV", "development")
	t.Setenv("RATE_LIMIT_WINDOW", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "5000" {
		t.Fatalf("env should win: %s", cfg.Port)
	}
	if cfg.LLMEngine != "gemini" || cfg.RequestTimeout != 30*time.Second || cfg.RateLimitMax != 7 {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Fatalf("bare seconds: %s", cfg.RateLimitWindow)
	}
	if !cfg.IsDev() {
		t.Fatal("NODE_ENV=development should be dev")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("err=%v", err)
	}
	cfg.OpenAIAPIKey = "sk"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.LLMEngine = "llama"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown engine should fail")
	}
}
