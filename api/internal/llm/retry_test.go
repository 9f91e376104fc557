package llm_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/llm/llmtest"
)

func counting(errs ...error) (*llmtest.Fake, *int) {
	n := 0
	f := llmtest.New(llmtest.Rule{Reply: func(llm.Request) (string, error) {
		i := n
		n++
		if i < len(errs) && errs[i] != nil {
			return "", errs[i]
		}
		return "ok", nil
	}})
	return f, &n
}

var fast = llm.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetryOnRateLimit(t *testing.T) {
	rl := fmt.Errorf("%w: 429", llm.ErrRateLimited)
	f, n := counting(rl, rl)
	out, err := llm.WithRetry(f, fast, nil).Generate(context.Background(), llm.Request{})
	if err != nil || out != "ok" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if *n != 3 {
		t.Fatalf("calls = %d", *n)
	}
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	rl := errors.New("Rate limit reached for gpt-4o")
	f, n := counting(rl, rl, rl, rl)
	_, err := llm.WithRetry(f, fast, nil).Generate(context.Background(), llm.Request{})
	if !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
	if *n != 3 {
		t.Fatalf("calls = %d", *n)
	}
}

func TestNoRetryOnOtherErrors(t *testing.T) {
	boom := errors.New("invalid api key")
	f, n := counting(boom)
	_, err := llm.WithRetry(f, fast, nil).Generate(context.Background(), llm.Request{})
	if !errors.Is(err, llm.ErrUpstream) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if *n != 1 {
		t.Fatalf("calls = %d", *n)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	rl := fmt.Errorf("%w", llm.ErrRateLimited)
	f, n := counting(rl, rl, rl)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := llm.Policy{Attempts: 3, BaseDelay: time.Hour}
	_, err := llm.WithRetry(f, slow, nil).Generate(ctx, llm.Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if *n != 1 {
		t.Fatalf("calls = %d", *n)
	}
}

func TestEnginesGetEngine(t *testing.T) {
	f := llmtest.New()
	engs := &llm.Engines{GPT: f}
	if e, err := engs.GetEngine("openai"); err != nil || e != f {
		t.Fatalf("gpt: %v", err)
	}
	if _, err := engs.GetEngine("gemini"); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("gemini: %v", err)
	}
	if _, err := engs.GetEngine("llama"); err == nil {
		t.Fatalf("unknown engine accepted")
	}
}
