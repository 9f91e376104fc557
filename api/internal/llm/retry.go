package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexie-server/api/internal/logger"
)

type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultPolicy = Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

type retrying struct {
	Engine
	policy Policy
	log    *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry оборачивает движок единой политикой: повтор только на ErrRateLimited
// с экспоненциальной паузой, всё остальное отдаётся сразу. Итоговая ошибка всегда в ErrUpstream.
func WithRetry(e Engine, p Policy, log *logger.Logger) Engine {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &retrying{Engine: e, policy: p, log: log, sleep: sleepCtx}
}

func (r *retrying) Generate(ctx context.Context, in Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		out, err := r.Engine.Generate(ctx, in)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRateLimit(err) || attempt == r.policy.Attempts {
			break
		}
		d := r.policy.delay(attempt)
		r.log.Warn("llm rate limited, retrying",
			"engine", r.Engine.Name(), "attempt", attempt, "delay", d.String(), "error", err)
		if err := r.sleep(ctx, d); err != nil {
			lastErr = err
			break
		}
	}
	if errors.Is(lastErr, ErrUpstream) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %s: %w", ErrUpstream, r.Engine.Name(), lastErr)
}

// Speak пробрасывается, если обёрнутый движок умеет речь.
func (r *retrying) Speak(ctx context.Context, in SpeechRequest) ([]byte, string, error) {
	sp, ok := r.Engine.(Speaker)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s cannot synthesize speech", ErrNotConfigured, r.Engine.Name())
	}
	return sp.Speak(ctx, in)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
