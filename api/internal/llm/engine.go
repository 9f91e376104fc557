// Package llm - граница с моделью: один вызов generate(instructions, input) -> текст.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexie-server/api/internal/imaging"
)

var (
	// ErrRateLimited - модель ответила 429/квотой; только на неё срабатывает ретрай.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrUpstream оборачивает любую окончательную ошибку вызова модели (HTTP 503).
	ErrUpstream = errors.New("llm: upstream failure")
	// ErrNotConfigured - у движка нет ключа.
	ErrNotConfigured = errors.New("llm: engine not configured")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Request struct {
	Instructions    string
	Input           string
	Images          []imaging.Image
	History         []Message
	MaxOutputTokens int
	ExpectJSON      bool
	// Stream: ответ собирается по кускам, результат тот же.
	Stream bool
}

type Engine interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, in Request) (string, error)
}

type SpeechRequest struct {
	Text     string
	Voice    string
	Language string
}

// Speaker синтезирует речь; возвращает байты и их MIME.
type Speaker interface {
	Speak(ctx context.Context, in SpeechRequest) ([]byte, string, error)
}

type Engines struct {
	GPT    Engine
	Gemini Engine
	Claude Engine
}

func (e *Engines) GetEngine(name string) (Engine, error) {
	var eng Engine
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gpt", "openai":
		eng = e.GPT
	case "gemini", "google":
		eng = e.Gemini
	case "claude", "anthropic":
		eng = e.Claude
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use gpt | gemini | claude", name)
	}
	if eng == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	return eng, nil
}

// IsRateLimit - грубое распознавание по тексту для SDK, которые не отдают статус типизированно.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "resource_exhausted") ||
		strings.Contains(s, "resource has been exhausted")
}
