// Package chat - репетитор: контекст материала в системной инструкции плюс история диалога.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"lexie-server/api/internal/chunk"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/logger"
	"lexie-server/api/internal/prompt"
)

const (
	MaxHistory = 20
	maxTokens  = 400
)

var (
	ErrNoMessage = errors.New("chat: message is required")
	ErrNoSession = errors.New("chat: sessionId is required")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Message        string          `json:"message"`
	SessionID      string          `json:"sessionId"`
	ContentID      string          `json:"contentId"`
	ContentType    string          `json:"contentType"`
	ContentContext json.RawMessage `json:"contentContext"`
	MessageHistory []Message       `json:"messageHistory"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrNoMessage
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return ErrNoSession
	}
	return nil
}

type Service struct {
	Engine  llm.Engine
	Prompts *prompt.Catalog
	Log     *logger.Logger
}

func (s *Service) Reply(ctx context.Context, in Request) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	instructions, err := s.Prompts.Render(prompt.Tutor, prompt.Params{
		ContentType: in.ContentType,
		ContentID:   in.ContentID,
		Context:     FormatContext(in.ContentContext),
	})
	if err != nil {
		return "", err
	}

	out, err := s.Engine.Generate(ctx, llm.Request{
		Instructions:    instructions,
		Input:           strings.TrimSpace(in.Message),
		History:         History(in.MessageHistory),
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty chat reply", llm.ErrUpstream)
	}
	if s.Log != nil {
		s.Log.Debug("chat reply", "session", in.SessionID, "history", len(in.MessageHistory))
	}
	return out, nil
}

// History оставляет user/assistant реплики, последние MaxHistory.
func History(in []Message) []llm.Message {
	out := make([]llm.Message, 0, len(in))
	for _, m := range in {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		var role llm.Role
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "user", "student":
			role = llm.RoleUser
		case "assistant", "bot", "ai", "lexie":
			role = llm.RoleAssistant
		default:
			continue
		}
		out = append(out, llm.Message{Role: role, Content: content})
	}
	if len(out) > MaxHistory {
		out = out[len(out)-MaxHistory:]
	}
	return out
}

// FormatContext превращает произвольный JSON контекста в читаемый YAML для инструкции.
// Строка передаётся как есть; всё ограничено DefaultBound символов.
func FormatContext(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "(no material provided)"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return chunk.Budget([]string{strings.TrimSpace(s)}, chunk.DefaultBound)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return chunk.Budget([]string{string(raw)}, chunk.DefaultBound)
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return chunk.Budget([]string{string(raw)}, chunk.DefaultBound)
	}
	return chunk.Budget([]string{strings.TrimSpace(string(b))}, chunk.DefaultBound)
}
