// Package tts озвучивает текст через llm.Speaker с кэшем готового аудио.
package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"lexie-server/api/internal/cache"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/logger"
)

const MaxChars = 4096

var (
	ErrEmptyText = errors.New("tts: text is required")
	ErrTooLong   = fmt.Errorf("tts: text longer than %d characters", MaxChars)
)

type Request struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Type     string `json:"type"`
}

type Audio struct {
	Data   []byte
	MIME   string
	Cached bool
}

type Service struct {
	Speaker llm.Speaker
	Cache   cache.Blob
	Model   string
	Voice   string
	Log     *logger.Logger
}

func (r Request) Validate() error {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxChars {
		return ErrTooLong
	}
	return nil
}

// Key - sha256 от model|voice|language|type|text.
func Key(model, voice, language, typ, text string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{model, voice, language, typ, text}, "|")))
	return hex.EncodeToString(sum[:])
}

func (s *Service) Synthesize(ctx context.Context, in Request) (Audio, error) {
	if err := in.Validate(); err != nil {
		return Audio{}, err
	}
	text := strings.TrimSpace(in.Text)
	key := Key(s.Model, s.Voice, in.Language, in.Type, text)

	if s.Cache != nil {
		data, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			s.log().Warn("tts cache get failed", "error", err)
		}
		if ok {
			return Audio{Data: data, MIME: "audio/mpeg", Cached: true}, nil
		}
	}
	if s.Speaker == nil {
		return Audio{}, fmt.Errorf("%w: no speech engine", llm.ErrNotConfigured)
	}

	data, mime, err := s.Speaker.Speak(ctx, llm.SpeechRequest{Text: text, Voice: s.Voice, Language: in.Language})
	if err != nil {
		if errors.Is(err, llm.ErrUpstream) {
			return Audio{}, err
		}
		return Audio{}, fmt.Errorf("%w: speech: %w", llm.ErrUpstream, err)
	}
	if mime == "" {
		mime = "audio/mpeg"
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, data); err != nil {
			s.log().Warn("tts cache set failed", "error", err)
		}
	}
	return Audio{Data: data, MIME: mime}, nil
}

func (s *Service) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}
