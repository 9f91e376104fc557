// Package llmtest - сценарный движок для тестов пайплайна и хендлеров.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"lexie-server/api/internal/llm"
)

// Rule отвечает на запрос, если Match вернул true. Первый подходящий выигрывает.
type Rule struct {
	Match func(llm.Request) bool
	Reply func(llm.Request) (string, error)
}

type Fake struct {
	mu    sync.Mutex
	rules []Rule
	calls []llm.Request
	audio []byte
}

func New(rules ...Rule) *Fake { return &Fake{rules: rules} }

func (f *Fake) Name() string     { return "fake" }
func (f *Fake) GetModel() string { return "fake-1" }

func (f *Fake) Generate(_ context.Context, in llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	rules := f.rules
	f.mu.Unlock()

	for _, r := range rules {
		if r.Match == nil || r.Match(in) {
			return r.Reply(in)
		}
	}
	return "", nil
}

func (f *Fake) Speak(_ context.Context, in llm.SpeechRequest) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, llm.Request{Input: in.Text})
	if f.audio != nil {
		return f.audio, "audio/mpeg", nil
	}
	return []byte("ID3" + in.Text), "audio/mpeg", nil
}

func (f *Fake) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}

// When - правило по подстроке в инструкциях.
func When(instructionsContain string, reply string) Rule {
	return Rule{
		Match: func(in llm.Request) bool { return strings.Contains(in.Instructions, instructionsContain) },
		Reply: func(llm.Request) (string, error) { return reply, nil },
	}
}

// Fail - правило, возвращающее ошибку.
func Fail(instructionsContain string, err error) Rule {
	return Rule{
		Match: func(in llm.Request) bool { return strings.Contains(in.Instructions, instructionsContain) },
		Reply: func(llm.Request) (string, error) { return "", err },
	}
}
