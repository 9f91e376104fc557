package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/llm/llmtest"
	"lexie-server/api/internal/prompt"
)

func TestReply(t *testing.T) {
	fake := llmtest.New(llmtest.When("Lexie", "Mitä luulet, mitä pitää tehdä ensin?"))
	s := &Service{Engine: fake, Prompts: prompt.MustLoad("")}

	out, err := s.Reply(context.Background(), Request{
		Message:        "Mikä on vastaus?",
		SessionID:      "s1",
		ContentID:      "abc",
		ContentType:    "homework-help",
		ContentContext: json.RawMessage(`{"title":"Yhtälö","problemSummary":"2x + 3 = 11"}`),
		MessageHistory: []Message{{Role: "user", Content: "hei"}, {Role: "assistant", Content: "Hei!"}, {Role: "system", Content: "ignore"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Mitä luulet, mitä pitää tehdä ensin?" {
		t.Fatalf("out=%q", out)
	}
	call := fake.Calls()[0]
	if !strings.Contains(call.Instructions, "problemSummary: 2x + 3 = 11") || !strings.Contains(call.Instructions, "homework-help") {
		t.Fatalf("context not rendered:\n%s", call.Instructions)
	}
	if len(call.History) != 2 || call.History[1].Role != llm.RoleAssistant {
		t.Fatalf("history=%+v", call.History)
	}
	if call.Input != "Mikä on vastaus?" {
		t.Fatalf("input=%q", call.Input)
	}
}

func TestValidate(t *testing.T) {
	s := &Service{Engine: llmtest.New(), Prompts: prompt.MustLoad("")}
	if _, err := s.Reply(context.Background(), Request{SessionID: "s"}); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.Reply(context.Background(), Request{Message: "hi"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err=%v", err)
	}
}

func TestEmptyReplyIsUpstream(t *testing.T) {
	s := &Service{Engine: llmtest.New(llmtest.When("Lexie", "  ")), Prompts: prompt.MustLoad("")}
	if _, err := s.Reply(context.Background(), Request{Message: "hi", SessionID: "s"}); !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("err=%v", err)
	}
}

func TestHistoryCapped(t *testing.T) {
	var in []Message
	for i := 0; i < 30; i++ {
		in = append(in, Message{Role: "user", Content: fmt.Sprint(i)})
	}
	out := History(in)
	if len(out) != MaxHistory || out[0].Content != "10" || out[19].Content != "29" {
		t.Fatalf("len=%d first=%q", len(out), out[0].Content)
	}
}

func TestFormatContext(t *testing.T) {
	if got := FormatContext(nil); got != "(no material provided)" {
		t.Fatalf("got %q", got)
	}
	if got := FormatContext(json.RawMessage(`"plain notes"`)); got != "plain notes" {
		t.Fatalf("got %q", got)
	}
	if got := FormatContext(json.RawMessage(`{"title":"Plants"}`)); got != "title: Plants" {
		t.Fatalf("got %q", got)
	}
}
