package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"lexie-server/api/internal/llm"
)

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, in llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: GEMINI_API_KEY is empty", llm.ErrNotConfigured)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.SetTemperature(0.4)
	if in.ExpectJSON {
		m.ResponseMIMEType = "application/json"
	}
	if in.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(in.MaxOutputTokens))
	}
	if s := strings.TrimSpace(in.Instructions); s != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(s)}}
	}

	parts := []genai.Part{genai.Text(in.Input)}
	for _, img := range in.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MIME, Data: img.Data})
	}

	if len(in.History) > 0 {
		cs := m.StartChat()
		for _, h := range in.History {
			role := "user"
			if h.Role == llm.RoleAssistant {
				role = "model"
			}
			cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(h.Content)}})
		}
		resp, err := cs.SendMessage(ctx, parts...)
		if err != nil {
			return "", mapErr(err)
		}
		return allText(resp), nil
	}

	if in.Stream {
		var b strings.Builder
		it := m.GenerateContentStream(ctx, parts...)
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return "", mapErr(err)
			}
			b.WriteString(allText(resp))
		}
		return b.String(), nil
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", mapErr(err)
	}
	txt := allText(resp)
	if txt == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return txt, nil
}

// allText склеивает текстовые части первого кандидата с содержимым.
func allText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		return b.String()
	}
	return ""
}

func mapErr(err error) error {
	if llm.IsRateLimit(err) {
		return fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	}
	return err
}
