package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"lexie-server/api/internal/llm"
)

const defaultMaxTokens = 4096

type Engine struct {
	APIKey string
	Model  string

	client anthropic.Client
}

func New(apiKey, model string) *Engine {
	e := &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
	e.client = anthropic.NewClient(option.WithAPIKey(e.APIKey), option.WithMaxRetries(0))
	return e
}

func (e *Engine) Name() string     { return "claude" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, in llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: ANTHROPIC_API_KEY is empty", llm.ErrNotConfigured)
	}
	maxTokens := int64(defaultMaxTokens)
	if in.MaxOutputTokens > 0 {
		maxTokens = int64(in.MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.Model),
		MaxTokens: maxTokens,
		Messages:  messages(in),
	}
	if s := strings.TrimSpace(in.Instructions); s != "" {
		params.System = []anthropic.TextBlockParam{{Text: s}}
	}

	msg, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapErr(err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("claude: no text content in response")
	}
	return b.String(), nil
}

func messages(in llm.Request) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(in.History)+1)
	for _, h := range in.History {
		if h.Role == llm.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(h.Content)))
		} else {
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(h.Content)))
		}
	}
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(in.Images)+1)
	for _, img := range in.Images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIME, img.Base64()))
	}
	blocks = append(blocks, anthropic.NewTextBlock(in.Input))
	return append(out, anthropic.NewUserMessage(blocks...))
}

func mapErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	}
	return err
}
