package gpt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"lexie-server/api/internal/llm"
)

type Engine struct {
	APIKey      string
	Model       string
	SpeechModel string
	Voice       string

	client openai.Client
}

func New(apiKey, model, speechModel, voice string) *Engine {
	e := &Engine{
		APIKey:      strings.TrimSpace(apiKey),
		Model:       strings.TrimSpace(model),
		SpeechModel: strings.TrimSpace(speechModel),
		Voice:       strings.TrimSpace(voice),
	}
	// ретраи делает llm.WithRetry, у SDK свои выключаем
	e.client = openai.NewClient(option.WithAPIKey(e.APIKey), option.WithMaxRetries(0))
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, in llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY is empty", llm.ErrNotConfigured)
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(e.Model),
		Messages: messages(in),
	}
	if in.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(in.MaxOutputTokens))
	}
	if in.ExpectJSON && len(in.Images) == 0 {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	if in.Stream {
		return e.stream(ctx, params)
	}
	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", mapErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("gpt: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *Engine) stream(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	s := e.client.Chat.Completions.NewStreaming(ctx, params)
	defer s.Close()

	var b strings.Builder
	for s.Next() {
		chunk := s.Current()
		if len(chunk.Choices) > 0 {
			b.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := s.Err(); err != nil {
		return "", mapErr(err)
	}
	return b.String(), nil
}

func messages(in llm.Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.History)+2)
	if s := strings.TrimSpace(in.Instructions); s != "" {
		out = append(out, openai.SystemMessage(s))
	}
	for _, m := range in.History {
		if m.Role == llm.RoleAssistant {
			out = append(out, openai.AssistantMessage(m.Content))
		} else {
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	if len(in.Images) == 0 {
		return append(out, openai.UserMessage(in.Input))
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(in.Images)+1)
	parts = append(parts, openai.TextContentPart(in.Input))
	for _, img := range in.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    img.DataURL(),
			Detail: "high",
		}))
	}
	return append(out, openai.UserMessage(parts))
}

// Speak синтезирует mp3 через /audio/speech.
func (e *Engine) Speak(ctx context.Context, in llm.SpeechRequest) ([]byte, string, error) {
	if e.APIKey == "" {
		return nil, "", fmt.Errorf("%w: OPENAI_API_KEY is empty", llm.ErrNotConfigured)
	}
	voice := in.Voice
	if voice == "" {
		voice = e.Voice
	}
	resp, err := e.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(e.SpeechModel),
		Input:          in.Text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, "", mapErr(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("gpt speech: read body: %w", err)
	}
	return data, "audio/mpeg", nil
}

func mapErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	}
	return err
}
