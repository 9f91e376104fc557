// Package classify решает, что на фото: учебный материал или задача.
package classify

import (
	"context"
	"strings"

	"lexie-server/api/internal/chunk"
	"lexie-server/api/internal/extract"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/logger"
	"lexie-server/api/internal/prompt"
	"lexie-server/api/internal/types"
)

const maxOutputTokens = 512

// finnishLetters - если в тексте есть хоть одна, язык принудительно Finnish.
const finnishLetters = "äöåÄÖÅ"

type Classifier struct {
	Engine  llm.Engine
	Prompts *prompt.Catalog
	Log     *logger.Logger
}

type wire struct {
	Classification string `json:"classification"`
	Confidence     string `json:"confidence"`
	Reasoning      string `json:"reasoning"`
	SubjectArea    string `json:"subject_area"`
	Language       string `json:"language"`
}

// Classify никогда не роняет пайплайн из-за формата ответа: при мусоре
// возвращается DefaultClassification. Ошибка только от самого вызова модели.
func (c *Classifier) Classify(ctx context.Context, text string) (types.Classification, error) {
	log := c.Log
	if log == nil {
		log = logger.Nop()
	}
	instructions, err := c.Prompts.Render(prompt.Classification, prompt.Params{})
	if err != nil {
		return types.Classification{}, err
	}

	raw, err := c.Engine.Generate(ctx, llm.Request{
		Instructions:    instructions,
		Input:           chunk.Budget(chunk.Split(text, chunk.DefaultBound), chunk.DefaultBound),
		MaxOutputTokens: maxOutputTokens,
		ExpectJSON:      true,
	})
	if err != nil {
		return types.Classification{}, err
	}

	res := extract.JSON(raw, wire{})
	var out types.Classification
	if res.Degraded() {
		log.Warn("classification unparseable, using default", "outcome", res.Outcome.String(), "error", res.Err)
		out = types.DefaultClassification()
	} else {
		out = fromWire(res.Value)
	}
	return OverrideLanguage(out, text), nil
}

func fromWire(w wire) types.Classification {
	out := types.DefaultClassification()
	if cat, ok := types.ParseCategory(w.Classification); ok {
		out.Category = cat
	}
	if conf, ok := types.ParseConfidence(w.Confidence); ok {
		out.Confidence = conf
	}
	if s, ok := types.ParseSubjectArea(w.SubjectArea); ok {
		out.SubjectArea = s
	}
	if lang := strings.TrimSpace(w.Language); lang != "" {
		out.Language = lang
	}
	out.Reasoning = strings.TrimSpace(w.Reasoning)
	return out
}

// OverrideLanguage - механическое правило по алфавиту, всегда побеждает модель.
func OverrideLanguage(c types.Classification, text string) types.Classification {
	if strings.ContainsAny(text, finnishLetters) {
		c.Language = "Finnish"
	}
	return c
}
