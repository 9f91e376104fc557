// Package transcribe расшифровывает страницы параллельно и склеивает их в один документ.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"lexie-server/api/internal/extract"
	"lexie-server/api/internal/imaging"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/logger"
	"lexie-server/api/internal/prompt"
	"lexie-server/api/internal/types"
)

const (
	UntitledTitle = "Untitled Content"
	FailedText    = "[Transcription failed for this page]"

	defaultConcurrency = 4
	maxOutputTokens    = 4096
)

var ErrNoImages = errors.New("transcribe: no images")

// Cache - кэш расшифровок по хэшу картинки; store.TranscriptRepo его реализует.
type Cache interface {
	Find(ctx context.Context, imageHash, engine, model string) (types.Transcript, error)
	Upsert(ctx context.Context, imageHash, engine, model string, t types.Transcript) error
}

type Transcriber struct {
	Engine      llm.Engine
	Prompts     *prompt.Catalog
	Cache       Cache
	Concurrency int
	Log         *logger.Logger
}

// Placeholder подставляется вместо страницы, которую не удалось расшифровать.
func Placeholder() types.Transcript {
	return types.Transcript{
		Title:    UntitledTitle,
		RawText:  FailedText,
		Sections: []types.Section{{Type: types.SectionParagraph, RawText: FailedText}},
		Failed:   true,
	}
}

// Transcribe делает по вызову на картинку, одновременно не больше Concurrency.
// Ошибка одной страницы заменяется заглушкой; ошибка только если картинок нет.
func (t *Transcriber) Transcribe(ctx context.Context, images []imaging.Image) (types.MergedTranscript, error) {
	if len(images) == 0 {
		return types.MergedTranscript{}, ErrNoImages
	}
	log := t.Log
	if log == nil {
		log = logger.Nop()
	}
	instructions, err := t.Prompts.Render(prompt.Transcription, prompt.Params{})
	if err != nil {
		return types.MergedTranscript{}, err
	}

	pages := make([]types.Transcript, len(images))
	g, gctx := errgroup.WithContext(ctx)
	limit := t.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g.SetLimit(limit)

	for i, img := range images {
		g.Go(func() error {
			start := time.Now()
			page, err := t.page(gctx, instructions, img)
			if err != nil {
				log.Warn("transcription failed, using placeholder",
					"image", i+1, "of", len(images), "error", err)
				page = Placeholder()
			}
			log.Debug("page transcribed", "image", i+1, "took_ms", time.Since(start).Milliseconds(), "failed", page.Failed)
			pages[i] = page
			return nil
		})
	}
	_ = g.Wait()

	return Merge(pages), nil
}

func (t *Transcriber) page(ctx context.Context, instructions string, img imaging.Image) (types.Transcript, error) {
	hash := img.Hash()
	if t.Cache != nil {
		if cached, err := t.Cache.Find(ctx, hash, t.Engine.Name(), t.Engine.GetModel()); err == nil {
			return cached, nil
		}
	}

	raw, err := t.Engine.Generate(ctx, llm.Request{
		Instructions:    instructions,
		Input:           "Transcribe this page. Respond with JSON only.",
		Images:          []imaging.Image{img},
		MaxOutputTokens: maxOutputTokens,
		ExpectJSON:      true,
	})
	if err != nil {
		return types.Transcript{}, err
	}

	res := extract.JSON(raw, wireTranscript{})
	if res.Degraded() {
		return types.Transcript{}, res.Err
	}
	page, ok := res.Value.toTranscript()
	if !ok {
		return types.Transcript{}, errors.New("transcribe: page has no text")
	}

	if t.Cache != nil {
		if err := t.Cache.Upsert(ctx, hash, t.Engine.Name(), t.Engine.GetModel(), page); err != nil && t.Log != nil {
			t.Log.Warn("transcript cache upsert failed", "error", err)
		}
	}
	return page, nil
}

// Merge: заголовок первой страницы (даже если она заглушка), текст через пустую строку,
// секции подряд, всё в порядке картинок.
func Merge(pages []types.Transcript) types.MergedTranscript {
	m := types.MergedTranscript{Pages: pages}
	if len(pages) == 0 {
		return m
	}
	m.Title = pages[0].Title
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.RawText)
		m.Sections = append(m.Sections, p.Sections...)
	}
	m.RawText = strings.Join(texts, "\n\n")
	return m
}

type wireSection struct {
	Type    string          `json:"type"`
	Level   json.RawMessage `json:"level"`
	Style   string          `json:"style"`
	RawText string          `json:"raw_text"`
	Items   []string        `json:"items"`
}

type wireTranscript struct {
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	Languages   struct {
		Detected []string `json:"detected"`
		Source   string   `json:"source_language"`
		Target   string   `json:"target_language"`
	} `json:"languages"`
	TextContent struct {
		RawText  string        `json:"raw_text"`
		Sections []wireSection `json:"sections"`
	} `json:"text_content"`
	Vocabulary []struct {
		Source string `json:"source_term"`
		Target string `json:"target_term"`
	} `json:"vocabulary_data"`
}

func (w wireTranscript) toTranscript() (types.Transcript, bool) {
	t := types.Transcript{
		Title:       strings.TrimSpace(w.Title),
		ContentType: strings.TrimSpace(w.ContentType),
		Languages: types.Languages{
			Detected: w.Languages.Detected,
			Source:   w.Languages.Source,
			Target:   w.Languages.Target,
		},
		RawText: strings.TrimSpace(w.TextContent.RawText),
	}
	if t.Title == "" {
		t.Title = UntitledTitle
	}

	var fromSections []string
	for _, s := range w.TextContent.Sections {
		sec := types.Section{
			Type:    sectionType(s.Type),
			Level:   level(s.Level),
			Style:   s.Style,
			RawText: strings.TrimSpace(s.RawText),
			Items:   s.Items,
		}
		if sec.RawText == "" && len(sec.Items) == 0 {
			continue
		}
		t.Sections = append(t.Sections, sec)
		if sec.RawText != "" {
			fromSections = append(fromSections, sec.RawText)
		}
		fromSections = append(fromSections, sec.Items...)
	}
	if t.RawText == "" {
		t.RawText = strings.Join(fromSections, "\n")
	}
	for _, v := range w.Vocabulary {
		if v.Source != "" || v.Target != "" {
			t.Vocabulary = append(t.Vocabulary, types.VocabularyItem{SourceTerm: v.Source, TargetTerm: v.Target})
		}
	}
	if t.RawText == "" {
		return types.Transcript{}, false
	}
	if len(t.Sections) == 0 {
		t.Sections = []types.Section{{Type: types.SectionParagraph, RawText: t.RawText}}
	}
	return t, true
}

func sectionType(s string) types.SectionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heading", "header", "title":
		return types.SectionHeading
	case "list", "numbered_list", "bulleted_list":
		return types.SectionList
	default:
		return types.SectionParagraph
	}
}

// level: модель пишет и 2, и "2"
func level(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, _ := strconv.Atoi(s)
	return n
}
