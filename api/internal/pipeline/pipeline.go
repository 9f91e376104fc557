// Package pipeline - машина состояний одного запроса:
// расшифровка -> классификация -> одна из двух веток генерации -> запись в ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lexie-server/api/internal/chunk"
	"lexie-server/api/internal/classify"
	"lexie-server/api/internal/extract"
	"lexie-server/api/internal/imaging"
	"lexie-server/api/internal/ledger"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/logger"
	"lexie-server/api/internal/prompt"
	"lexie-server/api/internal/transcribe"
	"lexie-server/api/internal/types"
)

// ErrNotFound - нет записи в ledger или нужного поля в результате.
var ErrNotFound = errors.New("pipeline: not found")

// HintCache - кэш дополнительных подсказок; store.HintRepo его реализует.
type HintCache interface {
	Find(ctx context.Context, processingID string, cardNumber int) (string, error)
	Upsert(ctx context.Context, processingID string, cardNumber int, hint string) error
}

type Pipeline struct {
	Engine      llm.Engine
	Prompts     *prompt.Catalog
	Transcriber *transcribe.Transcriber
	Classifier  *classify.Classifier
	Ledger      *ledger.Store
	Hints       HintCache
	Log         *logger.Logger

	now   func() time.Time
	newID func() string
}

type Options struct {
	Engine      llm.Engine
	Prompts     *prompt.Catalog
	Ledger      *ledger.Store
	Transcripts transcribe.Cache
	Hints       HintCache
	Concurrency int
	Log         *logger.Logger
}

func New(o Options) *Pipeline {
	log := o.Log
	if log == nil {
		log = logger.Nop()
	}
	led := o.Ledger
	if led == nil {
		led = ledger.New(0)
	}
	return &Pipeline{
		Engine:  o.Engine,
		Prompts: o.Prompts,
		Transcriber: &transcribe.Transcriber{
			Engine:      o.Engine,
			Prompts:     o.Prompts,
			Cache:       o.Transcripts,
			Concurrency: o.Concurrency,
			Log:         log,
		},
		Classifier: &classify.Classifier{Engine: o.Engine, Prompts: o.Prompts, Log: log},
		Ledger:     led,
		Hints:      o.Hints,
		Log:        log,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// state протаскивается через стадии по значению; стадии его не меняют.
type state struct {
	id      string
	started time.Time
	merged  types.MergedTranscript
	class   types.Classification
	bucket  Bucket
	chunks  []string
	log     *logger.Logger
}

// Run прогоняет картинки через весь пайплайн. Запись в ledger создаётся до первого
// вызова модели и закрывается до возврата, так что по ProcessingID можно опрашивать статус.
func (p *Pipeline) Run(ctx context.Context, images []imaging.Image) (*types.Result, error) {
	return p.RunID(ctx, p.newID(), images)
}

func (p *Pipeline) RunID(ctx context.Context, id string, images []imaging.Image) (*types.Result, error) {
	st := state{id: id, started: p.now(), log: p.Log.With("processing_id", id)}
	p.Ledger.Create(id)
	st.log.Info("processing started", "images", len(images))

	res, err := p.run(ctx, st, images)
	if err != nil {
		st.log.Error("processing failed", "error", err)
		p.Ledger.Fail(id, err)
		return nil, err
	}
	p.Ledger.Complete(id, res)
	st.log.Info("processing completed",
		"content_type", res.ContentType, "took_ms", p.now().Sub(st.started).Milliseconds())
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, st state, images []imaging.Image) (*types.Result, error) {
	p.advance(st, ledger.StageTranscribing)
	merged, err := p.Transcriber.Transcribe(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	st.merged = merged

	p.advance(st, ledger.StageClassifying)
	class, err := p.Classifier.Classify(ctx, merged.RawText)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	st.class = class
	st.bucket = BucketFor(merged.RawText)
	st.chunks = chunk.Split(merged.RawText, chunk.DefaultBound)
	st.log.Info("classified",
		"category", class.Category, "subject", class.SubjectArea,
		"language", class.Language, "confidence", class.Confidence, "bucket", st.bucket)

	p.advance(st, ledger.StageGenerating)
	var res *types.Result
	switch class.Category {
	case types.CategoryProblem:
		res, err = p.homework(ctx, st)
	default:
		res, err = p.studySet(ctx, st)
	}
	if err != nil {
		return nil, err
	}

	c := class
	res.Classification = &c
	res.RawTextContent = merged.RawText
	res.ProcessingID = st.id
	res.CreatedAt = st.started.UnixMilli()
	res.UpdatedAt = p.now().UnixMilli()
	if res.Language == "" {
		res.Language = class.Language
	}
	return res, nil
}

func (p *Pipeline) advance(st state, stage ledger.Stage) {
	p.Ledger.Advance(st.id, stage)
	st.log.Debug("stage", "stage", stage)
}

// generate - один вызов модели с инструкцией из каталога.
func (p *Pipeline) generate(ctx context.Context, name string, params prompt.Params, input string, maxTokens int) (string, error) {
	instructions, err := p.Prompts.Render(name, params)
	if err != nil {
		return "", err
	}
	out, err := p.Engine.Generate(ctx, llm.Request{
		Instructions:    instructions,
		Input:           input,
		MaxOutputTokens: maxTokens,
		ExpectJSON:      true,
		Stream:          maxTokens >= streamFrom,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func noteDegraded[T any](st state, call string, r extract.Result[T]) {
	if r.Outcome == extract.Parsed {
		return
	}
	if r.Degraded() {
		st.log.Warn("model output unusable, fallback applied", "call", call, "error", r.Err)
		return
	}
	st.log.Debug("model output recovered", "call", call, "outcome", r.Outcome.String())
}

func isFinnish(language string) bool {
	l := strings.ToLower(strings.TrimSpace(language))
	return l == "finnish" || l == "suomi" || l == "fi"
}
