package pipeline

import (
	"context"
	"fmt"
	"strings"

	"lexie-server/api/internal/chunk"
	"lexie-server/api/internal/extract"
	"lexie-server/api/internal/prompt"
	"lexie-server/api/internal/types"
)

const (
	analysisTokens = 2000
	cardsTokens    = 3000
	hintTokens     = 400
)

type analysis struct {
	Title            string `json:"title"`
	ProblemSummary   string `json:"problem_summary"`
	ProblemType      string `json:"problem_type"`
	ApproachGuidance string `json:"approach_guidance"`
	Language         string `json:"language"`
}

type wireCard struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	Hint        string `json:"hint"`
}

// homework - ветка PROBLEM: разбор задачи, затем концепт-карточки на его основе.
func (p *Pipeline) homework(ctx context.Context, st state) (*types.Result, error) {
	a, err := p.analyze(ctx, st)
	if err != nil {
		return nil, err
	}
	cards, err := p.conceptCards(ctx, st, a)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = st.merged.Title
	}
	return &types.Result{
		Title:        title,
		ContentType:  types.ContentHomeworkHelp,
		Introduction: homeworkIntro(st.class.Language),
		Language:     st.class.Language,
		HomeworkHelp: &types.HomeworkHelp{
			ProblemSummary:   a.ProblemSummary,
			ProblemType:      a.ProblemType,
			ApproachGuidance: a.ApproachGuidance,
			ConceptCards:     cards,
		},
	}, nil
}

func (p *Pipeline) analyze(ctx context.Context, st state) (analysis, error) {
	params := prompt.Params{
		Bucket:   string(st.bucket),
		Subject:  string(st.class.SubjectArea),
		Language: st.class.Language,
	}
	raw, err := p.generate(ctx, prompt.Analysis, params, chunk.Budget(st.chunks, chunk.DefaultBound), analysisTokens)
	if err != nil {
		return analysis{}, err
	}

	fallback := analysis{
		Title:          st.merged.Title,
		ProblemSummary: st.merged.RawText,
		ProblemType:    string(st.class.SubjectArea),
		Language:       st.class.Language,
	}
	r := extract.JSON(raw, fallback)
	noteDegraded(st, prompt.Analysis, r)
	a := r.Value
	a.ProblemSummary = strings.TrimSpace(a.ProblemSummary)
	a.ApproachGuidance = strings.TrimSpace(a.ApproachGuidance)
	if a.ProblemType == "" {
		a.ProblemType = fallback.ProblemType
	}

	a.ProblemSummary = CompleteSummary(a.ProblemSummary, st.merged.RawText, st.merged.Title)
	return a, nil
}

// CompleteSummary: пересказ короче половины исходника считается потерей и
// заменяется исходным текстом целиком. Пустым итог не бывает.
func CompleteSummary(summary, original, title string) string {
	original = strings.TrimSpace(original)
	if chunk.Len(summary)*2 < chunk.Len(original) {
		summary = original
	}
	if summary == "" {
		summary = original
	}
	if summary == "" {
		summary = strings.TrimSpace(title)
	}
	if summary == "" {
		summary = "-"
	}
	return summary
}

func (p *Pipeline) conceptCards(ctx context.Context, st state, a analysis) ([]types.ConceptCard, error) {
	count := ConceptCardCount(st.bucket)
	params := prompt.Params{
		Bucket:   string(st.bucket),
		Subject:  string(st.class.SubjectArea),
		Language: st.class.Language,
		Count:    count,
	}
	content := chunk.Budget(chunk.Split(st.merged.RawText, chunk.CardBound), chunk.CardBound)
	input := fmt.Sprintf("Title: %s\nProblem type: %s\nApproach: %s\n\nProblem:\n%s",
		a.Title, a.ProblemType, a.ApproachGuidance, content)

	raw, err := p.generate(ctx, prompt.ConceptCards, params, input, cardsTokens)
	if err != nil {
		return nil, err
	}
	r := extract.Field[[]wireCard](raw, nil, "concept_cards", "conceptCards", "cards")
	noteDegraded(st, prompt.ConceptCards, r)
	return numberCards(r.Value, count), nil
}

// numberCards выкидывает пустые, режет до limit и нумерует с 1 по порядку.
func numberCards(in []wireCard, limit int) []types.ConceptCard {
	out := make([]types.ConceptCard, 0, len(in))
	for _, c := range in {
		title := strings.TrimSpace(c.Title)
		expl := strings.TrimSpace(c.Explanation)
		if title == "" && expl == "" {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, types.ConceptCard{
			Number:      len(out) + 1,
			Title:       title,
			Explanation: expl,
			Hint:        strings.TrimSpace(c.Hint),
		})
	}
	return out
}

type NextCard struct {
	Card       types.ConceptCard `json:"card"`
	TotalCards int               `json:"totalCards"`
	HasMore    bool              `json:"hasMore"`
}

// NextConceptCard отдаёт карточку current+1 из завершённой записи.
func (p *Pipeline) NextConceptCard(id string, current int) (NextCard, error) {
	res, ok := p.Ledger.Result(id)
	if !ok || res.HomeworkHelp == nil {
		return NextCard{}, ErrNotFound
	}
	card, ok := res.Card(current + 1)
	if !ok {
		return NextCard{}, ErrNotFound
	}
	total := len(res.ConceptCards)
	return NextCard{Card: card, TotalCards: total, HasMore: card.Number < total}, nil
}

type Hint struct {
	CardNumber     int    `json:"cardNumber"`
	AdditionalHint string `json:"additionalHint"`
}

// AdditionalHint - ещё одна подсказка к карточке. Если ответ модели не разобрался,
// возвращается уже имеющаяся подсказка карточки.
func (p *Pipeline) AdditionalHint(ctx context.Context, id string, cardNumber int) (Hint, error) {
	res, ok := p.Ledger.Result(id)
	if !ok {
		return Hint{}, ErrNotFound
	}
	card, ok := res.Card(cardNumber)
	if !ok {
		return Hint{}, ErrNotFound
	}
	log := p.Log.With("processing_id", id, "card", cardNumber)

	if p.Hints != nil {
		if h, err := p.Hints.Find(ctx, id, cardNumber); err == nil && h != "" {
			return Hint{CardNumber: cardNumber, AdditionalHint: h}, nil
		}
	}

	input := fmt.Sprintf("Problem:\n%s\n\nStep %d: %s\n%s\n\nExisting hint: %s",
		res.ProblemSummary, card.Number, card.Title, card.Explanation, card.Hint)
	raw, err := p.generate(ctx, prompt.ExtraHint, prompt.Params{Language: res.Language}, input, hintTokens)
	if err != nil {
		return Hint{}, err
	}
	r := extract.Field(raw, card.Hint, "hint", "additional_hint", "additionalHint")
	if r.Degraded() {
		log.Warn("additional hint unparseable, reusing card hint", "error", r.Err)
	}
	hint := strings.TrimSpace(r.Value)
	if hint == "" {
		hint = card.Hint
	}

	if p.Hints != nil && !r.Degraded() {
		if err := p.Hints.Upsert(ctx, id, cardNumber, hint); err != nil {
			log.Warn("hint cache upsert failed", "error", err)
		}
	}
	return Hint{CardNumber: cardNumber, AdditionalHint: hint}, nil
}
