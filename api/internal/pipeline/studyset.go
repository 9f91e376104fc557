package pipeline

import (
	"context"
	"strings"

	"lexie-server/api/internal/chunk"
	"lexie-server/api/internal/extract"
	"lexie-server/api/internal/prompt"
	"lexie-server/api/internal/types"
)

const (
	basicTokens     = 3000
	flashcardTokens = 4000
	quizTokens      = 5000
)

type basicInfo struct {
	Title        string `json:"title"`
	Introduction string `json:"introduction"`
	Summary      string `json:"summary"`
	SubjectArea  string `json:"subject_area"`
}

type wireFlashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// studySet - ветка TEXTBOOK: обзор, карточки, тест, затем ремонт формата.
func (p *Pipeline) studySet(ctx context.Context, st state) (*types.Result, error) {
	basic, subject, err := p.basicInfo(ctx, st)
	if err != nil {
		return nil, err
	}
	cards, err := p.flashcards(ctx, st, subject)
	if err != nil {
		return nil, err
	}
	quiz, err := p.quiz(ctx, st, subject)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(basic.Title)
	if title == "" {
		title = st.merged.Title
	}

	if !subject.IsLanguageLearning() {
		var replaced bool
		cards, replaced = RepairFlashcards(cards, subject)
		before := len(quiz)
		quiz = RepairQuiz(quiz, subject)
		if replaced || len(quiz) != before {
			st.log.Info("study set repaired",
				"flashcards_replaced", replaced, "quiz_before", before, "quiz_after", len(quiz))
		}
	}
	if len(cards) == 0 {
		cards = []types.Flashcard{FallbackFlashcard(title, basic.Summary, st.merged.RawText)}
	}
	if len(quiz) == 0 {
		quiz = []types.QuizQuestion{FallbackQuestion(title)}
	}

	return &types.Result{
		Title:        title,
		ContentType:  types.ContentStudySet,
		Introduction: studyIntro(st.class.Language),
		Language:     st.class.Language,
		StudySet: &types.StudySet{
			Summary:     strings.TrimSpace(basic.Summary),
			Flashcards:  cards,
			Quiz:        quiz,
			SubjectArea: subject,
		},
	}, nil
}

func (p *Pipeline) basicInfo(ctx context.Context, st state) (basicInfo, types.SubjectArea, error) {
	params := prompt.Params{
		Bucket:   string(st.bucket),
		Subject:  string(st.class.SubjectArea),
		Language: st.class.Language,
	}
	raw, err := p.generate(ctx, prompt.StudyBasic, params, chunk.Budget(st.chunks, chunk.DefaultBound), basicTokens)
	if err != nil {
		return basicInfo{}, "", err
	}
	fallback := basicInfo{
		Title:        st.merged.Title,
		Introduction: studyIntro(st.class.Language),
		SubjectArea:  string(st.class.SubjectArea),
	}
	r := extract.JSON(raw, fallback)
	noteDegraded(st, prompt.StudyBasic, r)

	subject := ResolveSubject(st.class.SubjectArea, r.Value.SubjectArea)
	if subject != st.class.SubjectArea {
		st.log.Info("subject area changed by generation", "from", st.class.SubjectArea, "to", subject)
	}
	return r.Value, subject, nil
}

// ResolveSubject: генерации нельзя перевести не-языковой материал в language-learning.
// Остальные предложения принимаются, неизвестные игнорируются.
func ResolveSubject(original types.SubjectArea, proposed string) types.SubjectArea {
	p, ok := types.ParseSubjectArea(proposed)
	if !ok {
		return original
	}
	if p.IsLanguageLearning() && !original.IsLanguageLearning() {
		return original
	}
	return p
}

// flashcards: длинный документ идёт несколькими вызовами, по куску на вызов.
func (p *Pipeline) flashcards(ctx context.Context, st state, subject types.SubjectArea) ([]types.Flashcard, error) {
	count := FlashcardCount(st.bucket, subject.IsLanguageLearning())
	out := make([]types.Flashcard, 0, count)
	seen := make(map[string]bool)
	for _, piece := range splitParts(st.chunks, count) {
		params := prompt.Params{
			Bucket:     string(st.bucket),
			Subject:    string(subject),
			Language:   st.class.Language,
			Count:      piece.Count,
			Vocabulary: subject.IsLanguageLearning(),
		}
		raw, err := p.generate(ctx, prompt.Flashcards, params, piece.Input, flashcardTokens)
		if err != nil {
			return nil, err
		}
		r := extract.Field[[]wireFlashcard](raw, nil, "flashcards", "cards")
		noteDegraded(st, prompt.Flashcards, r)

		taken := 0
		for _, c := range r.Value {
			front, back := strings.TrimSpace(c.Front), strings.TrimSpace(c.Back)
			key := strings.ToLower(front)
			if front == "" || back == "" || seen[key] {
				continue
			}
			if taken == piece.Count || len(out) == count {
				break
			}
			seen[key] = true
			out = append(out, types.Flashcard{Front: front, Back: back})
			taken++
		}
	}
	return out, nil
}

func (p *Pipeline) quiz(ctx context.Context, st state, subject types.SubjectArea) ([]types.QuizQuestion, error) {
	count := QuizCount(st.bucket)
	out := make([]types.QuizQuestion, 0, count)
	seen := make(map[string]bool)
	dropped := 0
	for _, piece := range splitParts(st.chunks, count) {
		params := prompt.Params{
			Bucket:     string(st.bucket),
			Subject:    string(subject),
			Language:   st.class.Language,
			Count:      piece.Count,
			Vocabulary: subject.IsLanguageLearning(),
		}
		raw, err := p.generate(ctx, prompt.Quiz, params, piece.Input, quizTokens)
		if err != nil {
			return nil, err
		}
		r := extract.Field[[]wireQuestion](raw, nil, "quiz", "questions")
		noteDegraded(st, prompt.Quiz, r)

		taken := 0
		for _, w := range r.Value {
			q, ok := NormalizeQuestion(w)
			key := strings.ToLower(q.Question)
			if !ok || seen[key] || taken == piece.Count || len(out) == count {
				dropped++
				continue
			}
			seen[key] = true
			out = append(out, q)
			taken++
		}
	}
	if dropped > 0 {
		st.log.Debug("quiz questions dropped or capped", "dropped", dropped)
	}
	return out, nil
}
