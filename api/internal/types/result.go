package types

type ContentType string

const (
	ContentStudySet     ContentType = "study-set"
	ContentHomeworkHelp ContentType = "homework-help"
)

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     string   `json:"correct"`
	Explanation string   `json:"explanation"`
}

type ConceptCard struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	Hint        string `json:"hint"`
}

type StudySet struct {
	Summary     string         `json:"summary"`
	Flashcards  []Flashcard    `json:"flashcards"`
	Quiz        []QuizQuestion `json:"quiz"`
	SubjectArea SubjectArea    `json:"subjectArea"`
}

type HomeworkHelp struct {
	ProblemSummary   string        `json:"problemSummary"`
	ProblemType      string        `json:"problemType"`
	ApproachGuidance string        `json:"approachGuidance"`
	ConceptCards     []ConceptCard `json:"conceptCards"`
}

// Result - итог пайплайна. Заполнен ровно один из StudySet / HomeworkHelp,
// и ContentType ему соответствует; в JSON поля ветки лежат на верхнем уровне.
type Result struct {
	Title          string          `json:"title"`
	RawTextContent string          `json:"rawTextContent"`
	ContentType    ContentType     `json:"contentType"`
	Introduction   string          `json:"introduction"`
	Language       string          `json:"language,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	ProcessingID   string          `json:"processingId"`
	CreatedAt      int64           `json:"createdAt"` // unix ms
	UpdatedAt      int64           `json:"updatedAt"`

	*StudySet
	*HomeworkHelp
}

// Card возвращает концепт-карточку по номеру (нумерация с 1).
func (r *Result) Card(number int) (ConceptCard, bool) {
	if r == nil || r.HomeworkHelp == nil {
		return ConceptCard{}, false
	}
	for _, c := range r.ConceptCards {
		if c.Number == number {
			return c, true
		}
	}
	return ConceptCard{}, false
}
