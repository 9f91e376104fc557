package types

import "strings"

// Category - ветка пайплайна
type Category string

const (
	CategoryTextbook Category = "TEXTBOOK"
	CategoryProblem  Category = "PROBLEM"
)

// ParseCategory понимает и короткие, и длинные формы (TEXTBOOK_MATERIAL, PROBLEM_ASSIGNMENT).
func ParseCategory(s string) (Category, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "TEXTBOOK"):
		return CategoryTextbook, true
	case strings.HasPrefix(s, "PROBLEM"), strings.HasPrefix(s, "HOMEWORK"):
		return CategoryProblem, true
	}
	return "", false
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

func ParseConfidence(s string) (Confidence, bool) {
	switch c := Confidence(strings.ToUpper(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c, true
	}
	return "", false
}

// SubjectArea - закрытый набор предметных областей
type SubjectArea string

const (
	SubjectLanguageLearning SubjectArea = "language-learning"
	SubjectMathematics      SubjectArea = "mathematics"
	SubjectScience          SubjectArea = "science"
	SubjectLiterature       SubjectArea = "reading-literature"
	SubjectHumanities       SubjectArea = "arts-humanities"
	SubjectOther            SubjectArea = "other"
)

var subjectAliases = map[string]SubjectArea{
	"language-learning":  SubjectLanguageLearning,
	"language learning":  SubjectLanguageLearning,
	"language_learning":  SubjectLanguageLearning,
	"language":           SubjectLanguageLearning,
	"languages":          SubjectLanguageLearning,
	"vocabulary":         SubjectLanguageLearning,
	"mathematics":        SubjectMathematics,
	"math":               SubjectMathematics,
	"maths":              SubjectMathematics,
	"matematiikka":       SubjectMathematics,
	"science":            SubjectScience,
	"biology":            SubjectScience,
	"physics":            SubjectScience,
	"chemistry":          SubjectScience,
	"geography":          SubjectScience,
	"reading-literature": SubjectLiterature,
	"reading/literature": SubjectLiterature,
	"reading":            SubjectLiterature,
	"literature":         SubjectLiterature,
	"arts-humanities":    SubjectHumanities,
	"arts/humanities":    SubjectHumanities,
	"history":            SubjectHumanities,
	"humanities":         SubjectHumanities,
	"arts":               SubjectHumanities,
	"religion":           SubjectHumanities,
	"other":              SubjectOther,
}

// ParseSubjectArea нормализует то, что пишет модель: "Math", "Language", "History" и т.п.
func ParseSubjectArea(s string) (SubjectArea, bool) {
	v, ok := subjectAliases[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

func (s SubjectArea) IsLanguageLearning() bool { return s == SubjectLanguageLearning }

type Classification struct {
	Category    Category    `json:"category"`
	Confidence  Confidence  `json:"confidence"`
	SubjectArea SubjectArea `json:"subjectArea"`
	Language    string      `json:"language"`
	Reasoning   string      `json:"reasoning,omitempty"`
}

// DefaultClassification - куда падаем, если ответ классификатора не разобрался.
func DefaultClassification() Classification {
	return Classification{
		Category:    CategoryTextbook,
		Confidence:  ConfidenceMedium,
		SubjectArea: SubjectOther,
		Language:    "English",
	}
}
