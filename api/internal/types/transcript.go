package types

type SectionType string

const (
	SectionHeading   SectionType = "heading"
	SectionParagraph SectionType = "paragraph"
	SectionList      SectionType = "list"
)

type Section struct {
	Type    SectionType `json:"type"`
	Level   int         `json:"level,omitempty"`
	Style   string      `json:"style,omitempty"` // numbered | bulleted
	RawText string      `json:"rawText,omitempty"`
	Items   []string    `json:"items,omitempty"`
}

type Languages struct {
	Detected []string `json:"detected,omitempty"`
	Source   string   `json:"sourceLanguage,omitempty"`
	Target   string   `json:"targetLanguage,omitempty"`
}

type VocabularyItem struct {
	SourceTerm string `json:"sourceTerm"`
	TargetTerm string `json:"targetTerm"`
}

// Transcript - одна страница.
type Transcript struct {
	Title       string           `json:"title"`
	ContentType string           `json:"contentType,omitempty"` // vocabulary | subject_content | mixed
	Languages   Languages        `json:"languages"`
	RawText     string           `json:"rawText"`
	Sections    []Section        `json:"sections"`
	Vocabulary  []VocabularyItem `json:"vocabularyData,omitempty"`
	Failed      bool             `json:"failed,omitempty"`
}

// MergedTranscript собирается из страниц один раз и дальше не меняется.
type MergedTranscript struct {
	Title    string       `json:"title"`
	RawText  string       `json:"rawText"`
	Sections []Section    `json:"sections"`
	Pages    []Transcript `json:"pages"`
}
