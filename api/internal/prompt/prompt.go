package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	Transcription  = "transcription"
	Classification = "classification"
	Analysis       = "homework_analysis"
	ConceptCards   = "concept_cards"
	StudyBasic     = "study_basic"
	Flashcards     = "flashcards"
	Quiz           = "quiz"
	ExtraHint      = "additional_hint"
	Tutor          = "tutor"
)

//go:embed prompts.yaml
var embedded []byte

// Params - общий набор полей для шаблонов; каждый шаблон берёт свои.
type Params struct {
	Bucket      string
	Subject     string
	Language    string
	Count       int
	Vocabulary  bool
	ContentType string
	ContentID   string
	Context     string
}

type Catalog struct {
	tpl map[string]*template.Template
}

// Load читает встроенный prompts.yaml; если dir не пуст, <dir>/<name>.txt перекрывает одноимённый промпт.
func Load(dir string) (*Catalog, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(embedded, &raw); err != nil {
		return nil, fmt.Errorf("prompts.yaml: %w", err)
	}
	if dir = strings.TrimSpace(dir); dir != "" {
		for name := range raw {
			b, err := os.ReadFile(filepath.Join(dir, name+".txt"))
			if err == nil && len(strings.TrimSpace(string(b))) > 0 {
				raw[name] = string(b)
			}
		}
	}

	c := &Catalog{tpl: make(map[string]*template.Template, len(raw))}
	for name, text := range raw {
		t, err := template.New(name).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		c.tpl[name] = t
	}
	return c, nil
}

// MustLoad - для тестов и дефолтов.
func MustLoad(dir string) *Catalog {
	c, err := Load(dir)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Render(name string, p Params) (string, error) {
	t, ok := c.tpl[name]
	if !ok {
		return "", fmt.Errorf("prompt %q not found", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, p); err != nil {
		return "", fmt.Errorf("prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
