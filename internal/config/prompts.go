package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptTemplate is one system/user prompt pair from the catalog.
type PromptTemplate struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// PromptCatalog holds the prompts sent to the generation service.
type PromptCatalog struct {
	TrainingFeedback PromptTemplate
	Chatbot          PromptTemplate
}

const defaultFeedbackSystem = `Tu es un coach d'acteurs. Tu analyses une courte vidéo de répétition et tu réponds uniquement avec un objet JSON.`

const defaultFeedbackUser = `Analyse la performance de l'acteur dans cette vidéo.
{{role_context}}
Réponds UNIQUEMENT avec un objet JSON de cette forme exacte, sans texte autour :
{"globalScore": <0-100>,
 "emotions": {"score": <0-100>, "detected": [<string>], "coherence": <0-100>, "intensity": <0-100>, "comment": <string>},
 "posture": {"score": <0-100>, "openness": <0-100>, "observations": [<string>], "comment": <string>},
 "intonation": {"score": <0-100>, "clarity": <0-100>, "rhythm": <0-100>, "comment": <string>},
 "expressivite": {"score": <0-100>, "comment": <string>},
 "recommendations": [<string>], "strengths": [<string>], "summary": <string>}`

const defaultChatbotSystem = `Tu es l'assistant d'une agence de talents. Tu proposes des acteurs uniquement parmi la liste fournie.`

const defaultChatbotUser = `Question de l'agence : {{question}}

Acteurs disponibles (JSON) :
{{candidates}}

Réponds UNIQUEMENT avec un objet JSON :
{"answer": <string>, "suggestedActors": [{"acteurId": <string>, "nom": <string>, "prenom": <string>, "matchScore": <0.0-1.0>, "matchReasons": [<string>]}]}`

// DefaultPromptCatalog returns the built-in prompts.
func DefaultPromptCatalog() PromptCatalog {
	return PromptCatalog{
		TrainingFeedback: PromptTemplate{System: defaultFeedbackSystem, User: defaultFeedbackUser},
		Chatbot:          PromptTemplate{System: defaultChatbotSystem, User: defaultChatbotUser},
	}
}

// LoadPromptCatalog reads training_feedback.yaml and chatbot.yaml from dir.
// A missing file or an empty field keeps the built-in default; a file that
// fails to parse is an error.
func LoadPromptCatalog(dir string) (PromptCatalog, error) {
	cat := DefaultPromptCatalog()
	if err := loadPromptFile(filepath.Join(dir, "training_feedback.yaml"), &cat.TrainingFeedback); err != nil {
		return PromptCatalog{}, fmt.Errorf("op=config.LoadPromptCatalog: %w", err)
	}
	if err := loadPromptFile(filepath.Join(dir, "chatbot.yaml"), &cat.Chatbot); err != nil {
		return PromptCatalog{}, fmt.Errorf("op=config.LoadPromptCatalog: %w", err)
	}
	return cat, nil
}

func loadPromptFile(path string, into *PromptTemplate) error {
	// #nosec G304 -- prompt files come from the deployment's PROMPTS_DIR
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var t PromptTemplate
	if err := yaml.Unmarshal(content, &t); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if s := strings.TrimSpace(t.System); s != "" {
		into.System = s
	}
	if s := strings.TrimSpace(t.User); s != "" {
		into.User = s
	}
	return nil
}

// Render substitutes {{key}} placeholders in the user prompt in a single pass,
// so substituted values are never expanded again. Unknown placeholders are kept.
func (t PromptTemplate) Render(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(t.User)
}
