// Package model holds the practice question payload accepted from the host
// application.
package model

import (
	"strconv"
	"strings"

	dsmodel "practicelab/internal/dataset/model"
	pkgerrors "practicelab/pkg/errors"
)

// EngineKind selects the execution engine of a question.
type EngineKind string

const (
	EngineAnalytic    EngineKind = "analytic"
	EngineInterpreter EngineKind = "interpreter"
)

var languageEngines = map[string]EngineKind{
	"":           EngineAnalytic,
	"sql":        EngineAnalytic,
	"mysql":      EngineAnalytic,
	"postgres":   EngineAnalytic,
	"postgresql": EngineAnalytic,
	"sqlite":     EngineAnalytic,
	"duckdb":     EngineAnalytic,
	"python":     EngineInterpreter,
	"pandas":     EngineInterpreter,
	"lua":        EngineInterpreter,
	"script":     EngineInterpreter,
}

// EngineFor maps a question type to its engine.
func EngineFor(questionType string) (EngineKind, bool) {
	kind, ok := languageEngines[strings.ToLower(strings.TrimSpace(questionType))]
	return kind, ok
}

// Question is a parsed practice question. Descriptors keep their decoded
// shape; normalization happens when the question is selected.
type Question struct {
	ID         string     `json:"id"`
	Text       string     `json:"text,omitempty"`
	Type       string     `json:"type,omitempty"`
	Engine     EngineKind `json:"engine"`
	ExerciseID string     `json:"exercise_id,omitempty"`
	SubjectID  string     `json:"subject_id,omitempty"`

	// Descriptors are the inline dataset descriptors in preference order.
	Descriptors []any `json:"-"`
	// Context is the fallback descriptor used when no inline one is usable.
	Context any `json:"-"`
}

// ParseQuestion reads a decoded payload (ordered object or plain map).
func ParseQuestion(payload any) (*Question, error) {
	var obj *dsmodel.Object
	switch v := payload.(type) {
	case *dsmodel.Object:
		obj = v
	case map[string]any:
		obj = dsmodel.FromMap(v)
	default:
		return nil, pkgerrors.BadRequest("question payload must be an object")
	}

	q := &Question{
		ID:         field(obj, "id", "question_id", "questionId"),
		Text:       field(obj, "text", "question_text"),
		Type:       field(obj, "type", "question_type"),
		ExerciseID: field(obj, "exercise_id", "exerciseId"),
		SubjectID:  field(obj, "subject_id", "subjectId"),
	}
	if q.ID == "" {
		return nil, pkgerrors.ValidationError("id", "question id is required")
	}
	kind, ok := EngineFor(q.Type)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.LanguageNotSupported, "Question type %q is not supported", q.Type)
	}
	q.Engine = kind

	keys := []string{"exerciseDataset", "dataset", "exercisePythonDataset"}
	if kind == EngineInterpreter {
		keys = []string{"exercisePythonDataset", "exerciseDataset", "dataset"}
	}
	for _, key := range keys {
		if v, ok := obj.Get(key); ok && !blank(v) {
			q.Descriptors = append(q.Descriptors, v)
		}
	}
	if v, ok := obj.Get("context"); ok && !blank(v) {
		q.Context = v
	}
	return q, nil
}

func field(obj *dsmodel.Object, keys ...string) string {
	for _, key := range keys {
		v, ok := obj.Get(key)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case int64:
			return strconv.FormatInt(t, 10)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		}
	}
	return ""
}

func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case *dsmodel.Object:
		return t.Len() == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
