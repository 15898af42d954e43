package conversation

import (
	"time"

	"github.com/MikeSquared-Agency/rehearse/internal/protocol"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Message is one transcript entry. Only the annotation fields change after
// the message is appended.
type Message struct {
	ID          string                    `json:"id"`
	Role        Role                      `json:"role"`
	Text        string                    `json:"text"`
	Timestamp   time.Time                 `json:"timestamp"`
	Scores      *protocol.AcceptanceState `json:"scores,omitempty"`
	Evaluation  string                    `json:"evaluation,omitempty"`
	Suggestion  string                    `json:"suggestion,omitempty"`
	Analysis    string                    `json:"analysis,omitempty"`
	IsAnalyzing bool                      `json:"isAnalyzing,omitempty"`
}

func (m Message) clone() Message {
	if m.Scores != nil {
		s := *m.Scores
		m.Scores = &s
	}
	return m
}

// Annotation selects one of the on-demand coaching fields of a message.
type Annotation string

const (
	AnnotationSuggestion Annotation = "suggestion"
	AnnotationAnalysis   Annotation = "analysis"
)

func (a Annotation) valid() bool {
	return a == AnnotationSuggestion || a == AnnotationAnalysis
}
