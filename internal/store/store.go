// Package store persists finished rehearsals and user-authored personas.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/rehearse/internal/conversation"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/report"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidPatch   = errors.New("invalid session patch")
	ErrInvalidPersona = errors.New("invalid persona")
)

// UserFeedback is the user's rating of the rehearsal tool itself, each
// score on a 0..10 scale.
type UserFeedback struct {
	OverallScore int    `json:"overallScore"`
	RealismScore int    `json:"realismScore"`
	UtilityScore int    `json:"utilityScore"`
	Comment      string `json:"comment,omitempty"`
}

func (f UserFeedback) Validate() error {
	for _, v := range []int{f.OverallScore, f.RealismScore, f.UtilityScore} {
		if v < 0 || v > 10 {
			return fmt.Errorf("%w: feedback scores must be within 0..10", ErrInvalidPatch)
		}
	}
	return nil
}

type SavedSession struct {
	ID           string                 `json:"id"`
	Date         time.Time              `json:"date"`
	Persona      persona.Persona        `json:"persona"`
	Messages     []conversation.Message `json:"messages"`
	Report       report.FeedbackReport  `json:"report"`
	NPS          *int                   `json:"nps,omitempty"`
	UserFeedback *UserFeedback          `json:"userFeedback,omitempty"`
}

// SessionPatch carries the fields that may change after a session is saved.
// Nil fields are left untouched.
type SessionPatch struct {
	NPS          *int          `json:"nps,omitempty"`
	UserFeedback *UserFeedback `json:"userFeedback,omitempty"`
}

func (p SessionPatch) Validate() error {
	if p.NPS == nil && p.UserFeedback == nil {
		return fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	if p.NPS != nil && (*p.NPS < 0 || *p.NPS > 10) {
		return fmt.Errorf("%w: nps must be within 0..10", ErrInvalidPatch)
	}
	if p.UserFeedback != nil {
		return p.UserFeedback.Validate()
	}
	return nil
}

// Apply merges the patch into s.
func (p SessionPatch) Apply(s *SavedSession) {
	if p.NPS != nil {
		v := *p.NPS
		s.NPS = &v
	}
	if p.UserFeedback != nil {
		fb := *p.UserFeedback
		s.UserFeedback = &fb
	}
}

// Store is the persistence contract. Sessions list newest first. Deleting
// an unknown id is not an error; updating one returns ErrNotFound.
type Store interface {
	ListSessions(ctx context.Context) ([]SavedSession, error)
	GetSession(ctx context.Context, id string) (SavedSession, error)
	SaveSession(ctx context.Context, s SavedSession) error
	UpdateSession(ctx context.Context, id string, patch SessionPatch) error
	DeleteSession(ctx context.Context, id string) error

	ListCustomPersonas(ctx context.Context) ([]persona.Persona, error)
	// SaveCustomPersona upserts by id, assigning one when absent.
	SaveCustomPersona(ctx context.Context, p persona.Persona) (persona.Persona, error)
	DeleteCustomPersona(ctx context.Context, id string) error

	Close() error
}

// Recorder adapts a Store to report.Recorder.
type Recorder struct {
	Store Store
}

func (r Recorder) RecordSession(ctx context.Context, rec report.Record) error {
	return r.Store.SaveSession(ctx, FromRecord(rec))
}

func FromRecord(rec report.Record) SavedSession {
	return SavedSession{
		ID:       rec.ID,
		Date:     rec.Date,
		Persona:  rec.Persona,
		Messages: rec.Messages,
		Report:   rec.Report,
	}
}

// PrepareCustomPersona validates p, marks it custom and fills the id and
// default voice. Backends call it before writing.
func PrepareCustomPersona(p persona.Persona, newID func() string) (persona.Persona, error) {
	if err := p.Validate(); err != nil {
		return persona.Persona{}, fmt.Errorf("%w: %v", ErrInvalidPersona, err)
	}
	if p.ID == "" {
		p.ID = newID()
	}
	p.IsCustom = true
	if p.VoiceName == "" {
		p.VoiceName = persona.DefaultVoice(p.Gender)
	}
	return p, nil
}
