package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/rehearse/internal/conversation"
	"github.com/MikeSquared-Agency/rehearse/internal/grading"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/report"
)

// StartRequest names the persona to rehearse against: an inline persona, a
// saved custom persona id, or a built-in template name.
type StartRequest struct {
	Persona         *persona.Persona `json:"persona,omitempty"`
	CustomPersonaID string           `json:"customPersonaId,omitempty"`
	Template        string           `json:"template,omitempty"`
}

type RehearsalView struct {
	ID        string                 `json:"id"`
	StartedAt time.Time              `json:"startedAt"`
	Persona   persona.Persona        `json:"persona"`
	Messages  []conversation.Message `json:"messages"`
}

type ReportView struct {
	SessionID string                `json:"sessionId"`
	Date      time.Time             `json:"date"`
	Persisted bool                  `json:"persisted"`
	Grade     grading.Grade         `json:"grade"`
	Report    report.FeedbackReport `json:"report"`
}

var errNoPersona = errors.New("one of persona, customPersonaId or template is required")

func (s *Server) resolvePersona(ctx context.Context, req StartRequest) (persona.Persona, error) {
	switch {
	case req.Persona != nil:
		return *req.Persona, nil
	case req.CustomPersonaID != "":
		list, err := s.store.ListCustomPersonas(ctx)
		if err != nil {
			return persona.Persona{}, fmt.Errorf("list custom personas: %w", err)
		}
		for _, p := range list {
			if p.ID == req.CustomPersonaID {
				return p, nil
			}
		}
		return persona.Persona{}, fmt.Errorf("custom persona %s: %w", req.CustomPersonaID, errUnknownPersona)
	case req.Template != "":
		for _, p := range persona.Templates() {
			if p.Name == req.Template {
				return p, nil
			}
		}
		return persona.Persona{}, fmt.Errorf("template %s: %w", req.Template, errUnknownPersona)
	}
	return persona.Persona{}, errNoPersona
}

var errUnknownPersona = errors.New("persona not found")

func (s *Server) startRehearsal(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.resolvePersona(r.Context(), req)
	switch {
	case errors.Is(err, errNoPersona):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, errUnknownPersona):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("resolve persona failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load persona")
		return
	}

	sess, err := s.manager.Start(r.Context(), p)
	if err != nil {
		if errors.Is(err, persona.ErrIncomplete) {
			writeDomainError(w, err, http.StatusBadRequest)
			return
		}
		s.logger.Error("start rehearsal failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to open conversation")
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func viewOf(sess *conversation.Session) RehearsalView {
	return RehearsalView{
		ID:        sess.ID,
		StartedAt: sess.StartedAt,
		Persona:   sess.Persona(),
		Messages:  sess.Snapshot(),
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	sess, err := s.manager.Get(chi.URLParam(r, "rehearsalID"))
	if err != nil {
		writeDomainError(w, err, http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) getRehearsal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) abandonRehearsal(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Abandon(chi.URLParam(r, "rehearsalID")); err != nil {
		writeDomainError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendRequest struct {
	Text string `json:"text"`
}

// sendMessage returns the model reply. On a model failure the user turn
// stays in the transcript and 502 tells the client to retry.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := sess.Send(r.Context(), req.Text)
	if err != nil {
		writeDomainError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) requestHint(w http.ResponseWriter, r *http.Request) {
	s.annotate(w, r, (*conversation.Session).RequestCoachHint)
}

func (s *Server) requestAnalysis(w http.ResponseWriter, r *http.Request) {
	s.annotate(w, r, (*conversation.Session).RequestTurnAnalysis)
}

func (s *Server) annotate(w http.ResponseWriter, r *http.Request, fn func(*conversation.Session, context.Context, string) (conversation.Message, error)) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	msg, err := fn(sess, r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		writeDomainError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) clearAnnotation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	kind := conversation.Annotation(chi.URLParam(r, "annotation"))
	if err := sess.ClearAnnotation(chi.URLParam(r, "messageID"), kind); err != nil {
		writeDomainError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// endRehearsal closes the conversation and compiles the report. A storage
// failure still yields the report, flagged persisted=false.
func (s *Server) endRehearsal(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.End(r.Context(), chi.URLParam(r, "rehearsalID"))
	if err != nil && !errors.Is(err, report.ErrNotPersisted) {
		writeDomainError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ReportView{
		SessionID: rec.ID,
		Date:      rec.Date,
		Persisted: err == nil,
		Grade:     rec.Report.Grade(),
		Report:    rec.Report,
	})
}

func (s *Server) getAudio(w http.ResponseWriter, r *http.Request) {
	wav, ok := s.manager.Audio(chi.URLParam(r, "messageID"))
	if !ok {
		writeError(w, http.StatusNotFound, "no audio for message")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}
