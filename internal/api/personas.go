package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/prompt"
)

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, persona.Templates())
}

func (s *Server) listCustomPersonas(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListCustomPersonas(r.Context())
	if err != nil {
		s.logger.Error("list custom personas failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list personas")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// saveCustomPersona serves both POST (create or upsert by body id) and
// PUT /{personaID} (the path id wins).
func (s *Server) saveCustomPersona(w http.ResponseWriter, r *http.Request) {
	var p persona.Persona
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id := chi.URLParam(r, "personaID"); id != "" {
		p.ID = id
	}

	saved, err := s.store.SaveCustomPersona(r.Context(), p)
	if err != nil {
		if code := statusFor(err, 0); code != 0 {
			writeDomainError(w, err, code)
			return
		}
		s.logger.Error("save custom persona failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save persona")
		return
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

func (s *Server) deleteCustomPersona(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCustomPersona(r.Context(), chi.URLParam(r, "personaID")); err != nil {
		s.logger.Error("delete custom persona failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete persona")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// previewPrompt compiles a persona's system prompt without starting a rehearsal.
func (s *Server) previewPrompt(w http.ResponseWriter, r *http.Request) {
	var p persona.Persona
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := p.Validate(); err != nil {
		writeDomainError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt.Compile(p)})
}
