package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MikeSquared-Agency/rehearse/internal/conversation"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/rehearsal"
	"github.com/MikeSquared-Agency/rehearse/internal/store"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes. Unknown errors map to
// fallback.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, persona.ErrIncomplete),
		errors.Is(err, store.ErrInvalidPersona),
		errors.Is(err, store.ErrInvalidPatch),
		errors.Is(err, conversation.ErrEmptyInput),
		errors.Is(err, conversation.ErrUnknownAnnotation),
		errors.Is(err, conversation.ErrNotAnnotatable):
		return http.StatusBadRequest
	case errors.Is(err, rehearsal.ErrSessionNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, conversation.ErrMessageNotFound),
		errors.Is(err, conversation.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrBusy):
		return http.StatusConflict
	}
	return fallback
}

func writeDomainError(w http.ResponseWriter, err error, fallback int) {
	writeError(w, statusFor(err, fallback), err.Error())
}
