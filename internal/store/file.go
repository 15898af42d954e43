package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rehearse/internal/persona"
)

// document is the on-disk layout of the file store.
type document struct {
	Sessions       []SavedSession    `json:"sessions"`
	CustomPersonas []persona.Persona `json:"customPersonas"`
}

// FileStore keeps everything in one JSON document. Every write is a
// mutex-serialized read-modify-write followed by an atomic rename.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	p := expandHome(path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileStore{path: p, logger: logger}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// load reads the document. A missing or malformed file reads as empty; a
// malformed file is copied aside so the next write does not destroy it.
func (s *FileStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("store file is malformed, treating as empty", "path", s.path, "error", err)
		if err := os.WriteFile(s.path+".corrupt", data, 0o644); err != nil {
			s.logger.Error("failed to preserve malformed store", "error", err)
		}
		return &document{}, nil
	}
	return &doc, nil
}

func (s *FileStore) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename store: %w", err)
	}
	return nil
}

// mutate applies fn to the current document and writes it if fn succeeds.
func (s *FileStore) mutate(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *FileStore) read() (*document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) ListSessions(_ context.Context) ([]SavedSession, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if doc.Sessions == nil {
		return []SavedSession{}, nil
	}
	return doc.Sessions, nil
}

func (s *FileStore) GetSession(_ context.Context, id string) (SavedSession, error) {
	doc, err := s.read()
	if err != nil {
		return SavedSession{}, err
	}
	for _, sess := range doc.Sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	return SavedSession{}, ErrNotFound
}

func (s *FileStore) SaveSession(_ context.Context, sess SavedSession) error {
	return s.mutate(func(doc *document) error {
		rest := removeSession(doc.Sessions, sess.ID)
		doc.Sessions = append([]SavedSession{sess}, rest...)
		return nil
	})
}

func (s *FileStore) UpdateSession(_ context.Context, id string, patch SessionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return s.mutate(func(doc *document) error {
		for i := range doc.Sessions {
			if doc.Sessions[i].ID == id {
				patch.Apply(&doc.Sessions[i])
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *FileStore) DeleteSession(_ context.Context, id string) error {
	return s.mutate(func(doc *document) error {
		doc.Sessions = removeSession(doc.Sessions, id)
		return nil
	})
}

func (s *FileStore) ListCustomPersonas(_ context.Context) ([]persona.Persona, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if doc.CustomPersonas == nil {
		return []persona.Persona{}, nil
	}
	return doc.CustomPersonas, nil
}

func (s *FileStore) SaveCustomPersona(_ context.Context, p persona.Persona) (persona.Persona, error) {
	p, err := PrepareCustomPersona(p, uuid.NewString)
	if err != nil {
		return persona.Persona{}, err
	}
	err = s.mutate(func(doc *document) error {
		for i := range doc.CustomPersonas {
			if doc.CustomPersonas[i].ID == p.ID {
				doc.CustomPersonas[i] = p
				return nil
			}
		}
		doc.CustomPersonas = append([]persona.Persona{p}, doc.CustomPersonas...)
		return nil
	})
	if err != nil {
		return persona.Persona{}, err
	}
	return p, nil
}

func (s *FileStore) DeleteCustomPersona(_ context.Context, id string) error {
	return s.mutate(func(doc *document) error {
		out := doc.CustomPersonas[:0]
		for _, p := range doc.CustomPersonas {
			if p.ID != id {
				out = append(out, p)
			}
		}
		doc.CustomPersonas = out
		return nil
	})
}

func (s *FileStore) Close() error {
	return nil
}

func removeSession(sessions []SavedSession, id string) []SavedSession {
	out := make([]SavedSession, 0, len(sessions))
	for _, sess := range sessions {
		if sess.ID != id {
			out = append(out, sess)
		}
	}
	return out
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
