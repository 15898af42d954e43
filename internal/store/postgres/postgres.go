// Package postgres is a pgx-backed store.Store. Records are kept as jsonb
// documents keyed by id.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rehearsal_sessions (
	id            text PRIMARY KEY,
	session_date  timestamptz NOT NULL,
	saved_at      timestamptz NOT NULL DEFAULT clock_timestamp(),
	persona       jsonb NOT NULL,
	messages      jsonb NOT NULL,
	report        jsonb NOT NULL,
	nps           integer,
	user_feedback jsonb
);
CREATE INDEX IF NOT EXISTS rehearsal_sessions_saved_at_idx ON rehearsal_sessions (saved_at DESC);

CREATE TABLE IF NOT EXISTS custom_personas (
	id         text PRIMARY KEY,
	created_at timestamptz NOT NULL DEFAULT clock_timestamp(),
	persona    jsonb NOT NULL
);`

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListSessions(ctx context.Context) ([]store.SavedSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_date, persona, messages, report, nps, user_feedback
		FROM rehearsal_sessions
		ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []store.SavedSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable session", "error", err)
			continue
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (store.SavedSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, session_date, persona, messages, report, nps, user_feedback
		FROM rehearsal_sessions
		WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.SavedSession{}, store.ErrNotFound
	}
	if err != nil {
		return store.SavedSession{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// SaveSession upserts; a re-saved session moves to the front.
func (s *Store) SaveSession(ctx context.Context, sess store.SavedSession) error {
	personaJSON, err := json.Marshal(sess.Persona)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}
	messagesJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	reportJSON, err := json.Marshal(sess.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	feedbackJSON, err := nullableJSON(sess.UserFeedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO rehearsal_sessions (id, session_date, persona, messages, report, nps, user_feedback, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, clock_timestamp())
		ON CONFLICT (id) DO UPDATE SET
			session_date = EXCLUDED.session_date,
			persona = EXCLUDED.persona,
			messages = EXCLUDED.messages,
			report = EXCLUDED.report,
			nps = EXCLUDED.nps,
			user_feedback = EXCLUDED.user_feedback,
			saved_at = clock_timestamp()`,
		sess.ID, sess.Date, string(personaJSON), string(messagesJSON), string(reportJSON), sess.NPS, feedbackJSON,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession merges the patch under a row lock.
func (s *Store) UpdateSession(ctx context.Context, id string, patch store.SessionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		nps      *int
		feedback []byte
	)
	err = tx.QueryRow(ctx, `
		SELECT nps, user_feedback FROM rehearsal_sessions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&nps, &feedback)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}

	sess := store.SavedSession{NPS: nps}
	if len(feedback) > 0 {
		var fb store.UserFeedback
		if err := json.Unmarshal(feedback, &fb); err == nil {
			sess.UserFeedback = &fb
		}
	}
	patch.Apply(&sess)

	feedbackJSON, err := nullableJSON(sess.UserFeedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE rehearsal_sessions SET nps = $2, user_feedback = $3 WHERE id = $1`,
		id, sess.NPS, feedbackJSON,
	); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rehearsal_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) ListCustomPersonas(ctx context.Context) ([]persona.Persona, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, persona FROM custom_personas ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query personas: %w", err)
	}
	defer rows.Close()

	out := []persona.Persona{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		var p persona.Persona
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Warn("skipping malformed persona", "id", id, "error", err)
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personas: %w", err)
	}
	return out, nil
}

// SaveCustomPersona keeps the original creation time on update so the
// persona keeps its position.
func (s *Store) SaveCustomPersona(ctx context.Context, p persona.Persona) (persona.Persona, error) {
	p, err := store.PrepareCustomPersona(p, uuid.NewString)
	if err != nil {
		return persona.Persona{}, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return persona.Persona{}, fmt.Errorf("marshal persona: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO custom_personas (id, persona) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET persona = EXCLUDED.persona`,
		p.ID, string(data),
	)
	if err != nil {
		return persona.Persona{}, fmt.Errorf("upsert persona: %w", err)
	}
	return p, nil
}

func (s *Store) DeleteCustomPersona(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM custom_personas WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	return nil
}

// truncate empties both tables. Tests only.
func (s *Store) truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE rehearsal_sessions, custom_personas`)
	return err
}

func scanSession(row pgx.Row) (store.SavedSession, error) {
	var (
		sess                                   store.SavedSession
		personaRaw, messagesRaw, reportRaw, fb []byte
	)
	if err := row.Scan(&sess.ID, &sess.Date, &personaRaw, &messagesRaw, &reportRaw, &sess.NPS, &fb); err != nil {
		return store.SavedSession{}, err
	}
	if err := json.Unmarshal(personaRaw, &sess.Persona); err != nil {
		return store.SavedSession{}, fmt.Errorf("decode persona: %w", err)
	}
	if err := json.Unmarshal(messagesRaw, &sess.Messages); err != nil {
		return store.SavedSession{}, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal(reportRaw, &sess.Report); err != nil {
		return store.SavedSession{}, fmt.Errorf("decode report: %w", err)
	}
	if len(fb) > 0 {
		var feedback store.UserFeedback
		if err := json.Unmarshal(fb, &feedback); err != nil {
			return store.SavedSession{}, fmt.Errorf("decode feedback: %w", err)
		}
		sess.UserFeedback = &feedback
	}
	sess.Date = sess.Date.UTC()
	return sess, nil
}

func nullableJSON(v *store.UserFeedback) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

var _ store.Store = (*Store)(nil)
