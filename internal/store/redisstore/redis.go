// Package redisstore is a Redis-backed store.Store. Records are JSON values
// in a hash; a sorted set scored by a sequence counter keeps newest-first order.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/store"
)

const (
	defaultPrefix  = "rehearse"
	maxTxRetries   = 5
	connectTimeout = 5 * time.Second
)

type Store struct {
	rdb    *goredis.Client
	prefix string
	logger *slog.Logger
}

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = connectTimeout
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, defaultPrefix, logger), nil
}

// NewWithClient wraps an existing client. Keys are namespaced under prefix.
func NewWithClient(rdb *goredis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *Store) sessionsKey() string      { return s.key("sessions") }
func (s *Store) sessionsOrderKey() string { return s.key("sessions", "order") }
func (s *Store) personasKey() string      { return s.key("personas") }
func (s *Store) personasOrderKey() string { return s.key("personas", "order") }
func (s *Store) seqKey() string           { return s.key("seq") }

func (s *Store) ListSessions(ctx context.Context) ([]store.SavedSession, error) {
	out := []store.SavedSession{}
	err := s.listOrdered(ctx, s.sessionsKey(), s.sessionsOrderKey(), func(id, raw string) {
		var sess store.SavedSession
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			s.logger.Warn("skipping malformed session", "id", id, "error", err)
			return
		}
		out = append(out, sess)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (store.SavedSession, error) {
	raw, err := s.rdb.HGet(ctx, s.sessionsKey(), id).Result()
	if errors.Is(err, goredis.Nil) {
		return store.SavedSession{}, store.ErrNotFound
	}
	if err != nil {
		return store.SavedSession{}, fmt.Errorf("get session: %w", err)
	}
	var sess store.SavedSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return store.SavedSession{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *Store) SaveSession(ctx context.Context, sess store.SavedSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionsKey(), sess.ID, data)
		pipe.ZAdd(ctx, s.sessionsOrderKey(), goredis.Z{Score: float64(seq), Member: sess.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// UpdateSession merges the patch inside a WATCH transaction so concurrent
// writers cannot lose each other's updates.
func (s *Store) UpdateSession(ctx context.Context, id string, patch store.SessionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	key := s.sessionsKey()
	txf := func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, goredis.Nil) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		var sess store.SavedSession
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		patch.Apply(&sess)
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, id, data)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("update session: %w", err)
		}
		return err
	}
	return fmt.Errorf("update session: %w", goredis.TxFailedErr)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HDel(ctx, s.sessionsKey(), id)
		pipe.ZRem(ctx, s.sessionsOrderKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) ListCustomPersonas(ctx context.Context) ([]persona.Persona, error) {
	out := []persona.Persona{}
	err := s.listOrdered(ctx, s.personasKey(), s.personasOrderKey(), func(id, raw string) {
		var p persona.Persona
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.logger.Warn("skipping malformed persona", "id", id, "error", err)
			return
		}
		out = append(out, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCustomPersona keeps an existing persona's position; new ones go first.
func (s *Store) SaveCustomPersona(ctx context.Context, p persona.Persona) (persona.Persona, error) {
	p, err := store.PrepareCustomPersona(p, uuid.NewString)
	if err != nil {
		return persona.Persona{}, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return persona.Persona{}, fmt.Errorf("marshal persona: %w", err)
	}
	seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return persona.Persona{}, fmt.Errorf("next sequence: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.personasKey(), p.ID, data)
		pipe.ZAddNX(ctx, s.personasOrderKey(), goredis.Z{Score: float64(seq), Member: p.ID})
		return nil
	})
	if err != nil {
		return persona.Persona{}, fmt.Errorf("save persona: %w", err)
	}
	return p, nil
}

func (s *Store) DeleteCustomPersona(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HDel(ctx, s.personasKey(), id)
		pipe.ZRem(ctx, s.personasOrderKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) listOrdered(ctx context.Context, hashKey, orderKey string, fn func(id, raw string)) error {
	ids, err := s.rdb.ZRevRange(ctx, orderKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("read order: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	vals, err := s.rdb.HMGet(ctx, hashKey, ids...).Result()
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		fn(ids[i], raw)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
