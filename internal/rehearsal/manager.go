// Package rehearsal owns the live sessions of the service and drives each
// one from start to its recorded report.
package rehearsal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/rehearse/internal/audio"
	"github.com/MikeSquared-Agency/rehearse/internal/bus"
	"github.com/MikeSquared-Agency/rehearse/internal/conversation"
	"github.com/MikeSquared-Agency/rehearse/internal/llm"
	"github.com/MikeSquared-Agency/rehearse/internal/metrics"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/report"
	"github.com/MikeSquared-Agency/rehearse/internal/store"
)

// ErrSessionNotFound is returned for ids that are not live.
var ErrSessionNotFound = errors.New("rehearsal not found")

const notifyTimeout = 30 * time.Second

// Notifier receives every compiled report. The Slack poster implements it.
type Notifier interface {
	PostReportDigest(ctx context.Context, rec report.Record) (string, error)
}

// Deps wires the manager. Bus, Notifier, Metrics and Audio are optional.
type Deps struct {
	LLM      llm.Client
	Reports  *report.Compiler
	Store    store.Store
	Audio    *audio.Cache
	Bus      bus.Publisher
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	Temperature float32
	Speech      bool
}

type Manager struct {
	deps   Deps
	logger *slog.Logger

	mu   sync.Mutex
	live map[string]*conversation.Session

	notifyWG sync.WaitGroup
}

func New(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Bus == nil {
		deps.Bus = bus.Nop{}
	}
	return &Manager{
		deps:   deps,
		logger: deps.Logger,
		live:   make(map[string]*conversation.Session),
	}
}

// Start opens a rehearsal against p.
func (m *Manager) Start(ctx context.Context, p persona.Persona) (*conversation.Session, error) {
	opts := conversation.Options{
		Temperature: m.deps.Temperature,
		Logger:      m.logger,
	}
	if m.deps.Speech && m.deps.Audio != nil {
		opts.Speech = true
		opts.Sink = m.deps.Audio
	}

	sess, err := conversation.Start(ctx, m.deps.LLM, p, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.live[sess.ID] = sess
	m.mu.Unlock()

	if m.deps.Metrics != nil {
		m.deps.Metrics.SessionStarted()
	}
	m.publish(bus.SubjectSessionStarted, bus.SessionStarted{
		SessionID:   sess.ID,
		PersonaID:   p.ID,
		PersonaName: p.Name,
		Rating:      p.ThisPerformance,
		StartedAt:   sess.StartedAt,
	})
	return sess, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*conversation.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.live[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Live returns the number of open sessions.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *Manager) take(id string) (*conversation.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.live[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(m.live, id)
	return sess, nil
}

// End closes a live session and compiles its report. The returned record is
// always renderable; a storage failure comes back as report.ErrNotPersisted
// alongside it.
func (m *Manager) End(ctx context.Context, id string) (report.Record, error) {
	sess, err := m.take(id)
	if err != nil {
		return report.Record{}, err
	}
	sess.Close()
	msgs := sess.Snapshot()

	rec, err := m.deps.Reports.Compile(ctx, msgs, sess.Persona())
	persisted := err == nil
	if err != nil && !errors.Is(err, report.ErrNotPersisted) {
		return report.Record{}, fmt.Errorf("compile report: %w", err)
	}

	if m.deps.Metrics != nil {
		score := rec.Report.Score
		m.deps.Metrics.SessionEnded("completed", &score)
	}
	m.publish(bus.SubjectSessionCompleted, bus.SessionCompleted{
		SessionID:   rec.ID,
		PersonaName: rec.Persona.Name,
		Turns:       countTurns(msgs),
		Score:       rec.Report.Score,
		Level:       string(rec.Report.Level),
		Grade:       rec.Report.Grade().Letter,
		Persisted:   persisted,
		Fallback:    rec.Fallback,
		CompletedAt: rec.Date,
	})
	m.notify(rec)

	return rec, err
}

// Abandon closes a live session without compiling a report.
func (m *Manager) Abandon(id string) error {
	sess, err := m.take(id)
	if err != nil {
		return err
	}
	sess.Close()
	if m.deps.Metrics != nil {
		m.deps.Metrics.SessionEnded("abandoned", nil)
	}
	m.logger.Info("rehearsal abandoned", "session_id", id)
	return nil
}

// SubmitFeedback attaches the user's rating to a saved session.
func (m *Manager) SubmitFeedback(ctx context.Context, id string, patch store.SessionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := m.deps.Store.UpdateSession(ctx, id, patch); err != nil {
		return err
	}

	ev := bus.FeedbackSubmitted{SessionID: id, NPS: patch.NPS}
	if fb := patch.UserFeedback; fb != nil {
		ev.OverallScore = &fb.OverallScore
		ev.RealismScore = &fb.RealismScore
		ev.UtilityScore = &fb.UtilityScore
		ev.HasComment = fb.Comment != ""
	}
	m.publish(bus.SubjectFeedbackSubmitted, ev)
	return nil
}

// Audio returns the synthesized reply for a message as WAV.
func (m *Manager) Audio(messageID string) ([]byte, bool) {
	if m.deps.Audio == nil {
		return nil, false
	}
	return m.deps.Audio.WAV(messageID)
}

// Close ends every live session without reports and waits for pending
// notifications.
func (m *Manager) Close() {
	m.mu.Lock()
	open := make([]*conversation.Session, 0, len(m.live))
	for id, sess := range m.live {
		open = append(open, sess)
		delete(m.live, id)
	}
	m.mu.Unlock()

	for _, sess := range open {
		sess.Close()
		if m.deps.Metrics != nil {
			m.deps.Metrics.SessionEnded("abandoned", nil)
		}
	}
	m.notifyWG.Wait()
	if len(open) > 0 {
		m.logger.Info("closed live rehearsals", "count", len(open))
	}
}

func (m *Manager) publish(subject string, ev any) {
	if err := m.deps.Bus.Publish(subject, ev); err != nil {
		m.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func (m *Manager) notify(rec report.Record) {
	if m.deps.Notifier == nil {
		return
	}
	m.notifyWG.Add(1)
	go func() {
		defer m.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if _, err := m.deps.Notifier.PostReportDigest(ctx, rec); err != nil {
			m.logger.Error("report digest failed", "session_id", rec.ID, "error", err)
		}
	}()
}

func countTurns(msgs []conversation.Message) int {
	n := 0
	for _, msg := range msgs {
		if msg.Role == conversation.RoleUser {
			n++
		}
	}
	return n
}
