package rehearsal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/rehearse/internal/audio"
	"github.com/MikeSquared-Agency/rehearse/internal/bus"
	"github.com/MikeSquared-Agency/rehearse/internal/grading"
	"github.com/MikeSquared-Agency/rehearse/internal/llm"
	"github.com/MikeSquared-Agency/rehearse/internal/llm/llmtest"
	"github.com/MikeSquared-Agency/rehearse/internal/metrics"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/protocol"
	"github.com/MikeSquared-Agency/rehearse/internal/report"
	"github.com/MikeSquared-Agency/rehearse/internal/store"
)

type published struct {
	subject string
	data    any
}

type recordingBus struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBus) Publish(subject string, data any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{subject, data})
	return nil
}

func (b *recordingBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.subject
	}
	return out
}

func (b *recordingBus) last() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1].data
}

type recordingNotifier struct {
	mu   sync.Mutex
	recs []report.Record
}

func (n *recordingNotifier) PostReportDigest(_ context.Context, rec report.Record) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recs = append(n.recs, rec)
	return "1.0", nil
}

type failingStore struct {
	store.Store
}

func (failingStore) SaveSession(context.Context, store.SavedSession) error {
	return errors.New("disk full")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cannedReply() string {
	return protocol.Render("小陈", protocol.Turn{
		Text:       "我觉得不公平",
		Evaluation: "拨云见日",
		Scores:     protocol.AcceptanceState{Openness: 0.2},
	})
}

func reportJSON() string {
	rep := report.Fallback()
	rep.Score = 74
	rep.Level = grading.LevelCompetent
	rep.Summary = "沟通清晰"
	body, _ := json.Marshal(rep)
	return string(body)
}

func newFake() *llmtest.Fake {
	return &llmtest.Fake{
		ChatFunc: func(context.Context, []string, string) (string, error) {
			return cannedReply(), nil
		},
		StructuredFunc: func(context.Context, string, *llm.Schema) (string, error) {
			return reportJSON(), nil
		},
	}
}

type fixture struct {
	mgr      *Manager
	store    *store.FileStore
	bus      *recordingBus
	notifier *recordingNotifier
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, f *llmtest.Fake, mutate func(*Deps)) *fixture {
	t.Helper()
	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "store.json"), discardLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	cache, err := audio.NewCache(8)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	fx := &fixture{
		store:    fs,
		bus:      &recordingBus{},
		notifier: &recordingNotifier{},
		metrics:  m,
	}
	deps := Deps{
		LLM:      f,
		Reports:  report.New(f, store.Recorder{Store: fs}, nil, discardLogger()),
		Store:    fs,
		Audio:    cache,
		Bus:      fx.bus,
		Notifier: fx.notifier,
		Metrics:  m,
		Logger:   discardLogger(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	fx.mgr = New(deps)
	t.Cleanup(fx.mgr.Close)
	return fx
}

func TestStart_RegistersAndPublishes(t *testing.T) {
	fx := newFixture(t, newFake(), nil)
	p := persona.Templates()[0]

	sess, err := fx.mgr.Start(context.Background(), p)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, err := fx.mgr.Get(sess.ID)
	if err != nil || got != sess {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if fx.mgr.Live() != 1 {
		t.Errorf("Live = %d, want 1", fx.mgr.Live())
	}

	ev, ok := fx.bus.last().(bus.SessionStarted)
	if !ok {
		t.Fatalf("expected SessionStarted, got %T", fx.bus.last())
	}
	if ev.SessionID != sess.ID || ev.PersonaName != p.Name || ev.Rating != p.ThisPerformance {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestStart_RejectsIncompletePersona(t *testing.T) {
	fx := newFixture(t, newFake(), nil)
	p := persona.Templates()[0]
	p.Description = ""

	if _, err := fx.mgr.Start(context.Background(), p); !errors.Is(err, persona.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if fx.mgr.Live() != 0 {
		t.Error("failed start should not register a session")
	}
	if len(fx.bus.subjects()) != 0 {
		t.Error("failed start should not publish")
	}
}

func TestGet_Unknown(t *testing.T) {
	fx := newFixture(t, newFake(), nil)
	if _, err := fx.mgr.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEnd_CompilesPersistsAndNotifies(t *testing.T) {
	fx := newFixture(t, newFake(), nil)
	ctx := context.Background()
	sess, err := fx.mgr.Start(ctx, persona.Templates()[1])
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := sess.Send(ctx, "我们聊聊这次的绩效"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	rec, err := fx.mgr.End(ctx, sess.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if rec.Report.Score != 74 || rec.Report.Level != grading.LevelCompetent {
		t.Errorf("unexpected report %+v", rec.Report)
	}
	if len(rec.Messages) != 3 {
		t.Errorf("expected system, user and model messages, got %d", len(rec.Messages))
	}

	saved, err := fx.store.GetSession(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if saved.Report.Summary != "沟通清晰" {
		t.Errorf("saved summary = %q", saved.Report.Summary)
	}

	if _, err := fx.mgr.Get(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("ended session should no longer be live")
	}
	if _, err := fx.mgr.End(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("second End should report not found")
	}

	ev, ok := fx.bus.last().(bus.SessionCompleted)
	if !ok {
		t.Fatalf("expected SessionCompleted, got %T", fx.bus.last())
	}
	if ev.SessionID != rec.ID || ev.Turns != 1 || !ev.Persisted || ev.Fallback || ev.Grade != "B" {
		t.Errorf("unexpected completion event %+v", ev)
	}

	fx.mgr.Close()
	fx.notifier.mu.Lock()
	defer fx.notifier.mu.Unlock()
	if len(fx.notifier.recs) != 1 || fx.notifier.recs[0].ID != rec.ID {
		t.Errorf("expected one digest for %s, got %+v", rec.ID, fx.notifier.recs)
	}
}

func TestEnd_FallbackReportStillRecorded(t *testing.T) {
	f := newFake()
	f.StructuredFunc = func(context.Context, string, *llm.Schema) (string, error) {
		return "", errors.New("quota exceeded")
	}
	fx := newFixture(t, f, nil)
	ctx := context.Background()
	sess, _ := fx.mgr.Start(ctx, persona.Templates()[0])

	rec, err := fx.mgr.End(ctx, sess.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if rec.Report.Score != 50 || rec.Report.Level != grading.LevelDeveloping {
		t.Errorf("expected fallback report, got %+v", rec.Report)
	}
	ev := fx.bus.last().(bus.SessionCompleted)
	if !ev.Fallback {
		t.Error("completion event should flag the fallback report")
	}
}

func TestEnd_StoreFailureReturnsRecord(t *testing.T) {
	f := newFake()
	fx := newFixture(t, f, func(d *Deps) {
		d.Reports = report.New(f, store.Recorder{Store: failingStore{d.Store}}, nil, discardLogger())
	})
	ctx := context.Background()
	sess, _ := fx.mgr.Start(ctx, persona.Templates()[0])

	rec, err := fx.mgr.End(ctx, sess.ID)
	if !errors.Is(err, report.ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted, got %v", err)
	}
	if rec.ID == "" || rec.Report.Score != 74 {
		t.Errorf("expected usable record, got %+v", rec)
	}
	if ev := fx.bus.last().(bus.SessionCompleted); ev.Persisted {
		t.Error("completion event should report persisted=false")
	}
}

func TestAbandon(t *testing.T) {
	fx := newFixture(t, newFake(), nil)
	ctx := context.Background()
	sess, _ := fx.mgr.Start(ctx, persona.Templates()[0])

	if err := fx.mgr.Abandon(sess.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if _, err := sess.Send(ctx, "还在吗"); err == nil {
		t.Error("abandoned session should reject sends")
	}
	if err := fx.mgr.Abandon(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	list, _ := fx.store.ListSessions(ctx)
	if len(list) != 0 {
		t.Errorf("abandon should not record a session, got %d", len(list))
	}
}

func TestSubmitFeedback(t *testing.T) {
	fx := newFixture(t, newFake(), nil)
	ctx := context.Background()
	sess, _ := fx.mgr.Start(ctx, persona.Templates()[0])
	rec, err := fx.mgr.End(ctx, sess.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}

	patch := store.SessionPatch{UserFeedback: &store.UserFeedback{OverallScore: 8, RealismScore: 7, UtilityScore: 9, Comment: "很真实"}}
	if err := fx.mgr.SubmitFeedback(ctx, rec.ID, patch); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	saved, _ := fx.store.GetSession(ctx, rec.ID)
	if saved.UserFeedback == nil || saved.UserFeedback.RealismScore != 7 {
		t.Errorf("feedback not merged: %+v", saved.UserFeedback)
	}

	ev, ok := fx.bus.last().(bus.FeedbackSubmitted)
	if !ok {
		t.Fatalf("expected FeedbackSubmitted, got %T", fx.bus.last())
	}
	if ev.SessionID != rec.ID || !ev.HasComment || *ev.UtilityScore != 9 {
		t.Errorf("unexpected feedback event %+v", ev)
	}
}

func TestSubmitFeedback_Errors(t *testing.T) {
	fx := newFixture(t, newFake(), nil)
	ctx := context.Background()

	if err := fx.mgr.SubmitFeedback(ctx, "x", store.SessionPatch{}); !errors.Is(err, store.ErrInvalidPatch) {
		t.Errorf("expected ErrInvalidPatch, got %v", err)
	}
	nps := 9
	if err := fx.mgr.SubmitFeedback(ctx, "missing", store.SessionPatch{NPS: &nps}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if len(fx.bus.subjects()) != 0 {
		t.Error("failed feedback should not publish")
	}
}

func TestAudio_ServedFromCache(t *testing.T) {
	f := newFake()
	f.SpeechFunc = func(context.Context, string, string) ([]byte, error) {
		return []byte{1, 0, 2, 0}, nil
	}
	fx := newFixture(t, f, func(d *Deps) { d.Speech = true })
	ctx := context.Background()
	sess, _ := fx.mgr.Start(ctx, persona.Templates()[0])
	msg, err := sess.Send(ctx, "你好")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		wav, ok := fx.mgr.Audio(msg.ID)
		if ok {
			if len(wav) != 44+4 || string(wav[:4]) != "RIFF" {
				t.Errorf("unexpected wav of %d bytes", len(wav))
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("speech never reached the cache")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClose_ClosesLiveSessions(t *testing.T) {
	fx := newFixture(t, newFake(), nil)
	ctx := context.Background()
	a, _ := fx.mgr.Start(ctx, persona.Templates()[0])
	b, _ := fx.mgr.Start(ctx, persona.Templates()[2])

	fx.mgr.Close()
	if fx.mgr.Live() != 0 {
		t.Errorf("Live = %d after Close", fx.mgr.Live())
	}
	if _, err := a.Send(ctx, "x"); err == nil {
		t.Error("session a should be closed")
	}
	if _, err := b.Send(ctx, "x"); err == nil {
		t.Error("session b should be closed")
	}
}
