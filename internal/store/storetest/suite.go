// Package storetest is a conformance suite shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rehearse/internal/conversation"
	"github.com/MikeSquared-Agency/rehearse/internal/grading"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/protocol"
	"github.com/MikeSquared-Agency/rehearse/internal/report"
	"github.com/MikeSquared-Agency/rehearse/internal/store"
)

// Session builds a realistic saved session.
func Session(summary string) store.SavedSession {
	now := time.Now().UTC().Truncate(time.Millisecond)
	scores := protocol.AcceptanceState{Openness: 0.2, Clarity: -0.1}
	rep := report.Fallback()
	rep.Summary = summary
	rep.Score = 64
	rep.Level = grading.LevelCompetent
	return store.SavedSession{
		ID:      uuid.NewString(),
		Date:    now,
		Persona: persona.Templates()[1],
		Messages: []conversation.Message{
			{ID: uuid.NewString(), Role: conversation.RoleSystem, Text: "场景加载完成。", Timestamp: now},
			{ID: uuid.NewString(), Role: conversation.RoleUser, Text: "聊聊绩效", Timestamp: now},
			{ID: uuid.NewString(), Role: conversation.RoleModel, Text: "好的", Timestamp: now, Scores: &scores, Evaluation: "投石问路"},
		},
		Report: rep,
	}
}

func intPtr(v int) *int { return &v }

// Run exercises the full Store contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("SaveListNewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, b := Session("first"), Session("second")
		if err := s.SaveSession(ctx, a); err != nil {
			t.Fatalf("save a: %v", err)
		}
		if err := s.SaveSession(ctx, b); err != nil {
			t.Fatalf("save b: %v", err)
		}

		list, err := s.ListSessions(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
			t.Fatalf("expected [b, a], got %d sessions", len(list))
		}
		got := list[1]
		if got.Report.Summary != "first" || len(got.Messages) != 3 || got.Persona.Name != a.Persona.Name {
			t.Errorf("round trip lost data: %+v", got)
		}
		if got.Messages[2].Scores == nil || got.Messages[2].Scores.Openness != 0.2 {
			t.Errorf("expected message scores preserved, got %+v", got.Messages[2].Scores)
		}
		if !got.Date.Equal(a.Date) {
			t.Errorf("expected date %v, got %v", a.Date, got.Date)
		}
	})

	t.Run("GetSession", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := Session("x")
		s.SaveSession(ctx, a)

		got, err := s.GetSession(ctx, a.ID)
		if err != nil || got.ID != a.ID {
			t.Fatalf("expected session %s, got %v (%v)", a.ID, got.ID, err)
		}
		if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateChangesOnlyPatchedField", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := Session("keep me")
		s.SaveSession(ctx, a)

		if err := s.UpdateSession(ctx, a.ID, store.SessionPatch{NPS: intPtr(9)}); err != nil {
			t.Fatalf("update nps: %v", err)
		}
		got, _ := s.GetSession(ctx, a.ID)
		if got.NPS == nil || *got.NPS != 9 {
			t.Fatalf("expected nps 9, got %v", got.NPS)
		}
		if got.UserFeedback != nil || got.Report.Summary != "keep me" || len(got.Messages) != 3 {
			t.Errorf("update touched other fields: %+v", got)
		}

		fb := store.UserFeedback{OverallScore: 8, RealismScore: 7, UtilityScore: 9, Comment: "有用"}
		if err := s.UpdateSession(ctx, a.ID, store.SessionPatch{UserFeedback: &fb}); err != nil {
			t.Fatalf("update feedback: %v", err)
		}
		got, _ = s.GetSession(ctx, a.ID)
		if got.UserFeedback == nil || *got.UserFeedback != fb {
			t.Errorf("expected feedback %+v, got %+v", fb, got.UserFeedback)
		}
		if got.NPS == nil || *got.NPS != 9 {
			t.Error("feedback update cleared nps")
		}
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateSession(context.Background(), "missing", store.SessionPatch{NPS: intPtr(1)})
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateInvalidPatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := Session("x")
		s.SaveSession(ctx, a)
		if err := s.UpdateSession(ctx, a.ID, store.SessionPatch{NPS: intPtr(11)}); !errors.Is(err, store.ErrInvalidPatch) {
			t.Errorf("expected ErrInvalidPatch, got %v", err)
		}
		if err := s.UpdateSession(ctx, a.ID, store.SessionPatch{}); !errors.Is(err, store.ErrInvalidPatch) {
			t.Errorf("expected ErrInvalidPatch for empty patch, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a, b := Session("a"), Session("b")
		s.SaveSession(ctx, a)
		s.SaveSession(ctx, b)

		if err := s.DeleteSession(ctx, a.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeleteSession(ctx, "missing"); err != nil {
			t.Errorf("deleting unknown id should be a no-op, got %v", err)
		}
		list, _ := s.ListSessions(ctx)
		if len(list) != 1 || list[0].ID != b.ID {
			t.Errorf("expected only b left, got %d sessions", len(list))
		}
	})

	t.Run("EmptyLists", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		sessions, err := s.ListSessions(ctx)
		if err != nil || sessions == nil || len(sessions) != 0 {
			t.Errorf("expected empty non-nil sessions, got %v (%v)", sessions, err)
		}
		personas, err := s.ListCustomPersonas(ctx)
		if err != nil || personas == nil || len(personas) != 0 {
			t.Errorf("expected empty non-nil personas, got %v (%v)", personas, err)
		}
	})

	t.Run("CustomPersonaUpsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := persona.Templates()[1]
		p.VoiceName = ""
		saved, err := s.SaveCustomPersona(ctx, p)
		if err != nil {
			t.Fatalf("save persona: %v", err)
		}
		if saved.ID == "" || !saved.IsCustom || saved.VoiceName != "Kore" {
			t.Errorf("expected id, custom flag and default voice, got %+v", saved)
		}

		saved.JobTitle = "销售经理"
		if _, err := s.SaveCustomPersona(ctx, saved); err != nil {
			t.Fatalf("update persona: %v", err)
		}
		list, _ := s.ListCustomPersonas(ctx)
		if len(list) != 1 || list[0].JobTitle != "销售经理" {
			t.Fatalf("expected single updated persona, got %+v", list)
		}

		other, _ := s.SaveCustomPersona(ctx, persona.Templates()[2])
		list, _ = s.ListCustomPersonas(ctx)
		if len(list) != 2 || list[0].ID != other.ID {
			t.Errorf("expected newest persona first, got %+v", list)
		}

		if err := s.DeleteCustomPersona(ctx, saved.ID); err != nil {
			t.Fatalf("delete persona: %v", err)
		}
		if err := s.DeleteCustomPersona(ctx, "missing"); err != nil {
			t.Errorf("deleting unknown persona should be a no-op, got %v", err)
		}
		list, _ = s.ListCustomPersonas(ctx)
		if len(list) != 1 || list[0].ID != other.ID {
			t.Errorf("expected only the second persona, got %+v", list)
		}
	})

	t.Run("CustomPersonaInvalid", func(t *testing.T) {
		s := newStore(t)
		p := persona.Templates()[0]
		p.Name = ""
		if _, err := s.SaveCustomPersona(context.Background(), p); !errors.Is(err, store.ErrInvalidPersona) {
			t.Errorf("expected ErrInvalidPersona, got %v", err)
		}
	})

	t.Run("Recorder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		sess := Session("recorded")
		rec := report.Record{ID: sess.ID, Date: sess.Date, Persona: sess.Persona, Messages: sess.Messages, Report: sess.Report}

		if err := (store.Recorder{Store: s}).RecordSession(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
		got, err := s.GetSession(ctx, sess.ID)
		if err != nil || got.Report.Summary != "recorded" {
			t.Errorf("expected recorded session, got %+v (%v)", got, err)
		}
	})
}
