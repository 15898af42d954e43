// Package report turns a finished transcript into a scored FeedbackReport
// and records the session.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/MikeSquared-Agency/rehearse/internal/conversation"
	"github.com/MikeSquared-Agency/rehearse/internal/grading"
	"github.com/MikeSquared-Agency/rehearse/internal/llm"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
)

// ErrNotPersisted is returned alongside a usable result when recording failed.
var ErrNotPersisted = errors.New("report not persisted")

// Record is everything persisted for a finished rehearsal.
type Record struct {
	ID       string
	Date     time.Time
	Persona  persona.Persona
	Messages []conversation.Message
	Report   FeedbackReport
	// Fallback is set when the model gave nothing usable and Report is Fallback().
	Fallback bool
}

// Recorder persists finished rehearsals.
type Recorder interface {
	RecordSession(ctx context.Context, rec Record) error
}

type Compiler struct {
	llm      llm.Client
	recorder Recorder
	rubric   *Rubric
	schema   *llm.Schema
	logger   *slog.Logger
}

// New returns a compiler. A nil rubric selects DefaultRubric.
func New(client llm.Client, recorder Recorder, rubric *Rubric, logger *slog.Logger) *Compiler {
	if rubric == nil {
		rubric = DefaultRubric()
	}
	return &Compiler{
		llm:      client,
		recorder: recorder,
		rubric:   rubric,
		schema:   Schema(rubric),
		logger:   logger,
	}
}

func (c *Compiler) Rubric() *Rubric {
	return c.rubric
}

// Compile scores the transcript and records the session under a new id. It
// always returns a renderable report: model failures yield Fallback. A
// recording failure returns the record together with ErrNotPersisted.
func (c *Compiler) Compile(ctx context.Context, msgs []conversation.Message, p persona.Persona) (Record, error) {
	dialogue := make([]conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != conversation.RoleSystem {
			dialogue = append(dialogue, m)
		}
	}

	c.logger.Info("compiling report",
		"persona", p.Name,
		"turns", len(dialogue),
	)

	rep, err := c.generate(ctx, buildPrompt(c.rubric, p, dialogue))
	fallback := err != nil
	if fallback {
		c.logger.Error("report generation failed, using fallback", "error", err)
		rep = Fallback()
	} else {
		rep = Normalize(rep, c.rubric)
	}

	rec := Record{
		ID:       uuid.New().String(),
		Date:     time.Now().UTC(),
		Persona:  p,
		Messages: append([]conversation.Message(nil), msgs...),
		Report:   rep,
		Fallback: fallback,
	}

	if err := c.recorder.RecordSession(ctx, rec); err != nil {
		c.logger.Error("failed to record session", "session_id", rec.ID, "error", err)
		return rec, fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}

	c.logger.Info("report compiled",
		"session_id", rec.ID,
		"score", rep.Score,
		"level", rep.Level,
	)
	return rec, nil
}

func (c *Compiler) generate(ctx context.Context, prompt string) (FeedbackReport, error) {
	raw, err := c.llm.GenerateStructured(ctx, prompt, c.schema)
	if err != nil {
		return FeedbackReport{}, fmt.Errorf("structured call: %w", err)
	}
	return decode(raw, c.schema.Required)
}

// ErrIncompleteReport is returned when model JSON lacks a required field.
var ErrIncompleteReport = errors.New("report missing required fields")

// decode parses model JSON, repairing it once before giving up. The object
// must carry every required key with a non-null value.
func decode(raw string, required []string) (FeedbackReport, error) {
	if strings.TrimSpace(raw) == "" {
		return FeedbackReport{}, llm.ErrEmptyResponse
	}
	rep, err := decodeComplete([]byte(raw), required)
	if err == nil || errors.Is(err, ErrIncompleteReport) {
		return rep, err
	}

	fixed, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return FeedbackReport{}, fmt.Errorf("parse report: %w", err)
	}
	rep, err = decodeComplete([]byte(fixed), required)
	if err != nil {
		return FeedbackReport{}, fmt.Errorf("repaired report: %w", err)
	}
	return rep, nil
}

func decodeComplete(data []byte, required []string) (FeedbackReport, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return FeedbackReport{}, err
	}
	var missing []string
	for _, key := range required {
		v, ok := fields[key]
		if !ok || string(v) == "null" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return FeedbackReport{}, fmt.Errorf("%w: %s", ErrIncompleteReport, strings.Join(missing, ", "))
	}

	var rep FeedbackReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return FeedbackReport{}, err
	}
	return rep, nil
}

// Fallback is the report shown when the model gives nothing usable.
func Fallback() FeedbackReport {
	dim := func() DimensionEvaluation {
		return DimensionEvaluation{Score: 3, Analysis: "", ForbiddenBehaviors: []string{}}
	}
	return FeedbackReport{
		Score:             50,
		Level:             grading.LevelDeveloping,
		Summary:           fallbackSummary,
		Strengths:         []string{},
		Challenges:        []string{},
		SBI:               dim(),
		GROW:              dim(),
		Listening:         dim(),
		FiveSteps:         []FiveStepEvaluation{},
		LearningResources: []LearningResource{},
	}
}

// Normalize validates the report shape against the rubric: scores are
// clamped, an unknown level is replaced by the tier for the score, steps
// follow rubric order and resources are resolved from the catalog.
func Normalize(rep FeedbackReport, r *Rubric) FeedbackReport {
	rep.Score = grading.ClampOverall(rep.Score)
	if !rep.Level.Valid() {
		rep.Level = grading.LevelForScore(rep.Score)
	}
	rep.Strengths = nonNil(rep.Strengths)
	rep.Challenges = nonNil(rep.Challenges)

	for _, key := range dimensionKeys {
		d := rep.dimension(key)
		d.Score = grading.ClampDimension(d.Score)
		d.ForbiddenBehaviors = nonNil(d.ForbiddenBehaviors)
	}

	rep.FiveSteps = alignSteps(rep.FiveSteps, r.FiveSteps)
	rep.LearningResources = resolveResources(rep.LearningResources, r)
	return rep
}

func alignSteps(got []FiveStepEvaluation, steps []Step) []FiveStepEvaluation {
	byName := make(map[string]FiveStepEvaluation, len(got))
	for _, s := range got {
		name := strings.TrimSpace(s.StepName)
		if _, dup := byName[name]; !dup {
			byName[name] = s
		}
	}
	out := make([]FiveStepEvaluation, 0, len(steps))
	for _, step := range steps {
		s, ok := byName[step.Name]
		if !ok {
			s = FiveStepEvaluation{Executed: false}
		}
		s.StepName = step.Name
		if s.Executed {
			s.RecommendedScript = ""
		}
		out = append(out, s)
	}
	return out
}

func resolveResources(got []LearningResource, r *Rubric) []LearningResource {
	out := make([]LearningResource, 0, len(got))
	seen := make(map[string]bool)
	for _, g := range got {
		res, ok := r.resource(g.Title)
		if !ok || seen[res.Title] {
			continue
		}
		seen[res.Title] = true
		out = append(out, res)
		if len(out) == r.maxResources() {
			break
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
