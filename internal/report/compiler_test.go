package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/rehearse/internal/conversation"
	"github.com/MikeSquared-Agency/rehearse/internal/grading"
	"github.com/MikeSquared-Agency/rehearse/internal/llm"
	"github.com/MikeSquared-Agency/rehearse/internal/llm/llmtest"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
)

type memRecorder struct {
	records []Record
	err     error
}

func (m *memRecorder) RecordSession(_ context.Context, rec Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func transcript() []conversation.Message {
	now := time.Now()
	return []conversation.Message{
		{ID: "0", Role: conversation.RoleSystem, Text: "场景加载完成。", Timestamp: now},
		{ID: "1", Role: conversation.RoleUser, Text: "我们聊聊这次的绩效", Timestamp: now},
		{ID: "2", Role: conversation.RoleModel, Text: "我觉得不公平", Timestamp: now},
	}
}

func goodReport() FeedbackReport {
	return FeedbackReport{
		Score:      82,
		Level:      grading.LevelExcellent,
		Summary:    "整体表现良好",
		Strengths:  []string{"事实清晰"},
		Challenges: []string{"缺少跟进"},
		SBI:        DimensionEvaluation{Score: 5, Analysis: "好", ForbiddenBehaviors: []string{}},
		GROW:       DimensionEvaluation{Score: 3, Analysis: "一般", ForbiddenBehaviors: []string{"没有约定可衡量的改进目标"}},
		Listening:  DimensionEvaluation{Score: 4, Analysis: "不错", ForbiddenBehaviors: []string{}},
		FiveSteps: []FiveStepEvaluation{
			{StepName: "开场定调", Executed: true, Analysis: "有"},
			{StepName: "事实回顾", Executed: true, Analysis: "有"},
			{StepName: "倾听回应", Executed: true, Analysis: "有"},
			{StepName: "共识改进", Executed: false, Analysis: "无", RecommendedScript: "我们一起定个目标吧"},
			{StepName: "支持跟进", Executed: false, Analysis: "无", RecommendedScript: "下周我们再对一次"},
		},
		LongTermAdvice:    "多练习 GROW",
		LearningResources: []LearningResource{{Title: "GROW 教练模型", URL: "https://en.wikipedia.org/wiki/GROW_model", Description: "x"}},
	}
}

func newCompiler(f *llmtest.Fake, rec Recorder) *Compiler {
	return New(f, rec, nil, slog.Default())
}

func TestCompile_Success(t *testing.T) {
	body, _ := json.Marshal(goodReport())
	f := &llmtest.Fake{
		StructuredFunc: func(context.Context, string, *llm.Schema) (string, error) {
			return string(body), nil
		},
	}
	rec := &memRecorder{}
	c := newCompiler(f, rec)

	got, err := c.Compile(context.Background(), transcript(), persona.Templates()[0])
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.ID == "" {
		t.Error("expected fresh session id")
	}
	if got.Report.Score != 82 || got.Report.Summary != "整体表现良好" {
		t.Errorf("unexpected report %+v", got.Report)
	}
	if len(rec.records) != 1 || rec.records[0].ID != got.ID {
		t.Fatalf("expected record persisted under %s", got.ID)
	}
	if len(rec.records[0].Messages) != 3 {
		t.Errorf("expected full transcript persisted, got %d messages", len(rec.records[0].Messages))
	}
}

func TestCompile_PromptExcludesSystemMessages(t *testing.T) {
	var prompt string
	var schema *llm.Schema
	f := &llmtest.Fake{
		StructuredFunc: func(_ context.Context, p string, s *llm.Schema) (string, error) {
			prompt, schema = p, s
			return "{}", nil
		},
	}
	c := newCompiler(f, &memRecorder{})
	c.Compile(context.Background(), transcript(), persona.Templates()[0])

	if strings.Contains(prompt, "场景加载完成") {
		t.Error("system message leaked into report prompt")
	}
	for _, want := range []string{"USER: 我们聊聊这次的绩效", "MODEL: 我觉得不公平", "轮流", "开场定调", "GROW 教练模型"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected %q in prompt", want)
		}
	}
	if schema == nil || len(schema.Required) != 12 {
		t.Errorf("expected schema with 12 required fields, got %+v", schema)
	}
}

func TestCompile_FallbackOnFailure(t *testing.T) {
	cases := map[string]func(context.Context, string, *llm.Schema) (string, error){
		"transport": func(context.Context, string, *llm.Schema) (string, error) {
			return "", errors.New("timeout")
		},
		"garbage": func(context.Context, string, *llm.Schema) (string, error) {
			return "抱歉，我无法完成", nil
		},
		"empty": func(context.Context, string, *llm.Schema) (string, error) {
			return "", nil
		},
		"empty object": func(context.Context, string, *llm.Schema) (string, error) {
			return "{}", nil
		},
		"null": func(context.Context, string, *llm.Schema) (string, error) {
			return "null", nil
		},
		"unrelated object": func(context.Context, string, *llm.Schema) (string, error) {
			return `{"unrelated": true}`, nil
		},
		"truncated": func(context.Context, string, *llm.Schema) (string, error) {
			return `{"score": 72, "level": "胜任级", "summary": "还行"`, nil
		},
		"null field": func(context.Context, string, *llm.Schema) (string, error) {
			rep := goodReport()
			rep.Strengths = nil
			body, _ := json.Marshal(rep)
			return string(body), nil
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			rec := &memRecorder{}
			c := newCompiler(&llmtest.Fake{StructuredFunc: fn}, rec)

			got, err := c.Compile(context.Background(), transcript(), persona.Templates()[0])
			if err != nil {
				t.Fatalf("expected fallback without error, got %v", err)
			}
			r := got.Report
			if r.Summary != fallbackSummary || !got.Fallback {
				t.Errorf("expected fallback report, got %q (fallback=%v)", r.Summary, got.Fallback)
			}
			if r.Score < 0 || r.Score > 100 || !r.Level.Valid() {
				t.Errorf("inconsistent fallback %+v", r)
			}
			if r.Strengths == nil || r.Challenges == nil || r.FiveSteps == nil || r.LearningResources == nil {
				t.Error("expected non-nil lists in fallback")
			}
			if len(rec.records) != 1 {
				t.Error("expected fallback report persisted")
			}
		})
	}
}

func TestCompile_RepairsTruncatedJSON(t *testing.T) {
	body, _ := json.Marshal(goodReport())
	truncated := strings.TrimSuffix(string(body), "}")
	f := &llmtest.Fake{
		StructuredFunc: func(context.Context, string, *llm.Schema) (string, error) {
			return truncated, nil
		},
	}
	c := newCompiler(f, &memRecorder{})

	got, err := c.Compile(context.Background(), transcript(), persona.Templates()[0])
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.Fallback || got.Report.Score != 82 || got.Report.Summary != "整体表现良好" {
		t.Errorf("expected repaired report, got %+v", got.Report)
	}
}

func TestCompile_FallbackSummaryFromModelIsNotFallback(t *testing.T) {
	rep := goodReport()
	rep.Summary = fallbackSummary
	body, _ := json.Marshal(rep)
	f := &llmtest.Fake{
		StructuredFunc: func(context.Context, string, *llm.Schema) (string, error) {
			return string(body), nil
		},
	}
	got, err := newCompiler(f, &memRecorder{}).Compile(context.Background(), transcript(), persona.Templates()[0])
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.Fallback || got.Report.Score != 82 {
		t.Errorf("model report should not be flagged as fallback: %+v", got)
	}
}

func TestDecode_ReportsMissingFields(t *testing.T) {
	_, err := decode(`{"score": 72, "level": "胜任级"}`, Schema(DefaultRubric()).Required)
	if !errors.Is(err, ErrIncompleteReport) {
		t.Fatalf("expected ErrIncompleteReport, got %v", err)
	}
	if !strings.Contains(err.Error(), "summary") || !strings.Contains(err.Error(), "learningResources") {
		t.Errorf("error should name missing fields: %v", err)
	}
}

func TestCompile_RecorderFailure(t *testing.T) {
	f := &llmtest.Fake{
		StructuredFunc: func(context.Context, string, *llm.Schema) (string, error) {
			return "{}", nil
		},
	}
	c := newCompiler(f, &memRecorder{err: errors.New("disk full")})

	got, err := c.Compile(context.Background(), transcript(), persona.Templates()[0])
	if !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted, got %v", err)
	}
	if got.ID == "" || !got.Report.Level.Valid() {
		t.Errorf("expected usable record alongside error, got %+v", got)
	}
}

func TestNormalize(t *testing.T) {
	r := DefaultRubric()
	in := goodReport()
	in.Score = 130
	in.Level = "大师级"
	in.SBI.Score = 9
	in.GROW.Score = -1
	in.Listening.ForbiddenBehaviors = nil
	in.Strengths = nil
	in.FiveSteps = []FiveStepEvaluation{
		{StepName: "支持跟进", Executed: true, RecommendedScript: "should be cleared"},
		{StepName: "不存在的步骤", Executed: true},
		{StepName: "开场定调", Executed: false, RecommendedScript: "先说明目的"},
	}
	in.LearningResources = []LearningResource{
		{Title: "积极倾听", URL: "https://example.com/wrong"},
		{Title: "虚构资源", URL: "https://example.com"},
		{Title: "积极倾听"},
		{Title: "GROW 教练模型"},
		{Title: "非暴力沟通"},
		{Title: "绩效评估"},
	}

	out := Normalize(in, r)

	if out.Score != 100 {
		t.Errorf("expected score clamped to 100, got %v", out.Score)
	}
	if out.Level != grading.LevelExcellent {
		t.Errorf("expected level derived from score, got %s", out.Level)
	}
	if out.SBI.Score != 5 || out.GROW.Score != 1 {
		t.Errorf("expected dimension clamps, got %v / %v", out.SBI.Score, out.GROW.Score)
	}
	if out.Listening.ForbiddenBehaviors == nil || out.Strengths == nil {
		t.Error("expected nil lists replaced")
	}

	if len(out.FiveSteps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(out.FiveSteps))
	}
	for i, s := range out.FiveSteps {
		if s.StepName != r.FiveSteps[i].Name {
			t.Errorf("step %d: expected %s, got %s", i, r.FiveSteps[i].Name, s.StepName)
		}
		if s.Executed && s.RecommendedScript != "" {
			t.Errorf("step %s executed but has a script", s.StepName)
		}
	}
	if out.FiveSteps[0].RecommendedScript != "先说明目的" {
		t.Errorf("expected script kept on unexecuted step, got %q", out.FiveSteps[0].RecommendedScript)
	}
	if out.FiveSteps[1].Executed {
		t.Error("expected missing step marked unexecuted")
	}

	if len(out.LearningResources) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(out.LearningResources))
	}
	if out.LearningResources[0].URL != "https://en.wikipedia.org/wiki/Active_listening" {
		t.Errorf("expected catalog URL, got %s", out.LearningResources[0].URL)
	}
	if out.LearningResources[1].Title != "GROW 教练模型" {
		t.Errorf("expected duplicates and unknown titles dropped, got %+v", out.LearningResources)
	}
}

func TestFallback_Shape(t *testing.T) {
	f := Fallback()
	if f.Score != 50 || f.Level != grading.LevelDeveloping {
		t.Errorf("unexpected fallback %+v", f)
	}
	for _, d := range []DimensionEvaluation{f.SBI, f.GROW, f.Listening} {
		if d.Score < 1 || d.Score > 5 {
			t.Errorf("dimension score out of range: %v", d.Score)
		}
	}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "null") {
		t.Errorf("fallback JSON has null fields: %s", b)
	}
}

func TestReportGrade(t *testing.T) {
	r := FeedbackReport{Score: 91}
	if r.Grade().Letter != "S" {
		t.Errorf("expected S, got %+v", r.Grade())
	}
}
