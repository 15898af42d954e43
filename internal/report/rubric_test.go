package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRubric_Valid(t *testing.T) {
	if err := DefaultRubric().Validate(); err != nil {
		t.Fatalf("default rubric invalid: %v", err)
	}
}

func TestRubricValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Rubric)
		want   string
	}{
		{"base score", func(r *Rubric) { r.BaseScore = 0 }, "baseScore"},
		{"missing dimension", func(r *Rubric) { r.Dimensions = r.Dimensions[:2] }, "listening"},
		{"no forbidden", func(r *Rubric) { r.Dimensions[0].Forbidden = nil }, "forbidden"},
		{"rotation", func(r *Rubric) { r.RotationFallacy = " " }, "rotationFallacy"},
		{"steps", func(r *Rubric) { r.FiveSteps = r.FiveSteps[:4] }, "5 steps"},
		{"resources", func(r *Rubric) { r.Resources = nil }, "resources"},
		{"resource url", func(r *Rubric) { r.Resources[0].URL = "" }, "title and url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRubric()
			tt.mutate(r)
			err := r.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

const yamlRubric = `baseScore: 3
rotationFallacy: 说这次轮到你了
maxResources: 2
dimensions:
  - key: sbi
    name: 事实
    forbidden: [贴标签]
  - key: grow
    name: 辅导
    forbidden: [替员工做决定]
  - key: listening
    name: 倾听
    forbidden: [打断]
fiveSteps:
  - name: 一
  - name: 二
  - name: 三
  - name: 四
  - name: 五
resources:
  - title: 资源A
    url: https://example.com/a
    description: A
`

func TestLoadRubric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	if err := os.WriteFile(path, []byte(yamlRubric), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadRubric(path)
	if err != nil {
		t.Fatalf("LoadRubric: %v", err)
	}
	if r.BaseScore != 3 || r.maxResources() != 2 || r.FiveSteps[4].Name != "五" {
		t.Errorf("unexpected rubric %+v", r)
	}

	s := Schema(r)
	if got := s.Properties["fiveSteps"].Items.Properties["stepName"].Enum; len(got) != 5 || got[0] != "一" {
		t.Errorf("expected step enum from rubric, got %v", got)
	}
	if got := s.Properties["learningResources"].Items.Properties["title"].Enum; len(got) != 1 || got[0] != "资源A" {
		t.Errorf("expected resource enum from rubric, got %v", got)
	}
}

func TestLoadRubric_Errors(t *testing.T) {
	if _, err := LoadRubric(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := LoadRubric(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("baseScore: [\n"), 0o644)
	if _, err := LoadRubric(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
