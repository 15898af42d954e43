// Package protocol defines the plain-text turn format the role-play model
// must follow and the tolerant decoder that turns model output back into
// dialogue, an evaluation label and an acceptance state.
package protocol

import (
	"strconv"
	"strings"
)

// Separator is the literal line that splits the three segments of a turn.
const Separator = "________________________________________"

const (
	replySuffix   = "回复："
	evaluationKey = "经理话术评价"
	stateKey      = "当前状态盘点"
)

// AcceptanceState is the persona's self-reported disposition, each
// component in [-1, +1]. It is model telemetry and is never recomputed.
type AcceptanceState struct {
	Openness   float64 `json:"openness"`
	Clarity    float64 `json:"clarity"`
	Acceptance float64 `json:"acceptance"`
	Commitment float64 `json:"commitment"`
}

// Dimension describes one component of the acceptance state.
type Dimension struct {
	Key     string
	Label   string
	English string
}

// Dimensions are listed in wire order.
var Dimensions = []Dimension{
	{Key: "openness", Label: "心态开放度", English: "Openness"},
	{Key: "clarity", Label: "认知清晰度", English: "Clarity"},
	{Key: "acceptance", Label: "情感接受度", English: "Acceptance"},
	{Key: "commitment", Label: "向前承诺", English: "Commitment"},
}

// Get returns the component named by a dimension key.
func (s AcceptanceState) Get(key string) float64 {
	switch key {
	case "openness":
		return s.Openness
	case "clarity":
		return s.Clarity
	case "acceptance":
		return s.Acceptance
	case "commitment":
		return s.Commitment
	}
	return 0
}

func (s *AcceptanceState) set(key string, v float64) {
	switch key {
	case "openness":
		s.Openness = v
	case "clarity":
		s.Clarity = v
	case "acceptance":
		s.Acceptance = v
	case "commitment":
		s.Commitment = v
	}
}

// Turn is a decoded model reply.
type Turn struct {
	Text       string          `json:"text"`
	Scores     AcceptanceState `json:"scores"`
	Evaluation string          `json:"evaluation"`
}

// Render writes a turn in the exact output template. It is the inverse of Parse.
func Render(name string, t Turn) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteString(replySuffix)
	sb.WriteString("\n")
	sb.WriteString(t.Text)
	sb.WriteString("\n")
	sb.WriteString(Separator)
	sb.WriteString("\n**")
	sb.WriteString(evaluationKey)
	sb.WriteString("**：[")
	sb.WriteString(t.Evaluation)
	sb.WriteString("]\n")
	sb.WriteString(Separator)
	sb.WriteString("\n**")
	sb.WriteString(stateKey)
	sb.WriteString("**：\n")
	for i, d := range Dimensions {
		sb.WriteString(d.Label)
		sb.WriteString(": ")
		sb.WriteString(strconv.FormatFloat(t.Scores.Get(d.Key), 'f', -1, 64))
		if i < len(Dimensions)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Template is the output contract shown to the model, with placeholders
// in place of values.
func Template(name string) string {
	var sb strings.Builder
	sb.WriteString(name + replySuffix + "\n")
	sb.WriteString("(此处生成回复内容，口语化，不要带动作括号)\n")
	sb.WriteString(Separator + "\n")
	sb.WriteString("**" + evaluationKey + "**：[四字标签]\n")
	sb.WriteString(Separator + "\n")
	sb.WriteString("**" + stateKey + "**：\n")
	for i, d := range Dimensions {
		sb.WriteString(d.Label + ": X.X")
		if i < len(Dimensions)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
