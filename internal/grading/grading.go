// Package grading maps report scores onto the tiers and letter grades shown
// to the user.
package grading

import "github.com/MikeSquared-Agency/rehearse/internal/protocol"

type Level string

const (
	LevelNovice     Level = "新手级"
	LevelDeveloping Level = "发展中"
	LevelCompetent  Level = "胜任级"
	LevelExcellent  Level = "卓越级"
)

// Levels in ascending order.
var Levels = []Level{LevelNovice, LevelDeveloping, LevelCompetent, LevelExcellent}

func (l Level) Valid() bool {
	for _, v := range Levels {
		if l == v {
			return true
		}
	}
	return false
}

// LevelForScore returns the tier for an overall score in [0, 100].
func LevelForScore(score float64) Level {
	switch {
	case score < 40:
		return LevelNovice
	case score < 60:
		return LevelDeveloping
	case score < 80:
		return LevelCompetent
	default:
		return LevelExcellent
	}
}

type Grade struct {
	Letter string `json:"letter"`
	Label  string `json:"label"`
}

// GradeForScore returns the letter grade for an overall score.
func GradeForScore(score float64) Grade {
	switch {
	case score >= 90:
		return Grade{Letter: "S", Label: "完美应对"}
	case score >= 80:
		return Grade{Letter: "A", Label: "非常优秀"}
	case score >= 70:
		return Grade{Letter: "B", Label: "合格通过"}
	case score >= 60:
		return Grade{Letter: "C", Label: "有待提升"}
	default:
		return Grade{Letter: "D", Label: "演练失败"}
	}
}

// Dimension scores live in [1, 5]; overall scores in [0, 100].
const (
	MinDimension = 1.0
	MaxDimension = 5.0
	MinOverall   = 0.0
	MaxOverall   = 100.0
)

func ClampDimension(score float64) float64 {
	return clamp(score, MinDimension, MaxDimension)
}

func ClampOverall(score float64) float64 {
	return clamp(score, MinOverall, MaxOverall)
}

// ClampAcceptance bounds a self-reported acceptance component to [-1, 1].
// Used only for display aggregates; stored scores are left as reported.
func ClampAcceptance(v float64) float64 {
	return clamp(v, -1.0, 1.0)
}

// Composite is the mean of the four acceptance components, each clamped.
func Composite(s protocol.AcceptanceState) float64 {
	sum := 0.0
	for _, d := range protocol.Dimensions {
		sum += ClampAcceptance(s.Get(d.Key))
	}
	return sum / float64(len(protocol.Dimensions))
}

func clamp(v, lo, hi float64) float64 {
	if v != v {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
