package report

import "github.com/MikeSquared-Agency/rehearse/internal/grading"

type DimensionEvaluation struct {
	Score              float64  `json:"score"`
	Analysis           string   `json:"analysis"`
	ForbiddenBehaviors []string `json:"forbiddenBehaviors"`
}

type FiveStepEvaluation struct {
	StepName          string `json:"stepName"`
	Executed          bool   `json:"executed"`
	Analysis          string `json:"analysis"`
	RecommendedScript string `json:"recommendedScript,omitempty"`
}

type LearningResource struct {
	Title       string `json:"title" yaml:"title"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
}

// FeedbackReport is the end-of-session assessment.
type FeedbackReport struct {
	Score                   float64              `json:"score"`
	Level                   grading.Level        `json:"level"`
	Summary                 string               `json:"summary"`
	Strengths               []string             `json:"strengths"`
	Challenges              []string             `json:"challenges"`
	SBI                     DimensionEvaluation  `json:"sbi"`
	GROW                    DimensionEvaluation  `json:"grow"`
	Listening               DimensionEvaluation  `json:"listening"`
	RotationFallacyDetected bool                 `json:"rotationFallacyDetected"`
	FiveSteps               []FiveStepEvaluation `json:"fiveSteps"`
	LongTermAdvice          string               `json:"longTermAdvice"`
	LearningResources       []LearningResource   `json:"learningResources"`
}

// Grade is the letter grade for the overall score.
func (r FeedbackReport) Grade() grading.Grade {
	return grading.GradeForScore(r.Score)
}

func (r *FeedbackReport) dimension(key string) *DimensionEvaluation {
	switch key {
	case DimensionSBI:
		return &r.SBI
	case DimensionGROW:
		return &r.GROW
	case DimensionListening:
		return &r.Listening
	}
	return nil
}
