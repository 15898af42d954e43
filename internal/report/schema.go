package report

import (
	"github.com/MikeSquared-Agency/rehearse/internal/grading"
	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

// Schema builds the structured-output schema for a rubric. Step names and
// resource titles are closed enums drawn from the rubric.
func Schema(r *Rubric) *llm.Schema {
	levels := make([]string, len(grading.Levels))
	for i, l := range grading.Levels {
		levels[i] = string(l)
	}
	steps := make([]string, len(r.FiveSteps))
	for i, s := range r.FiveSteps {
		steps[i] = s.Name
	}
	titles := make([]string, len(r.Resources))
	for i, res := range r.Resources {
		titles[i] = res.Title
	}

	dimension := func(desc string) *llm.Schema {
		s := llm.Object([]string{"score", "analysis", "forbiddenBehaviors"}, map[string]*llm.Schema{
			"score":              llm.Number("维度评分 (1-5)"),
			"analysis":           llm.String("该维度的具体分析 (中文)"),
			"forbiddenBehaviors": llm.Array("检测到的禁止行为描述 (中文)", llm.String("")),
		}, "score", "analysis", "forbiddenBehaviors")
		s.Description = desc
		return s
	}

	step := llm.Object([]string{"stepName", "executed", "analysis", "recommendedScript"}, map[string]*llm.Schema{
		"stepName":          llm.String("步骤名称", steps...),
		"executed":          llm.Boolean("经理是否执行了该步骤"),
		"analysis":          llm.String("执行情况分析 (中文)"),
		"recommendedScript": llm.String("仅在未执行时提供的示范话术 (中文)"),
	}, "stepName", "executed", "analysis")

	resource := llm.Object([]string{"title", "url", "description"}, map[string]*llm.Schema{
		"title":       llm.String("资源标题，必须来自资源库", titles...),
		"url":         llm.String("资源链接"),
		"description": llm.String("推荐理由 (中文)"),
	}, "title", "url", "description")

	order := []string{
		"score", "level", "summary", "strengths", "challenges",
		"sbi", "grow", "listening", "rotationFallacyDetected",
		"fiveSteps", "longTermAdvice", "learningResources",
	}
	return llm.Object(order, map[string]*llm.Schema{
		"score":                   llm.Number("总体效果评分 (0-100)"),
		"level":                   llm.String("能力等级", levels...),
		"summary":                 llm.String("对话的简要执行摘要 (中文)"),
		"strengths":               llm.Array("经理做得好的地方 (中文)", llm.String("")),
		"challenges":              llm.Array("需要改进的地方 (中文)", llm.String("")),
		"sbi":                     dimension("SBI 事实反馈"),
		"grow":                    dimension("GROW 辅导"),
		"listening":               dimension("积极倾听与共情"),
		"rotationFallacyDetected": llm.Boolean("是否出现轮流谬误"),
		"fiveSteps":               llm.Array("五步面谈流程评估，按顺序", step),
		"longTermAdvice":          llm.String("长期发展建议 (中文)"),
		"learningResources":       llm.Array("推荐的 2-3 个学习资源", resource),
	}, order...)
}
