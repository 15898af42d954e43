package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/rehearse/internal/conversation"
	"github.com/MikeSquared-Agency/rehearse/internal/persona"
)

const reportPrompt = `扮演一位资深人力资源总监和领导力教练。分析以下绩效面谈演练的对话记录，评估经理 (USER) 的沟通表现。

员工: %s (%s)
工龄: %s年
本次绩效: %s
痛点: %s

对话记录:
%s

评分规则:
%s

请以 JSON 格式提供结构化的评估，**所有文本内容必须使用中文**。`

const fallbackSummary = "无法生成详细报告。请人工查看对话记录。"

func buildPrompt(r *Rubric, p persona.Persona, msgs []conversation.Message) string {
	return fmt.Sprintf(reportPrompt,
		p.Name, p.JobTitle,
		strconv.FormatFloat(p.YearsOfExperience, 'f', -1, 64),
		p.ThisPerformance,
		p.BusinessPainPoints,
		renderTranscript(msgs),
		renderRubric(r),
	)
}

func renderTranscript(msgs []conversation.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, strings.ToUpper(string(m.Role))+": "+m.Text)
	}
	if len(lines) == 0 {
		return "(经理没有进行任何对话)"
	}
	return strings.Join(lines, "\n")
}

func renderRubric(r *Rubric) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "一、核心维度 (每项 1-5 分)：每个维度基础分为 %d 分，每出现一项禁止行为扣 1 分，表现符合优秀标准加 1 分，最终分数限制在 1 到 5 之间。forbiddenBehaviors 列出实际检测到的禁止行为。\n", r.BaseScore)
	for _, key := range dimensionKeys {
		d := r.dimension(key)
		fmt.Fprintf(&sb, "维度 %s：%s。%s\n  禁止行为：\n", d.Key, d.Name, d.Focus)
		for _, f := range d.Forbidden {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
		if d.Exemplary != "" {
			fmt.Fprintf(&sb, "  优秀标准：%s\n", d.Exemplary)
		}
	}

	fmt.Fprintf(&sb, "\n二、轮流谬误 (rotationFallacyDetected)：%s 出现即为 true。\n", r.RotationFallacy)

	sb.WriteString("\n三、五步面谈流程 (fiveSteps)：按顺序逐一评估是否执行，只有未执行的步骤才提供 recommendedScript (经理可以直接使用的示范话术)。\n")
	for i, s := range r.FiveSteps {
		fmt.Fprintf(&sb, "  %d. %s：%s\n", i+1, s.Name, s.Description)
	}

	sb.WriteString("\n四、总体评分 score (0-100) 与等级 level (新手级 / 发展中 / 胜任级 / 卓越级)。\n")

	fmt.Fprintf(&sb, "\n五、学习资源 (learningResources)：根据暴露出的短板，从以下资源库中挑选 2-%d 项，title 与 url 必须与资源库完全一致：\n", r.maxResources())
	for _, res := range r.Resources {
		fmt.Fprintf(&sb, "  - %s (%s)：%s\n", res.Title, res.URL, res.Description)
	}

	return strings.TrimRight(sb.String(), "\n")
}
