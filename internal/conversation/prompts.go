package conversation

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/rehearse/internal/persona"
)

const openingTemplate = "场景加载完成。%s 已进入会议室。目标：传达 %s 绩效评级并达成改进计划。"

const coachUserPrompt = `背景: 绩效面谈演练。
员工: %s (%s)
痛点: %s

截至目前的对话:
%s

经理刚刚说了: "%s"

作为资深沟通教练，请指出这句话的潜在问题（如果有），并给出 3 个**更专业、更有效**的改写版本。
请直接列出改写建议。`

const coachModelPrompt = `背景: 绩效面谈演练。
员工: %s (%s)
痛点: %s

截至目前的对话:
%s

员工刚刚说了: "%s"

作为资深管理教练，请给经理 3 个具体的回复方向建议。`

const analysisPrompt = `背景: 绩效面谈演练。
目标: 传达%s绩效并达成改进。

截至目前的对话:
%s

请分析这句话:
"%s"

角色: %s

作为管理教练，请点评：
1. 这句话背后的心理/意图是什么？
2. 它对当前的谈判局势有什么影响 (正面/负面)？
请用中文简短点评 (100字以内)。`

func openingText(p persona.Persona) string {
	return fmt.Sprintf(openingTemplate, p.Name, p.ThisPerformance)
}

func buildCoachPrompt(p persona.Persona, prefix []Message) string {
	target := prefix[len(prefix)-1]
	history := renderTranscript(prefix[:len(prefix)-1])
	if target.Role == RoleUser {
		return fmt.Sprintf(coachUserPrompt, p.Name, p.JobTitle, p.BusinessPainPoints, history, target.Text)
	}
	return fmt.Sprintf(coachModelPrompt, p.Name, p.JobTitle, p.BusinessPainPoints, history, target.Text)
}

func buildAnalysisPrompt(p persona.Persona, prefix []Message) string {
	target := prefix[len(prefix)-1]
	role := "员工"
	if target.Role == RoleUser {
		role = "经理 (用户)"
	}
	return fmt.Sprintf(analysisPrompt, p.ThisPerformance, renderTranscript(prefix[:len(prefix)-1]), target.Text, role)
}

// renderTranscript formats conversational turns one per line. System
// messages are scaffolding and are skipped.
func renderTranscript(msgs []Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		speaker := "员工"
		if m.Role == RoleUser {
			speaker = "经理"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, m.Text)
	}
	if sb.Len() == 0 {
		return "(尚无对话)"
	}
	return strings.TrimRight(sb.String(), "\n")
}
