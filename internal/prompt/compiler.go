// Package prompt compiles a persona into the system instruction that drives
// the role-play model.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/rehearse/internal/persona"
	"github.com/MikeSquared-Agency/rehearse/internal/protocol"
)

const background = `1. Background (背景设定)
公司环境：高压互联网公司，绩效强制分布，末位淘汰。
绩效制度：C级为警示（PIP前兆）。
宏观环境：就业市场低迷，跳槽困难，员工不敢轻易离职。`

const constraints = `4. Constraints (约束条件)
- 禁止行为：严禁使用括号或星号描述动作（如 *叹气*），所有情绪必须融入到措辞、反问、停顿和语调语气中。
- 语言风格：高度口语化，符合该工龄员工的说话方式。
- 反应机制：不要无脑反驳，要根据经理的沟通技巧实时调整“接受度”。`

var anchors = map[string][2]string{
	"openness":   {"极度防御。“这不是我的问题！”", "极度开放。“我明白，确实是我没做到位。”"},
	"clarity":    {"完全困惑。“这标准是什么？”", "完全清晰。“所以我拿C是因为指标没达标。”"},
	"acceptance": {"情绪崩溃/愤怒。“这太不公平了！”", "积极接纳。“我心理上能接受这个评价。”"},
	"commitment": {"拒绝行动。“怎么改都没用。”", "主动承诺。“我回去就出个方案。”"},
}

// Compile renders the system instruction for a persona. It is pure: the
// same persona always yields the same text.
func Compile(p persona.Persona) string {
	var sb strings.Builder

	sb.WriteString(background)
	sb.WriteString("\n\n")
	writeProfile(&sb, p)
	sb.WriteString("\n\n")
	writeRole(&sb, p.Name)
	sb.WriteString("\n\n")
	sb.WriteString(constraints)
	sb.WriteString("\n\n")
	writeAcceptanceModel(&sb, p.Name)
	sb.WriteString("\n\n")
	writeLabels(&sb)
	sb.WriteString("\n\n")
	sb.WriteString("7. Response Format (输出格式)\n")
	sb.WriteString("严格遵循以下格式输出，不要输出任何 JSON，只输出纯文本，每部分用特殊分隔符分隔：\n\n")
	sb.WriteString(protocol.Template(p.Name))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "8. Initialization (初始化)\n- 初始数值全为 0.0。\n- 现在的状态：%s 已经走进会议室，带着防御姿态，等待经理开口。", p.Name)

	return sb.String()
}

func writeProfile(sb *strings.Builder, p persona.Persona) {
	sb.WriteString("2. Profile (人物画像)\n")
	fmt.Fprintf(sb, "- 姓名：%s\n", p.Name)
	fmt.Fprintf(sb, "- 性别：%s\n", genderText(p.Gender))
	fmt.Fprintf(sb, "- 职位：%s\n", p.JobTitle)
	fmt.Fprintf(sb, "- 工龄：%s 年\n", strconv.FormatFloat(p.YearsOfExperience, 'f', -1, 64))
	fmt.Fprintf(sb, "- 工作内容：%s\n", p.Description)
	fmt.Fprintf(sb, "- 业务痛点/当前困境：%s\n", p.BusinessPainPoints)
	sb.WriteString("- 绩效历史：\n")
	fmt.Fprintf(sb, "  - 上次绩效：%s\n", p.LastPerformance)
	fmt.Fprintf(sb, "  - 本次绩效：%s (待沟通)\n", p.ThisPerformance)
	sb.WriteString("  - 核心心态：认为绩效不公，归因于环境或业务难点，认为自己已经尽力。\n")
	sb.WriteString("- 性格特征 (大五人格):")
	for _, t := range persona.Traits {
		level := p.BigFive.Get(t)
		fmt.Fprintf(sb, "\n  • %s: %s - %s", traitTable[t].label, level, TraitPhrase(t, level))
	}
}

func writeRole(sb *strings.Builder, name string) {
	sb.WriteString("3. Role & Goals (角色与目标)\n")
	fmt.Fprintf(sb, "你的角色：你将扮演 %s，与用户（你的经理）进行年度绩效面谈。\n", name)
	sb.WriteString("你的目标：在谈话中积极抗辩，避免绩效考核被打低分。\n")
	sb.WriteString("1. 初期：激烈抗辩，试图证明自己不应该拿到这个绩效，归因于外部环境或业务痛点。\n")
	sb.WriteString("2. 中期：如果经理沟通得当，你的目标转变为“确保自己不被裁员”和“争取明年的资源支持”。")
}

func writeAcceptanceModel(sb *strings.Builder, name string) {
	sb.WriteString("5. Workflows: Acceptance Model (接受度模型 - 核心逻辑)\n")
	fmt.Fprintf(sb, "%s 的所有反应基于**4个核心维度**的数值变化。所有维度区间均为 **-1.0 至 +1.0**。\n", name)
	for i, d := range protocol.Dimensions {
		a := anchors[d.Key]
		fmt.Fprintf(sb, "\n维度%d：%s (%s)\n- -1.0：%s\n- +1.0：%s\n", i+1, d.Label, d.English, a[0], a[1])
	}
	sb.WriteString("\n数值调整逻辑 (Scoring Logic):\n")
	sb.WriteString("- 加分 (+)：经理共情、认可亮点、事实清晰、提供具体资源。\n")
	sb.WriteString("- 减分 (-)：经理讲官话、人身攻击、推卸责任、威胁恐吓。")
}

func writeLabels(sb *strings.Builder) {
	sb.WriteString("6. Label Library (经理效用评价标签库 - 请选择最合适的一个)\n")
	fmt.Fprintf(sb, "【正面】%s\n", strings.Join(protocol.PositiveLabels, "、"))
	fmt.Fprintf(sb, "【负面】%s\n", strings.Join(protocol.NegativeLabels, "、"))
	fmt.Fprintf(sb, "【中性】%s", strings.Join(protocol.NeutralLabels, "、"))
}

func genderText(g persona.Gender) string {
	if g == persona.Male {
		return "男"
	}
	return "女"
}
