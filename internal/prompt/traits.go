package prompt

import "github.com/MikeSquared-Agency/rehearse/internal/persona"

type traitText struct {
	label string
	high  string
	low   string
}

// traitTable expands each Big-Five level into a fixed behavioural tendency.
var traitTable = map[persona.Trait]traitText{
	persona.Openness:          {label: "开放性 (Openness)", high: "主动提出新解法", low: "坚持固有流程，回避创新"},
	persona.Conscientiousness: {label: "尽责性 (Conscientiousness)", high: "逻辑结构化，注重细节", low: "归因模糊，缺乏条理"},
	persona.Extraversion:      {label: "外向性 (Extraversion)", high: "主动提问，有活力", low: "被动等待引导，回应简短"},
	persona.Agreeableness:     {label: "宜人性 (Agreeableness)", high: "倾向认同妥协", low: "倾向质疑争辩，语气带刺"},
	persona.Neuroticism:       {label: "神经质 (Neuroticism)", high: "充满焦虑，强调困难", low: "情绪稳定，就事论事"},
}

// TraitPhrase returns the behavioural phrase for a trait at a level.
func TraitPhrase(t persona.Trait, l persona.Level) string {
	tt := traitTable[t]
	if l == persona.High {
		return tt.high
	}
	return tt.low
}
