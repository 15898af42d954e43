package persona

var templates = []Persona{
	{
		Name:               "小陈",
		Gender:             Male,
		JobTitle:           "初级开发工程师",
		YearsOfExperience:  0.8,
		Description:        "负责前端基础组件开发和日常Bug修复。",
		BusinessPainPoints: "代码质量低，Bug 率远超团队平均水平。经常以'需求不清晰'为由推卸责任，甚至反问'为什么不一开始就定好'。",
		LastPerformance:    "B",
		ThisPerformance:    "C",
		PersonaTag:         "沉默型",
		AvatarURL:          "https://randomuser.me/api/portraits/men/32.jpg",
		VoiceName:          "Fenrir",
		BigFive: BigFive{
			Openness:          Low,
			Conscientiousness: Low,
			Extraversion:      Low,
			Agreeableness:     High,
			Neuroticism:       High,
		},
	},
	{
		Name:               "莎莎",
		Gender:             Female,
		JobTitle:           "资深销售",
		YearsOfExperience:  3,
		Description:        "负责华东区大客户维护和新客户拓展。",
		BusinessPainPoints: "连续两个季度未达成 KPI，且近期在客户面前情绪失控，遭到投诉。面对质问容易情绪崩溃。",
		LastPerformance:    "B+",
		ThisPerformance:    "C",
		PersonaTag:         "防御型",
		AvatarURL:          "https://randomuser.me/api/portraits/women/44.jpg",
		VoiceName:          "Kore",
		BigFive: BigFive{
			Openness:          Low,
			Conscientiousness: High,
			Extraversion:      High,
			Agreeableness:     Low,
			Neuroticism:       High,
		},
	},
	{
		Name:               "老王",
		Gender:             Male,
		JobTitle:           "项目经理",
		YearsOfExperience:  5,
		Description:        "负责核心业务系统的项目管理和交付。",
		BusinessPainPoints: "团队管理风格粗暴，近半年导致两名核心骨干离职。拒绝承认管理方式有问题，认为员工太脆弱。",
		LastPerformance:    "A",
		ThisPerformance:    "C",
		PersonaTag:         "争辩型",
		AvatarURL:          "https://randomuser.me/api/portraits/men/85.jpg",
		VoiceName:          "Charon",
		BigFive: BigFive{
			Openness:          High,
			Conscientiousness: High,
			Extraversion:      High,
			Agreeableness:     Low,
			Neuroticism:       Low,
		},
	},
}

// Templates returns a copy of the built-in persona catalog.
func Templates() []Persona {
	out := make([]Persona, len(templates))
	copy(out, templates)
	return out
}
