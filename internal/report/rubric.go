package report

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dimension keys. They match the FeedbackReport fields.
const (
	DimensionSBI       = "sbi"
	DimensionGROW      = "grow"
	DimensionListening = "listening"
)

var dimensionKeys = []string{DimensionSBI, DimensionGROW, DimensionListening}

type DimensionRubric struct {
	Key       string   `yaml:"key"`
	Name      string   `yaml:"name"`
	Focus     string   `yaml:"focus"`
	Forbidden []string `yaml:"forbidden"`
	Exemplary string   `yaml:"exemplary"`
}

type Step struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Rubric is the scoring content handed to the report model. It is data so
// the HR catalog can change without touching the compiler.
type Rubric struct {
	BaseScore       int                `yaml:"baseScore"`
	Dimensions      []DimensionRubric  `yaml:"dimensions"`
	RotationFallacy string             `yaml:"rotationFallacy"`
	FiveSteps       []Step             `yaml:"fiveSteps"`
	Resources       []LearningResource `yaml:"resources"`
	// MaxResources caps the recommended resources.
	MaxResources int `yaml:"maxResources"`
}

// LoadRubric reads a rubric from a YAML file.
func LoadRubric(path string) (*Rubric, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("rubric path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rubric: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate ensures the rubric is well-formed.
func (r Rubric) Validate() error {
	if r.BaseScore < 1 || r.BaseScore > 5 {
		return fmt.Errorf("rubric baseScore must be within 1..5, got %d", r.BaseScore)
	}
	for _, key := range dimensionKeys {
		d := r.dimension(key)
		if d == nil {
			return fmt.Errorf("rubric dimension %s is required", key)
		}
		if len(d.Forbidden) == 0 {
			return fmt.Errorf("rubric dimension %s needs forbidden behaviors", key)
		}
	}
	if strings.TrimSpace(r.RotationFallacy) == "" {
		return fmt.Errorf("rubric rotationFallacy is required")
	}
	if len(r.FiveSteps) != 5 {
		return fmt.Errorf("rubric needs exactly 5 steps, got %d", len(r.FiveSteps))
	}
	if len(r.Resources) == 0 {
		return fmt.Errorf("rubric resources are required")
	}
	for _, res := range r.Resources {
		if res.Title == "" || res.URL == "" {
			return fmt.Errorf("rubric resource needs title and url")
		}
	}
	if r.MaxResources < 0 {
		return fmt.Errorf("rubric maxResources must be non-negative")
	}
	return nil
}

func (r Rubric) dimension(key string) *DimensionRubric {
	for i := range r.Dimensions {
		if r.Dimensions[i].Key == key {
			return &r.Dimensions[i]
		}
	}
	return nil
}

func (r Rubric) resource(title string) (LearningResource, bool) {
	title = strings.TrimSpace(title)
	for _, res := range r.Resources {
		if res.Title == title {
			return res, true
		}
	}
	return LearningResource{}, false
}

func (r Rubric) maxResources() int {
	if r.MaxResources == 0 {
		return 3
	}
	return r.MaxResources
}

// DefaultRubric returns the built-in performance-conversation rubric.
func DefaultRubric() *Rubric {
	return &Rubric{
		BaseScore: 4,
		Dimensions: []DimensionRubric{
			{
				Key:   DimensionSBI,
				Name:  "SBI 事实反馈",
				Focus: "用情境 (Situation)、行为 (Behavior)、影响 (Impact) 描述绩效问题，而不是下结论。",
				Forbidden: []string{
					"给员工贴标签或做人格评价（如“你就是态度有问题”）",
					"只给结论，不举任何具体事例或数据",
					"使用“总是”“从来”等绝对化措辞概括表现",
					"拿其他同事做比较作为打分理由",
				},
				Exemplary: "每条反馈都包含具体情境、可观察的行为和可衡量的影响，且员工能复述出差距所在。",
			},
			{
				Key:   DimensionGROW,
				Name:  "GROW 辅导",
				Focus: "通过目标 (Goal)、现状 (Reality)、选项 (Options)、行动 (Will) 引导员工自己找到改进路径。",
				Forbidden: []string{
					"直接替员工给出方案，不给对方思考空间",
					"没有约定可衡量的改进目标",
					"没有明确下一步行动的时间节点",
					"用威胁代替辅导（如“再这样就只能走人了”）",
				},
				Exemplary: "通过开放式提问让员工主动提出改进方案，并共同约定目标、时间与支持资源。",
			},
			{
				Key:   DimensionListening,
				Name:  "积极倾听与共情",
				Focus: "让员工充分表达，确认并回应其情绪与关切，再推进议题。",
				Forbidden: []string{
					"打断或无视员工的解释",
					"否认员工的情绪（如“这有什么好委屈的”）",
					"讲官话套话，回避员工的具体问题",
					"反复重复同一说辞而不回应对方关切",
				},
				Exemplary: "能复述员工的观点并点名其情绪，在情绪被接住后再回到事实与改进。",
			},
		},
		RotationFallacy: "经理暗示或承认绩效等级是“轮流背C”、“这次轮到你了”或为了凑强制分布名额而分配，而非基于事实与贡献。",
		FiveSteps: []Step{
			{Name: "开场定调", Description: "说明面谈目的与流程，营造安全、坦诚的氛围。"},
			{Name: "事实回顾", Description: "用数据与具体事例回顾本周期的绩效表现。"},
			{Name: "倾听回应", Description: "让员工充分表达自己的看法，并回应其关切。"},
			{Name: "共识改进", Description: "共同制定可衡量的改进目标与行动计划。"},
			{Name: "支持跟进", Description: "明确提供的资源支持以及后续跟进的时间点。"},
		},
		Resources: []LearningResource{
			{
				Title:       "SBI 反馈模型",
				URL:         "https://www.ccl.org/articles/leading-effectively-articles/closing-the-gap-between-intent-vs-impact-sbii/",
				Description: "Center for Creative Leadership 提出的情境-行为-影响反馈法，帮助反馈对事不对人。",
			},
			{
				Title:       "GROW 教练模型",
				URL:         "https://en.wikipedia.org/wiki/GROW_model",
				Description: "目标-现状-选项-行动四步辅导框架，适合引导员工自主制定改进计划。",
			},
			{
				Title:       "积极倾听",
				URL:         "https://en.wikipedia.org/wiki/Active_listening",
				Description: "通过复述、提问与情绪确认让对方感到被理解。",
			},
			{
				Title:       "非暴力沟通",
				URL:         "https://en.wikipedia.org/wiki/Nonviolent_Communication",
				Description: "观察-感受-需要-请求的表达方式，降低对抗情绪。",
			},
			{
				Title:       "绩效评估",
				URL:         "https://en.wikipedia.org/wiki/Performance_appraisal",
				Description: "绩效评估的目的、常见偏差与面谈实践。",
			},
			{
				Title:       "强制分布与活力曲线",
				URL:         "https://en.wikipedia.org/wiki/Vitality_curve",
				Description: "理解强制分布制度的原理与争议，避免把评级解释成“轮流”。",
			},
		},
		MaxResources: 3,
	}
}
