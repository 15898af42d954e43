package persona

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncomplete is returned when a narrative field required by the prompt is empty.
var ErrIncomplete = errors.New("persona incomplete")

type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

type Level string

const (
	High Level = "High"
	Low  Level = "Low"
)

// Trait names a Big-Five dimension.
type Trait string

const (
	Openness          Trait = "openness"
	Conscientiousness Trait = "conscientiousness"
	Extraversion      Trait = "extraversion"
	Agreeableness     Trait = "agreeableness"
	Neuroticism       Trait = "neuroticism"
)

// Traits lists the Big-Five dimensions in prompt order.
var Traits = []Trait{Openness, Conscientiousness, Extraversion, Agreeableness, Neuroticism}

type BigFive struct {
	Openness          Level `json:"openness"`
	Conscientiousness Level `json:"conscientiousness"`
	Extraversion      Level `json:"extraversion"`
	Agreeableness     Level `json:"agreeableness"`
	Neuroticism       Level `json:"neuroticism"`
}

// Get returns the level for a trait. Anything other than High reads as Low.
func (b BigFive) Get(t Trait) Level {
	var l Level
	switch t {
	case Openness:
		l = b.Openness
	case Conscientiousness:
		l = b.Conscientiousness
	case Extraversion:
		l = b.Extraversion
	case Agreeableness:
		l = b.Agreeableness
	case Neuroticism:
		l = b.Neuroticism
	}
	if l == High {
		return High
	}
	return Low
}

// Set returns a copy with one trait changed.
func (b BigFive) Set(t Trait, l Level) BigFive {
	switch t {
	case Openness:
		b.Openness = l
	case Conscientiousness:
		b.Conscientiousness = l
	case Extraversion:
		b.Extraversion = l
	case Agreeableness:
		b.Agreeableness = l
	case Neuroticism:
		b.Neuroticism = l
	}
	return b
}

// Persona describes the simulated employee.
type Persona struct {
	ID                 string  `json:"id,omitempty"`
	IsCustom           bool    `json:"isCustom,omitempty"`
	Name               string  `json:"name"`
	Gender             Gender  `json:"gender"`
	AvatarURL          string  `json:"avatarUrl,omitempty"`
	VoiceName          string  `json:"voiceName,omitempty"`
	JobTitle           string  `json:"jobTitle"`
	YearsOfExperience  float64 `json:"yearsOfExperience"`
	Description        string  `json:"description"`
	BusinessPainPoints string  `json:"businessPainPoints"`
	LastPerformance    string  `json:"lastPerformance"`
	ThisPerformance    string  `json:"thisPerformance"`
	BigFive            BigFive `json:"bigFive"`
	PersonaTag         string  `json:"personaTag,omitempty"`
}

// Validate checks the fields that are interpolated verbatim into the prompt.
func (p Persona) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", p.Name},
		{"jobTitle", p.JobTitle},
		{"description", p.Description},
		{"businessPainPoints", p.BusinessPainPoints},
		{"lastPerformance", p.LastPerformance},
		{"thisPerformance", p.ThisPerformance},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	if p.YearsOfExperience < 0 {
		return fmt.Errorf("%w: yearsOfExperience must be non-negative", ErrIncomplete)
	}
	return nil
}

// Voice returns the speech voice for the persona, defaulting by gender.
func (p Persona) Voice() string {
	if p.VoiceName != "" {
		return p.VoiceName
	}
	return DefaultVoice(p.Gender)
}

func DefaultVoice(g Gender) string {
	if g == Male {
		return "Fenrir"
	}
	return "Kore"
}
