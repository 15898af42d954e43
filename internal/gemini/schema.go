package gemini

import (
	"google.golang.org/genai"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

var typeMap = map[llm.Type]genai.Type{
	llm.TypeObject:  genai.TypeObject,
	llm.TypeArray:   genai.TypeArray,
	llm.TypeString:  genai.TypeString,
	llm.TypeNumber:  genai.TypeNumber,
	llm.TypeInteger: genai.TypeInteger,
	llm.TypeBoolean: genai.TypeBoolean,
}

func toGenaiSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:             typeMap[s.Type],
		Description:      s.Description,
		Enum:             s.Enum,
		Required:         s.Required,
		PropertyOrdering: s.Order,
		Items:            toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGenaiSchema(v)
		}
	}
	return out
}
