package llm

import "encoding/json"

type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Schema is a provider-neutral description of structured output.
// Providers translate it into their own schema types.
type Schema struct {
	Type        Type               `json:"type" yaml:"type"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty" yaml:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Order       []string           `json:"-" yaml:"-"`
}

// JSON renders the schema as JSON Schema text for providers that take it in the prompt.
func (s *Schema) JSON() string {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func Object(order []string, props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required, Order: order}
}

func String(desc string, enum ...string) *Schema {
	return &Schema{Type: TypeString, Description: desc, Enum: enum}
}

func Number(desc string) *Schema {
	return &Schema{Type: TypeNumber, Description: desc}
}

func Boolean(desc string) *Schema {
	return &Schema{Type: TypeBoolean, Description: desc}
}

func Array(desc string, items *Schema) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: items}
}
