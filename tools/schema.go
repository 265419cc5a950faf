package tools

// Schema is a JSON Schema fragment.
type Schema = map[string]any

// Object returns an object schema over props.
func Object(props Schema, required ...string) Schema {
	s := Schema{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// String returns a string property.
func String(description string) Schema {
	return Schema{"type": "string", "description": description}
}

// Enum returns a string property restricted to values.
func Enum(description string, values ...string) Schema {
	return Schema{"type": "string", "description": description, "enum": values}
}

// Integer returns an integer property.
func Integer(description string) Schema {
	return Schema{"type": "integer", "description": description}
}

// Boolean returns a boolean property.
func Boolean(description string) Schema {
	return Schema{"type": "boolean", "description": description}
}

// Map returns a free-form object property.
func Map(description string) Schema {
	return Schema{"type": "object", "description": description}
}

// WithThought returns a copy of an object schema with an optional "thought"
// property added. When required is set, "thought" joins the required list.
func WithThought(s Schema, required bool) Schema {
	out := make(Schema, len(s)+1)
	for k, v := range s {
		out[k] = v
	}

	props := Schema{}
	if existing, ok := s["properties"].(Schema); ok {
		for k, v := range existing {
			props[k] = v
		}
	}
	props["thought"] = String("Why the tool is being called and what the caller expects from it.")
	out["properties"] = props

	if required {
		var req []string
		if existing, ok := s["required"].([]string); ok {
			req = append(req, existing...)
		}
		out["required"] = append(req, "thought")
	}
	return out
}
