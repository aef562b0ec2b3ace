package schema

// InputSchema returns the JSON schema a tool caller must supply for a value
// of type t. Structural kinds are generated directly; the tabular kinds map
// to their row/column intermediate schema. Anything else is unsupported as a
// result type.
func InputSchema(t *Type) (map[string]any, error) {
	switch t.Kind() {
	case KindNone:
		return map[string]any{"type": "null"}, nil
	case KindString:
		return map[string]any{"type": "string"}, nil
	case KindInteger:
		return map[string]any{"type": "integer"}, nil
	case KindNumber:
		return map[string]any{"type": "number"}, nil
	case KindBoolean:
		return map[string]any{"type": "boolean"}, nil
	case KindAny:
		return map[string]any{}, nil
	case KindObject:
		properties := make(map[string]any, len(t.fields))
		required := []string{}
		for _, f := range t.fields {
			if f.Name == "" {
				return nil, unsupportedf("object field without a name")
			}
			fs, err := InputSchema(f.Type)
			if err != nil {
				return nil, err
			}
			if f.Description != "" {
				fs["description"] = f.Description
			}
			properties[f.Name] = fs
			if !f.Optional {
				required = append(required, f.Name)
			}
		}
		return map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		}, nil
	case KindList:
		items, err := InputSchema(t.items)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case KindEnum:
		if len(t.values) == 0 {
			return nil, unsupportedf("enumeration without values")
		}
		return map[string]any{"enum": append([]any(nil), t.values...)}, nil
	case KindFrame:
		return frameInput(), nil
	case KindSeries:
		return seriesInput(), nil
	case KindCustom:
		if t.input == nil {
			return nil, unsupportedf("could not load or infer schema for %s", t.name)
		}
		out := make(map[string]any, len(t.input))
		for k, v := range t.input {
			out[k] = v
		}
		return out, nil
	}
	return nil, unsupportedf("unknown kind %d", t.Kind())
}
