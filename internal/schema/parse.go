package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FromValues converts an explicit list of literals into an enumeration.
func FromValues(values any) (*Type, error) {
	items, ok := toSlice(values)
	if !ok {
		return nil, unsupportedf("expected a list of literal values, got %T", values)
	}
	if len(items) == 0 {
		return nil, unsupportedf("enumeration without values")
	}
	for _, v := range items {
		switch normalizeLiteral(v).(type) {
		case string, bool, int, float64:
		default:
			return nil, unsupportedf("enumeration value %v (%T) is not a literal", v, v)
		}
	}
	return Enum(items...), nil
}

// Parse builds a Type from a decoded YAML/JSON descriptor:
//
//	"string" | "int" | "number" | "bool" | "any" | "frame" | "series" | "none"
//	"list[int]"
//	[a, b, c]                                    (enumeration)
//	{type: object, fields: {name: string, age: {type: int, optional: true}}}
//	{type: list, items: int}
//	{type: enum, values: [a, b]}
func Parse(descriptor any) (*Type, error) {
	switch d := descriptor.(type) {
	case nil:
		return None(), nil
	case *Type:
		return d, nil
	case string:
		return parseName(d)
	}

	if m, ok := asMapping(descriptor); ok {
		return parseMapping(m)
	}
	if _, ok := toSlice(descriptor); ok {
		return FromValues(descriptor)
	}
	return nil, unsupportedf("cannot parse descriptor of type %T", descriptor)
}

func parseName(name string) (*Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(n, "list[") && strings.HasSuffix(n, "]") {
		items, err := parseName(n[len("list[") : len(n)-1])
		if err != nil {
			return nil, err
		}
		return List(items), nil
	}

	switch n {
	case "none", "null", "":
		return None(), nil
	case "string", "str", "text":
		return String(), nil
	case "int", "integer":
		return Int(), nil
	case "float", "number":
		return Number(), nil
	case "bool", "boolean":
		return Bool(), nil
	case "any":
		return Any(), nil
	case "list", "array":
		return List(Any()), nil
	case "object", "dict":
		return Object(), nil
	case "frame", "dataframe":
		return FrameType(), nil
	case "series":
		return SeriesType(), nil
	}
	return nil, unsupportedf("unknown type name %q", name)
}

func parseMapping(m map[string]any) (*Type, error) {
	kind, _ := m["type"].(string)
	switch strings.ToLower(kind) {
	case "object", "dict":
		rawFields, _ := asMapping(m["fields"])
		names := make([]string, 0, len(rawFields))
		for name := range rawFields {
			names = append(names, name)
		}
		sort.Strings(names)

		fields := make([]Field, 0, len(names))
		for _, name := range names {
			f, err := parseField(name, rawFields[name])
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
		return Object(fields...), nil
	case "list", "array":
		items, err := Parse(m["items"])
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		if items.IsNone() {
			items = Any()
		}
		return List(items), nil
	case "enum", "literal":
		return FromValues(m["values"])
	case "":
		return nil, unsupportedf("descriptor mapping without a type")
	}
	return parseName(kind)
}

func parseField(name string, raw any) (Field, error) {
	f := Field{Name: name}
	if m, ok := asMapping(raw); ok {
		if opt, ok := m["optional"].(bool); ok {
			f.Optional = opt
		}
		if desc, ok := m["description"].(string); ok {
			f.Description = desc
		}
		if _, nested := m["type"]; !nested {
			return f, unsupportedf("field %q has no type", name)
		}
	}
	t, err := Parse(raw)
	if err != nil {
		return f, fmt.Errorf("field %q: %w", name, err)
	}
	if t.IsNone() {
		return f, unsupportedf("field %q cannot have type none", name)
	}
	f.Type = t
	return f, nil
}
