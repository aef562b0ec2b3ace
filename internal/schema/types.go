// Package schema describes the declared result shape of a task and converts
// arbitrary candidate values into validated, typed results.
//
// A result type is a tagged union (see Kind). Validation and input-schema
// generation dispatch on the tag; no runtime type introspection of the
// descriptor itself is needed.
package schema

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Type.
type Kind int

const (
	KindNone    Kind = iota // No result expected
	KindString              // Text
	KindInteger             // Whole number
	KindNumber              // Floating point number
	KindBoolean             // true / false
	KindAny                 // Any JSON-compatible value
	KindObject              // Keyed record with declared fields
	KindList                // Homogeneous list
	KindEnum                // Closed set of literal values
	KindFrame               // Tabular frame (rows x columns)
	KindSeries              // Tabular series (one labelled column)
	KindCustom              // Free-form constructor-backed type
)

// Field is one declared member of an object type.
type Field struct {
	Name        string
	Type        *Type
	Optional    bool
	Description string
}

// Constructor builds a custom result from a keyed mapping (keyword expansion)
// or from a single positional value.
type Constructor struct {
	FromMap   func(args map[string]any) (any, error)
	FromValue func(arg any) (any, error)
}

// Type is a result-type descriptor.
type Type struct {
	kind   Kind
	name   string
	fields []Field
	items  *Type
	values []any
	input  map[string]any
	ctor   Constructor
}

var (
	noneType    = &Type{kind: KindNone}
	stringType  = &Type{kind: KindString}
	integerType = &Type{kind: KindInteger}
	numberType  = &Type{kind: KindNumber}
	booleanType = &Type{kind: KindBoolean}
	anyType     = &Type{kind: KindAny}
	frameType   = &Type{kind: KindFrame}
	seriesType  = &Type{kind: KindSeries}
)

func None() *Type       { return noneType }
func String() *Type     { return stringType }
func Int() *Type        { return integerType }
func Number() *Type     { return numberType }
func Bool() *Type       { return booleanType }
func Any() *Type        { return anyType }
func FrameType() *Type  { return frameType }
func SeriesType() *Type { return seriesType }

// Object returns a keyed record type with the given fields.
func Object(fields ...Field) *Type {
	return &Type{kind: KindObject, fields: append([]Field(nil), fields...)}
}

// List returns a list type whose elements conform to items.
func List(items *Type) *Type {
	if items == nil {
		items = anyType
	}
	return &Type{kind: KindList, items: items}
}

// Enum returns a closed set of allowed literal values.
// An empty set has no derivable input schema.
func Enum(values ...any) *Type {
	normalized := make([]any, 0, len(values))
	for _, v := range values {
		normalized = append(normalized, normalizeLiteral(v))
	}
	return &Type{kind: KindEnum, values: normalized}
}

// Custom returns a free-form type. Structural validation does not apply to it:
// candidates are handed to the constructor instead. input is the JSON schema
// advertised to tool callers; a nil input makes the type unsupported as a
// task result type.
func Custom(name string, input map[string]any, ctor Constructor) *Type {
	return &Type{kind: KindCustom, name: name, input: input, ctor: ctor}
}

// Kind returns the variant tag. A nil Type is KindNone.
func (t *Type) Kind() Kind {
	if t == nil {
		return KindNone
	}
	return t.kind
}

// IsNone reports whether no result is expected.
func (t *Type) IsNone() bool { return t.Kind() == KindNone }

// Fields returns the declared fields of an object type.
func (t *Type) Fields() []Field {
	if t == nil {
		return nil
	}
	return append([]Field(nil), t.fields...)
}

// Items returns the element type of a list type.
func (t *Type) Items() *Type {
	if t == nil {
		return nil
	}
	return t.items
}

// Values returns the allowed literals of an enum type.
func (t *Type) Values() []any {
	if t == nil {
		return nil
	}
	return append([]any(nil), t.values...)
}

// String returns the textual representation used when serializing tasks.
func (t *Type) String() string {
	switch t.Kind() {
	case KindNone:
		return "none"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindAny:
		return "any"
	case KindObject:
		parts := make([]string, 0, len(t.fields))
		for _, f := range t.fields {
			name := f.Name
			if f.Optional {
				name += "?"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", name, f.Type.String()))
		}
		return "object{" + strings.Join(parts, ", ") + "}"
	case KindList:
		return "list[" + t.items.String() + "]"
	case KindEnum:
		parts := make([]string, 0, len(t.values))
		for _, v := range t.values {
			if s, ok := v.(string); ok {
				parts = append(parts, fmt.Sprintf("%q", s))
			} else {
				parts = append(parts, fmt.Sprintf("%v", v))
			}
		}
		return "enum[" + strings.Join(parts, ", ") + "]"
	case KindFrame:
		return "frame"
	case KindSeries:
		return "series"
	case KindCustom:
		return t.name
	}
	return "unknown"
}
