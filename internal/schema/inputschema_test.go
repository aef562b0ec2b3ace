package schema

import (
	"errors"
	"reflect"
	"testing"
)

// TestInputSchema tests schema generation for each supported kind.
func TestInputSchema(t *testing.T) {
	tests := []struct {
		name string
		typ  *Type
		want map[string]any
	}{
		{name: "none", typ: None(), want: map[string]any{"type": "null"}},
		{name: "string", typ: String(), want: map[string]any{"type": "string"}},
		{name: "integer", typ: Int(), want: map[string]any{"type": "integer"}},
		{name: "any", typ: Any(), want: map[string]any{}},
		{
			name: "list of numbers",
			typ:  List(Number()),
			want: map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
		},
		{
			name: "enumeration",
			typ:  Enum("a", "b"),
			want: map[string]any{"enum": []any{"a", "b"}},
		},
		{
			name: "object with optional field",
			typ: Object(
				Field{Name: "title", Type: String(), Description: "Short title"},
				Field{Name: "score", Type: Int(), Optional: true},
			),
			want: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string", "description": "Short title"},
					"score": map[string]any{"type": "integer"},
				},
				"required": []string{"title"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InputSchema(tt.typ)
			if err != nil {
				t.Fatalf("InputSchema() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("InputSchema() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestInputSchemaTabular verifies frames and series advertise their intermediate form.
func TestInputSchemaTabular(t *testing.T) {
	for _, typ := range []*Type{FrameType(), SeriesType()} {
		got, err := InputSchema(typ)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", typ, err)
		}
		if got["type"] != "object" {
			t.Errorf("%s: expected object schema, got %v", typ, got["type"])
		}
		if !reflect.DeepEqual(got["required"], []string{"data"}) {
			t.Errorf("%s: expected data to be required, got %v", typ, got["required"])
		}
	}
}

// TestInputSchemaUnsupported verifies types without a derivable schema are rejected.
func TestInputSchemaUnsupported(t *testing.T) {
	tests := []struct {
		name string
		typ  *Type
	}{
		{name: "custom without schema", typ: Custom("widget", nil, Constructor{})},
		{name: "empty enumeration", typ: Enum()},
		{name: "list of unsupported", typ: List(Custom("widget", nil, Constructor{}))},
		{name: "object with unsupported field", typ: Object(Field{Name: "w", Type: Custom("widget", nil, Constructor{})})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputSchema(tt.typ)
			if !errors.Is(err, ErrUnsupportedType) {
				t.Errorf("expected ErrUnsupportedType, got %v", err)
			}
		})
	}
}

func TestInputSchemaCustomIsCopied(t *testing.T) {
	input := map[string]any{"type": "object"}
	typ := Custom("widget", input, Constructor{})

	got, err := InputSchema(typ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got["type"] = "mutated"
	if input["type"] != "object" {
		t.Error("InputSchema returned the declared schema map instead of a copy")
	}
}
