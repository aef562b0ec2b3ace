package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestValidatePrimitives(t *testing.T) {
	tests := []struct {
		name    string
		typ     *Type
		value   any
		want    any
		wantErr bool
	}{
		{name: "int from int", typ: Int(), value: 5, want: 5},
		{name: "int from int64", typ: Int(), value: int64(7), want: 7},
		{name: "int from integral float", typ: Int(), value: 3.0, want: 3},
		{name: "int from numeric string", typ: Int(), value: " 42 ", want: 42},
		{name: "int from json number", typ: Int(), value: json.Number("12"), want: 12},
		{name: "int rejects fraction", typ: Int(), value: 2.5, wantErr: true},
		{name: "int rejects bool", typ: Int(), value: true, wantErr: true},
		{name: "int rejects word", typ: Int(), value: "five", wantErr: true},
		{name: "int rejects null", typ: Int(), value: nil, wantErr: true},
		{name: "int rejects huge float", typ: Int(), value: 1e30, wantErr: true},
		{name: "int rejects 2^63", typ: Int(), value: float64(1 << 63), wantErr: true},
		{name: "int rejects huge string", typ: Int(), value: "1e30", wantErr: true},
		{name: "int rejects huge json number", typ: Int(), value: json.Number("1e30"), wantErr: true},
		{name: "int from exponent string", typ: Int(), value: "1e3", want: 1000},
		{name: "number from int", typ: Number(), value: 2, want: 2.0},
		{name: "number from string", typ: Number(), value: "1.5", want: 1.5},
		{name: "number rejects bool", typ: Number(), value: false, wantErr: true},
		{name: "string from string", typ: String(), value: "hi", want: "hi"},
		{name: "string rejects int", typ: String(), value: 1, wantErr: true},
		{name: "bool from bool", typ: Bool(), value: true, want: true},
		{name: "bool from yes", typ: Bool(), value: "yes", want: true},
		{name: "bool from 0", typ: Bool(), value: 0, want: false},
		{name: "bool rejects 2", typ: Bool(), value: 2, wantErr: true},
		{name: "any passes through", typ: Any(), value: []int{1}, want: []int{1}},
		{name: "none accepts nil", typ: None(), value: nil, want: nil},
		{name: "none rejects value", typ: None(), value: "x", wantErr: true},
		{name: "nil type behaves as none", typ: nil, value: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.typ, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestValidateEnum(t *testing.T) {
	typ := Enum("a", "b")

	if _, err := Validate(typ, "c"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for \"c\", got %v", err)
	}
	got, err := Validate(typ, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a" {
		t.Errorf("expected \"a\", got %v", got)
	}

	numeric := Enum(1, 2.5)
	if got, err := Validate(numeric, int64(1)); err != nil || got != 1 {
		t.Errorf("expected 1, got %v (err %v)", got, err)
	}
	if got, err := Validate(numeric, json.Number("2.5")); err != nil || got != 2.5 {
		t.Errorf("expected 2.5, got %v (err %v)", got, err)
	}
	if _, err := Validate(numeric, "1"); err == nil {
		t.Error("expected string \"1\" to be rejected by a numeric enumeration")
	}
}

func TestValidateObject(t *testing.T) {
	typ := Object(
		Field{Name: "name", Type: String()},
		Field{Name: "age", Type: Int()},
		Field{Name: "tags", Type: List(String()), Optional: true},
	)

	got, err := Validate(typ, map[string]any{"name": "ada", "age": "36", "extra": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"name": "ada", "age": 36}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}

	_, err = Validate(typ, map[string]any{"name": "ada"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "result.age" {
		t.Errorf("expected path result.age, got %q", verr.Path)
	}

	_, err = Validate(typ, map[string]any{"name": "ada", "age": 1, "tags": []any{"x", 2}})
	if !errors.As(err, &verr) || verr.Path != "result.tags[1]" {
		t.Errorf("expected error at result.tags[1], got %v", err)
	}
}

func TestValidateObjectFromStruct(t *testing.T) {
	type person struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	typ := Object(Field{Name: "name", Type: String()}, Field{Name: "age", Type: Int()})

	got, err := Validate(typ, person{Name: "grace", Age: 85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"name": "grace", "age": 85}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestValidateListOfInts(t *testing.T) {
	got, err := Validate(List(Int()), []int{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []any{1, 2, 3}) {
		t.Errorf("got %#v", got)
	}
	if _, err := Validate(List(Int()), "123"); err == nil {
		t.Error("expected a string to be rejected as a list")
	}
}

func TestValidateRawJSON(t *testing.T) {
	got, err := Validate(Object(Field{Name: "n", Type: Int()}), json.RawMessage(`{"n": 4}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]any{"n": 4}) {
		t.Errorf("got %#v", got)
	}
	if _, err := Validate(Int(), json.RawMessage(`{`)); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for malformed JSON, got %v", err)
	}
	if got, err := Validate(Int(), json.RawMessage(`1e30`)); !errors.Is(err, ErrValidation) {
		t.Errorf("expected out of range error, got %v, %v", got, err)
	}
}

type point struct{ X, Y int }

func TestValidateCustom(t *testing.T) {
	typ := Custom("point", map[string]any{"type": "object"}, Constructor{
		FromMap: func(args map[string]any) (any, error) {
			x, _ := args["x"].(int)
			y, _ := args["y"].(int)
			return point{X: x, Y: y}, nil
		},
		FromValue: func(arg any) (any, error) {
			n, ok := arg.(int)
			if !ok {
				return nil, fmt.Errorf("expected int, got %T", arg)
			}
			return point{X: n, Y: n}, nil
		},
	})

	got, err := Validate(typ, map[string]any{"x": 1, "y": 2})
	if err != nil || got != (point{1, 2}) {
		t.Errorf("keyword construction: got %v, err %v", got, err)
	}
	got, err = Validate(typ, 3)
	if err != nil || got != (point{3, 3}) {
		t.Errorf("positional construction: got %v, err %v", got, err)
	}
	if _, err := Validate(typ, "nope"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestValidateFrame(t *testing.T) {
	value := map[string]any{
		"data":    []any{[]any{1, "a"}, []any{2, "b"}},
		"columns": []any{"n", "s"},
	}
	got, err := Validate(FrameType(), value)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame, ok := got.(Frame)
	if !ok {
		t.Fatalf("expected Frame, got %T", got)
	}
	if frame.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", frame.Len())
	}
	col, ok := frame.Column("s")
	if !ok || !reflect.DeepEqual(col, []any{"a", "b"}) {
		t.Errorf("column s = %v", col)
	}
	if !reflect.DeepEqual(frame.Index, []any{0, 1}) {
		t.Errorf("expected positional index, got %v", frame.Index)
	}

	bad := map[string]any{"data": []any{[]any{1}}, "columns": []any{"a", "b"}}
	if _, err := Validate(FrameType(), bad); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ragged row to fail, got %v", err)
	}

	passthrough, err := Validate(FrameType(), frame)
	if err != nil || !reflect.DeepEqual(passthrough, frame) {
		t.Errorf("expected frame to pass through, got %v (err %v)", passthrough, err)
	}
}

func TestValidateSeries(t *testing.T) {
	got, err := Validate(SeriesType(), map[string]any{
		"data":  []any{1.5, 2.5},
		"index": []any{"x", "y"},
		"name":  "scores",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := got.(Series)
	if s.Name != "scores" {
		t.Errorf("expected name scores, got %q", s.Name)
	}
	if v, ok := s.Get("y"); !ok || v != 2.5 {
		t.Errorf("Get(y) = %v, %v", v, ok)
	}

	_, err = Validate(SeriesType(), map[string]any{"data": []any{1}, "index": []any{"a", "b"}})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected index length mismatch to fail, got %v", err)
	}
}
