package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Validate converts value into a result conforming to t, coercing where a
// lossless conversion exists. A json.RawMessage candidate is decoded first.
func Validate(t *Type, value any) (any, error) {
	if raw, ok := value.(json.RawMessage); ok {
		decoded, err := decodeJSON(raw)
		if err != nil {
			return nil, invalidf("result", "malformed JSON: %v", err)
		}
		value = decoded
	}
	return validate(t, value, "result")
}

func validate(t *Type, value any, path string) (any, error) {
	switch t.Kind() {
	case KindNone:
		if value != nil {
			return nil, invalidf(path, "no result expected, got %T", value)
		}
		return nil, nil
	case KindAny:
		return value, nil
	case KindString:
		return validateString(value, path)
	case KindInteger:
		return validateInteger(value, path)
	case KindNumber:
		return validateNumber(value, path)
	case KindBoolean:
		return validateBoolean(value, path)
	case KindObject:
		return validateObject(t, value, path)
	case KindList:
		return validateList(t, value, path)
	case KindEnum:
		return validateEnum(t, value, path)
	case KindFrame:
		return validateFrame(value, path)
	case KindSeries:
		return validateSeries(value, path)
	case KindCustom:
		return construct(t, value, path)
	}
	return nil, invalidf(path, "unknown result type kind %d", t.Kind())
}

func validateString(value any, path string) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, invalidf(path, "expected a string, got %s", describe(value))
	}
	return s, nil
}

func validateInteger(value any, path string) (any, error) {
	switch v := value.(type) {
	case bool, nil:
		return nil, invalidf(path, "expected an integer, got %s", describe(value))
	case json.Number:
		return parseInteger(string(v), path)
	case string:
		return parseInteger(v, path)
	}
	if f, ok := asFloat(value); ok {
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, invalidf(path, "expected an integer, got fractional number %v", f)
		}
		if i, ok := asInt(value); ok {
			return i, nil
		}
		return nil, invalidf(path, "integer %v out of range", f)
	}
	return nil, invalidf(path, "expected an integer, got %s", describe(value))
}

func parseInteger(s, path string) (any, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, invalidf(path, "expected an integer, got %q", s)
	}
	if !fitsInt(f) {
		return nil, invalidf(path, "integer %s out of range", s)
	}
	return int(f), nil
}

// fitsInt reports whether the integral float f converts to int exactly.
func fitsInt(f float64) bool {
	return f >= math.MinInt64 && f < 1<<63
}

func validateNumber(value any, path string) (any, error) {
	switch v := value.(type) {
	case bool, nil:
		return nil, invalidf(path, "expected a number, got %s", describe(value))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, invalidf(path, "expected a number, got %q", string(v))
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, invalidf(path, "expected a number, got %q", v)
		}
		return f, nil
	}
	if f, ok := asFloat(value); ok {
		return f, nil
	}
	return nil, invalidf(path, "expected a number, got %s", describe(value))
}

func validateBoolean(value any, path string) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "yes", "y", "on", "1":
			return true, nil
		case "false", "f", "no", "n", "off", "0":
			return false, nil
		}
		return nil, invalidf(path, "expected a boolean, got %q", v)
	case json.Number:
		return validateBoolean(string(v), path)
	}
	if i, ok := asInt(value); ok && (i == 0 || i == 1) {
		return i == 1, nil
	}
	return nil, invalidf(path, "expected a boolean, got %s", describe(value))
}

func validateObject(t *Type, value any, path string) (any, error) {
	m, ok := toMap(value)
	if !ok {
		return nil, invalidf(path, "expected an object, got %s", describe(value))
	}

	out := make(map[string]any, len(t.fields))
	for _, f := range t.fields {
		fieldPath := path + "." + f.Name
		v, present := m[f.Name]
		if !present || v == nil {
			if f.Optional {
				continue
			}
			return nil, invalidf(fieldPath, "missing required field")
		}
		validated, err := validate(f.Type, v, fieldPath)
		if err != nil {
			return nil, err
		}
		out[f.Name] = validated
	}
	return out, nil
}

func validateList(t *Type, value any, path string) (any, error) {
	items, ok := toSlice(value)
	if !ok {
		return nil, invalidf(path, "expected a list, got %s", describe(value))
	}

	out := make([]any, 0, len(items))
	for i, item := range items {
		validated, err := validate(t.items, item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, validated)
	}
	return out, nil
}

func validateEnum(t *Type, value any, path string) (any, error) {
	candidate := normalizeLiteral(value)
	for _, allowed := range t.values {
		if literalEqual(candidate, allowed) {
			return allowed, nil
		}
	}
	return nil, invalidf(path, "%s is not one of %s", describe(value), t.String())
}

// construct builds a custom result: keyword expansion for mappings,
// positional construction otherwise.
func construct(t *Type, value any, path string) (any, error) {
	var (
		result any
		err    error
	)
	if m, isMap := asMapping(value); isMap && t.ctor.FromMap != nil {
		result, err = t.ctor.FromMap(m)
	} else if t.ctor.FromValue != nil {
		result, err = t.ctor.FromValue(value)
	} else {
		return nil, invalidf(path, "%s cannot be constructed from %s", t.name, describe(value))
	}
	if err != nil {
		return nil, invalidf(path, "constructing %s: %v", t.name, err)
	}
	return result, nil
}

// normalizeLiteral maps every integer representation to int and every other
// numeric representation to float64 so literals compare by value.
func normalizeLiteral(v any) any {
	switch x := v.(type) {
	case string, bool, nil:
		return v
	case json.Number:
		if i, err := strconv.Atoi(string(x)); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return string(x)
	}
	if i, ok := asInt(v); ok {
		return i
	}
	if f, ok := asFloat(v); ok {
		return f
	}
	return v
}

func literalEqual(a, b any) bool {
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// asInt reports integer kinds and integral floats.
func asInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || !fitsInt(f) {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// asMapping reports values that are keyed mappings (not structs).
func asMapping(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return m, true
	}
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// toMap accepts mappings and JSON-marshalable structs.
func toMap(value any) (map[string]any, bool) {
	if m, ok := asMapping(value); ok {
		return m, true
	}
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	data, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, false
	}
	decoded, err := decodeJSON(data)
	if err != nil {
		return nil, false
	}
	m, ok := decoded.(map[string]any)
	return m, ok
}

func toSlice(value any) ([]any, bool) {
	if s, ok := value.([]any); ok {
		return s, true
	}
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func describe(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case json.Number:
		return string(v)
	}
	if _, ok := asFloat(value); ok {
		return fmt.Sprintf("%v", value)
	}
	if b, ok := value.(bool); ok {
		return strconv.FormatBool(b)
	}
	return fmt.Sprintf("%T", value)
}
