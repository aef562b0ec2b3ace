package schema

import (
	"fmt"
	"strconv"
)

// Frame is a two-dimensional table with labelled columns and rows.
type Frame struct {
	Columns []string `json:"columns"`
	Index   []any    `json:"index"`
	Data    [][]any  `json:"data"`
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Data) }

// Column returns the values of the named column.
func (f Frame) Column(name string) ([]any, bool) {
	for i, c := range f.Columns {
		if c != name {
			continue
		}
		values := make([]any, len(f.Data))
		for r, row := range f.Data {
			values[r] = row[i]
		}
		return values, true
	}
	return nil, false
}

// Series is a single labelled column.
type Series struct {
	Name  string `json:"name,omitempty"`
	Index []any  `json:"index"`
	Data  []any  `json:"data"`
}

// Len returns the number of values.
func (s Series) Len() int { return len(s.Data) }

// Get returns the value at the given index label.
func (s Series) Get(label any) (any, bool) {
	for i, l := range s.Index {
		if literalEqual(normalizeLiteral(l), normalizeLiteral(label)) {
			return s.Data[i], true
		}
	}
	return nil, false
}

// frameInput is the row/column-oriented intermediate schema a frame is
// exchanged as.
func frameInput() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "array"},
				"description": "Rows of the table, each a list of cell values.",
			},
			"columns": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"index": map[string]any{"type": "array"},
		},
		"required": []string{"data"},
	}
}

func seriesInput() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data":  map[string]any{"type": "array"},
			"index": map[string]any{"type": "array"},
			"name":  map[string]any{"type": "string"},
		},
		"required": []string{"data"},
	}
}

func validateFrame(value any, path string) (any, error) {
	switch f := value.(type) {
	case Frame:
		return f, nil
	case *Frame:
		if f != nil {
			return *f, nil
		}
	}

	m, ok := asMapping(value)
	if !ok {
		return nil, invalidf(path, "expected a table with data, columns and index, got %s", describe(value))
	}

	rawRows, ok := toSlice(m["data"])
	if !ok {
		return nil, invalidf(path+".data", "expected a list of rows")
	}
	rows := make([][]any, len(rawRows))
	for i, raw := range rawRows {
		row, ok := toSlice(raw)
		if !ok {
			return nil, invalidf(fmt.Sprintf("%s.data[%d]", path, i), "expected a row list, got %s", describe(raw))
		}
		rows[i] = row
	}

	var columns []string
	if raw, present := m["columns"]; present && raw != nil {
		labels, ok := toSlice(raw)
		if !ok {
			return nil, invalidf(path+".columns", "expected a list of column names")
		}
		for _, l := range labels {
			columns = append(columns, fmt.Sprint(l))
		}
	} else if len(rows) > 0 {
		for i := range rows[0] {
			columns = append(columns, strconv.Itoa(i))
		}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, invalidf(fmt.Sprintf("%s.data[%d]", path, i), "row has %d cells, expected %d", len(row), len(columns))
		}
	}

	index, err := validateIndex(m, len(rows), path)
	if err != nil {
		return nil, err
	}
	return Frame{Columns: columns, Index: index, Data: rows}, nil
}

func validateSeries(value any, path string) (any, error) {
	switch s := value.(type) {
	case Series:
		return s, nil
	case *Series:
		if s != nil {
			return *s, nil
		}
	}

	m, ok := asMapping(value)
	if !ok {
		return nil, invalidf(path, "expected a series with data and index, got %s", describe(value))
	}
	data, ok := toSlice(m["data"])
	if !ok {
		return nil, invalidf(path+".data", "expected a list of values")
	}
	index, err := validateIndex(m, len(data), path)
	if err != nil {
		return nil, err
	}

	var name string
	if raw, present := m["name"]; present && raw != nil {
		name = fmt.Sprint(raw)
	}
	return Series{Name: name, Index: index, Data: data}, nil
}

// validateIndex returns the supplied row labels or a positional 0..n-1 index.
func validateIndex(m map[string]any, n int, path string) ([]any, error) {
	raw, present := m["index"]
	if !present || raw == nil {
		index := make([]any, n)
		for i := range index {
			index[i] = i
		}
		return index, nil
	}
	index, ok := toSlice(raw)
	if !ok {
		return nil, invalidf(path+".index", "expected a list of labels")
	}
	if len(index) != n {
		return nil, invalidf(path+".index", "index has %d labels, expected %d", len(index), n)
	}
	return index, nil
}
