// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table renders tabular API data as aligned text or CSV.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/stockparfait/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Table of string cells.
//
// A typical use:
//   t := table.New("symbol", "close")
//   t.AddRow("IBM", "120.5")
//   t.WriteText(os.Stdout, table.Params{})
type Table struct {
	Header []string // optional, may be nil
	Rows   [][]string
}

// New creates a Table with optional column headers. When present, the header
// is expected to have as many columns as each row.
func New(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow appends a row of cells.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// FromRecords creates a table from an already split CSV body.
func FromRecords(header []string, rows [][]string) *Table {
	return &Table{Header: header, Rows: rows}
}

// FromObjects creates a table with a row per object. The columns are the given
// ones, or the sorted union of the objects' keys when none are given. Missing
// values are empty cells.
func FromObjects(objs []map[string]any, columns ...string) *Table {
	if len(columns) == 0 {
		keys := map[string]struct{}{}
		for _, o := range objs {
			for k := range o {
				keys[k] = struct{}{}
			}
		}
		columns = maps.Keys(keys)
		slices.Sort(columns)
	}
	t := New(columns...)
	for _, o := range objs {
		row := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := o[c]; ok {
				row[i] = Cell(v)
			}
		}
		t.AddRow(row...)
	}
	return t
}

// listKeys are the keys under which the API returns lists of records.
var listKeys = []string{"values", "data", "earnings"}

// FromJSON creates a table from a decoded JSON value: a list of objects gives a
// row per object; an object holding such a list under one of the list keys
// gives its rows; any other object gives a key/value row per field.
func FromJSON(v any) (*Table, error) {
	switch x := v.(type) {
	case []any:
		objs, ok := objects(x)
		if !ok {
			return nil, errors.Reason("list elements are not all objects")
		}
		return FromObjects(objs), nil
	case map[string]any:
		for _, k := range listKeys {
			if l, ok := x[k].([]any); ok {
				if objs, ok := objects(l); ok {
					return FromObjects(objs), nil
				}
			}
		}
		keys := maps.Keys(x)
		slices.Sort(keys)
		t := New("key", "value")
		for _, k := range keys {
			t.AddRow(k, Cell(x[k]))
		}
		return t, nil
	}
	return nil, errors.Reason("cannot tabulate a value of type %T", v)
}

func objects(l []any) ([]map[string]any, bool) {
	res := make([]map[string]any, len(l))
	for i, e := range l {
		o, ok := e.(map[string]any)
		if !ok {
			return nil, false
		}
		res[i] = o
	}
	return res, true
}

// Cell formats a decoded JSON value as a table cell. Nested values are
// rendered as compact JSON.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Params for writing Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited
	NoHeader    bool // omit the header
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
	Separator   rune // for WriteCSV only; 0 means ','
}

// visible returns the rows to write under the params.
func (t *Table) visible(p Params) [][]string {
	if p.Rows > 0 && p.Rows < len(t.Rows) {
		return t.Rows[:p.Rows]
	}
	return t.Rows
}

func (t *Table) withHeader(p Params) bool {
	return !p.NoHeader && len(t.Header) > 0
}

// WriteCSV writes the table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if p.Separator != 0 {
		cw.Comma = p.Separator
	}
	if t.withHeader(p) {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	if err := cw.WriteAll(t.visible(p)); err != nil {
		return errors.Annotate(err, "failed to write rows")
	}
	return nil
}

// WriteText writes the table as right-aligned columns separated by " | ".
// Cells wider than MaxColWidth are cut and end with "..".
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	lines := t.visible(p)
	if t.withHeader(p) {
		lines = append([][]string{t.Header}, lines...)
	}
	if len(lines) == 0 {
		return nil
	}
	widths := make([]int, len(lines[0]))
	for _, l := range lines {
		if len(l) != len(widths) {
			return errors.Reason("row size [%d] != expected size [%d]",
				len(l), len(widths))
		}
		for i, c := range l {
			n := utf8.RuneCountInString(c)
			if p.MaxColWidth > 0 && n > p.MaxColWidth {
				n = p.MaxColWidth
			}
			if n > widths[i] {
				widths[i] = n
			}
		}
	}
	if t.withHeader(p) {
		dashes := make([]string, len(widths))
		for i, n := range widths {
			dashes[i] = strings.Repeat("-", n)
		}
		lines = append([][]string{lines[0], dashes}, lines[1:]...)
	}
	for _, l := range lines {
		cells := make([]string, len(l))
		for i, c := range l {
			if r := []rune(c); len(r) > widths[i] {
				c = string(r[:widths[i]-2]) + ".."
			}
			cells[i] = fmt.Sprintf("%*s", widths[i], c)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, " | ")); err != nil {
			return errors.Annotate(err, "failed to write line")
		}
	}
	return nil
}
