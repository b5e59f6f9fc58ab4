// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/metrics"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const DefaultPrecision = 3

// Table is a score table. Values[i][j] is the value of column j in row i.
type Table struct {
	Columns []string
	Rows    []string
	Values  [][]float64
}

func New(columns []string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row. The number of values must match the number of columns.
func (t *Table) Append(row string, values []float64) error {
	if len(values) != len(t.Columns) {
		return errors.Annotatef(dataset.ErrShapeMismatch,
			"row %q has %d values but there are %d columns", row, len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	t.Values = append(t.Values, values)
	return nil
}

// Row returns values of the first row with the name.
func (t *Table) Row(name string) ([]float64, bool) {
	i := lo.IndexOf(t.Rows, name)
	if i < 0 {
		return nil, false
	}
	return t.Values[i], true
}

// Column returns values of a column in row order.
func (t *Table) Column(name string) ([]float64, bool) {
	j := lo.IndexOf(t.Columns, name)
	if j < 0 {
		return nil, false
	}
	return lo.Map(t.Values, func(row []float64, _ int) float64 { return row[j] }), true
}

func (t *Table) Get(row, column string) (float64, bool) {
	i, j := lo.IndexOf(t.Rows, row), lo.IndexOf(t.Columns, column)
	if i < 0 || j < 0 {
		return 0, false
	}
	return t.Values[i][j], true
}

// FromScores creates a table with one row per scores. All scores must share names.
func FromScores(rows []string, scores []metrics.Scores) (*Table, error) {
	if len(rows) != len(scores) {
		return nil, errors.Annotatef(dataset.ErrShapeMismatch, "%d rows but %d scores", len(rows), len(scores))
	}
	if len(scores) == 0 {
		return New(nil), nil
	}
	t := New(scores[0].Names)
	for i, s := range scores {
		if !slices.Equal(s.Names, t.Columns) {
			return nil, errors.Annotatef(dataset.ErrShapeMismatch, "row %q has metrics %v, expect %v", rows[i], s.Names, t.Columns)
		}
		if err := t.Append(rows[i], s.Values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MeanStd returns the columnwise mean and population standard deviation of rows.
func MeanStd(rows [][]float64) ([]float64, []float64, error) {
	columns, err := transpose(rows)
	if err != nil {
		return nil, nil, err
	}
	mean := make([]float64, len(columns))
	std := make([]float64, len(columns))
	for j, column := range columns {
		mean[j], std[j] = stat.PopMeanStdDev(column, nil)
	}
	return mean, std, nil
}

// Summary appends the median, mean, std, min and max of rows, named "{prefix} median" and
// so on.
func (t *Table) Summary(prefix string, rows [][]float64) error {
	columns, err := transpose(rows)
	if err != nil {
		return err
	}
	if len(columns) != len(t.Columns) {
		return errors.Annotatef(dataset.ErrShapeMismatch, "%d values but there are %d columns", len(columns), len(t.Columns))
	}
	summaries := []struct {
		name string
		fn   func([]float64) float64
	}{
		{"median", median},
		{"mean", func(x []float64) float64 { return stat.Mean(x, nil) }},
		{"std", func(x []float64) float64 { _, std := stat.PopMeanStdDev(x, nil); return std }},
		{"min", floats.Min},
		{"max", floats.Max},
	}
	for _, s := range summaries {
		if err = t.Append(prefix+" "+s.name, lo.Map(columns, func(column []float64, _ int) float64 {
			return s.fn(column)
		})); err != nil {
			return err
		}
	}
	return nil
}

// median averages the two middle values of an even number of values.
func median(x []float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func transpose(rows [][]float64) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, errors.Annotate(dataset.ErrInvalidConfiguration, "no rows")
	}
	columns := make([][]float64, len(rows[0]))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.Annotatef(dataset.ErrShapeMismatch, "row %d has %d values, expect %d", i, len(row), len(columns))
		}
		for j, v := range row {
			columns[j] = append(columns[j], v)
		}
	}
	return columns, nil
}

// Round returns a copy with values rounded half away from zero.
func (t *Table) Round(precision int) *Table {
	scale := math.Pow10(precision)
	return t.apply(func(v float64) float64 {
		return math.Round(v*scale) / scale
	})
}

func (t *Table) apply(fn func(float64) float64) *Table {
	return &Table{
		Columns: t.Columns,
		Rows:    append([]string(nil), t.Rows...),
		Values: lo.Map(t.Values, func(row []float64, _ int) []float64 {
			return lo.Map(row, func(v float64, _ int) float64 { return fn(v) })
		}),
	}
}

// Rank replaces values in every row with their 1-based rank. Ties keep column order.
func (t *Table) Rank(ascending bool) *Table {
	ranked := t.apply(func(v float64) float64 { return v })
	for i, row := range t.Values {
		order := lo.Range(len(row))
		sort.SliceStable(order, func(a, b int) bool {
			if ascending {
				return row[order[a]] < row[order[b]]
			}
			return row[order[a]] > row[order[b]]
		})
		for rank, j := range order {
			ranked.Values[i][j] = float64(rank + 1)
		}
	}
	return ranked
}

// SortColumns reorders columns by the values of a row.
func (t *Table) SortColumns(row string, ascending bool) (*Table, error) {
	values, ok := t.Row(row)
	if !ok {
		return nil, errors.NotFoundf("row %q", row)
	}
	order := lo.Range(len(t.Columns))
	sort.SliceStable(order, func(a, b int) bool {
		if ascending {
			return values[order[a]] < values[order[b]]
		}
		return values[order[a]] > values[order[b]]
	})
	return &Table{
		Columns: lo.Map(order, func(j, _ int) string { return t.Columns[j] }),
		Rows:    append([]string(nil), t.Rows...),
		Values: lo.Map(t.Values, func(row []float64, _ int) []float64 {
			return lo.Map(order, func(j, _ int) float64 { return row[j] })
		}),
	}, nil
}

// Select returns a table with the given columns in the given order.
func (t *Table) Select(columns []string) (*Table, error) {
	indices := make([]int, len(columns))
	for k, column := range columns {
		if indices[k] = lo.IndexOf(t.Columns, column); indices[k] < 0 {
			return nil, errors.NotFoundf("column %q", column)
		}
	}
	return &Table{
		Columns: columns,
		Rows:    append([]string(nil), t.Rows...),
		Values: lo.Map(t.Values, func(row []float64, _ int) []float64 {
			return lo.Map(indices, func(j, _ int) float64 { return row[j] })
		}),
	}, nil
}

// MeanAcross averages rows with the same name across tables, in order of first
// appearance. Tables must share columns.
func MeanAcross(tables []*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, errors.Annotate(dataset.ErrInvalidConfiguration, "no tables")
	}
	var names []string
	groups := make(map[string][][]float64)
	for _, t := range tables {
		if !slices.Equal(t.Columns, tables[0].Columns) {
			return nil, errors.Annotatef(dataset.ErrShapeMismatch, "columns %v, expect %v", t.Columns, tables[0].Columns)
		}
		for i, row := range t.Rows {
			if _, exist := groups[row]; !exist {
				names = append(names, row)
			}
			groups[row] = append(groups[row], t.Values[i])
		}
	}
	mean := New(tables[0].Columns)
	for _, name := range names {
		values, _, err := MeanStd(groups[name])
		if err != nil {
			return nil, err
		}
		if err = mean.Append(name, values); err != nil {
			return nil, err
		}
	}
	return mean, nil
}

// MetricAcross collects one metric of several tables into columns named by names, plus
// a "Mean" column ignoring missing values. Rows follow the first table.
func MetricAcross(names []string, tables []*Table, metric string) (*Table, error) {
	if len(names) != len(tables) {
		return nil, errors.Annotatef(dataset.ErrShapeMismatch, "%d names but %d tables", len(names), len(tables))
	}
	if len(tables) == 0 {
		return nil, errors.Annotate(dataset.ErrInvalidConfiguration, "no tables")
	}
	result := New(append(append([]string(nil), names...), "Mean"))
	for _, row := range tables[0].Rows {
		values := make([]float64, 0, len(tables)+1)
		var sum float64
		var count int
		for _, t := range tables {
			v, ok := t.Get(row, metric)
			if !ok {
				v = math.NaN()
			} else if !math.IsNaN(v) {
				sum += v
				count++
			}
			values = append(values, v)
		}
		values = append(values, sum/float64(count))
		if err := result.Append(row, values); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Text is a table of formatted cells.
type Text struct {
	Columns []string
	Rows    []string
	Cells   [][]string
}

// Text formats values with a fixed number of decimals.
func (t *Table) Text(precision int) *Text {
	return &Text{
		Columns: t.Columns,
		Rows:    t.Rows,
		Cells: lo.Map(t.Values, func(row []float64, _ int) []string {
			return lo.Map(row, func(v float64, _ int) string { return format(v, precision) })
		}),
	}
}

// WithStd formats cells as "mean ± std". Columns missing from std keep the mean only.
func WithStd(mean, std *Table, precision int) (*Text, error) {
	if !slices.Equal(mean.Rows, std.Rows) {
		return nil, errors.Annotatef(dataset.ErrShapeMismatch, "rows %v and %v", mean.Rows, std.Rows)
	}
	text := mean.Text(precision)
	for j, column := range mean.Columns {
		k := lo.IndexOf(std.Columns, column)
		if k < 0 {
			continue
		}
		for i := range text.Cells {
			text.Cells[i][j] += " ± " + format(std.Values[i][k], precision)
		}
	}
	return text, nil
}

func format(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

// Render writes the table to w with tablewriter.
func (t *Text) Render(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header(append([]string{""}, t.Columns...))
	for i, row := range t.Cells {
		if err := table.Append(append([]string{t.Rows[i]}, row...)); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

// LaTeX writes a booktabs tabular environment.
func (t *Text) LaTeX(w io.Writer) error {
	var b strings.Builder
	b.WriteString("\\begin{tabular}{l" + strings.Repeat("r", len(t.Columns)) + "}\n")
	b.WriteString("\\toprule\n")
	b.WriteString(" & " + strings.Join(lo.Map(t.Columns, escape), " & ") + " \\\\\n")
	b.WriteString("\\midrule\n")
	for i, row := range t.Cells {
		b.WriteString(escape(t.Rows[i], i) + " & " + strings.Join(lo.Map(row, escape), " & ") + " \\\\\n")
	}
	b.WriteString("\\bottomrule\n")
	b.WriteString("\\end{tabular}\n")
	_, err := io.WriteString(w, b.String())
	return errors.Trace(err)
}

var latexEscaper = strings.NewReplacer("&", "\\&", "%", "\\%", "_", "\\_", "#", "\\#", "±", "$\\pm$")

func escape(s string, _ int) string {
	return latexEscaper.Replace(s)
}

func (t *Table) Render(w io.Writer, precision int) error {
	return t.Text(precision).Render(w)
}

func (t *Table) LaTeX(w io.Writer, precision int) error {
	return t.Text(precision).LaTeX(w)
}
