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
	"bytes"
	"math"
	"testing"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/metrics"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func newTable(t *testing.T) *Table {
	table := New([]string{"AUC", "Acc"})
	assert.NoError(t, table.Append("Oracle", []float64{0.9, 0.8}))
	assert.NoError(t, table.Append("Naive", []float64{0.7, 0.85}))
	assert.NoError(t, table.Append("DGE (K=5)", []float64{0.8, 0.75}))
	return table
}

func TestTable(t *testing.T) {
	table := newTable(t)
	v, ok := table.Get("Naive", "Acc")
	assert.True(t, ok)
	assert.Equal(t, 0.85, v)
	_, ok = table.Get("Naive", "F1")
	assert.False(t, ok)
	row, ok := table.Row("DGE (K=5)")
	assert.True(t, ok)
	assert.Equal(t, []float64{0.8, 0.75}, row)
	column, ok := table.Column("AUC")
	assert.True(t, ok)
	assert.Equal(t, []float64{0.9, 0.7, 0.8}, column)
	err := table.Append("Bad", []float64{1})
	assert.True(t, errors.Is(err, dataset.ErrShapeMismatch))
}

func TestFromScores(t *testing.T) {
	table, err := FromScores([]string{"a", "b"}, []metrics.Scores{
		{Names: []string{"RMSE", "MAE"}, Values: []float64{1, 0.5}},
		{Names: []string{"RMSE", "MAE"}, Values: []float64{2, 1.5}},
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"RMSE", "MAE"}, table.Columns)
	assert.Equal(t, [][]float64{{1, 0.5}, {2, 1.5}}, table.Values)

	_, err = FromScores([]string{"a", "b"}, []metrics.Scores{
		{Names: []string{"RMSE", "MAE"}, Values: []float64{1, 0.5}},
		{Names: []string{"AUC"}, Values: []float64{1}},
	})
	assert.True(t, errors.Is(err, dataset.ErrShapeMismatch))
	_, err = FromScores([]string{"a"}, nil)
	assert.True(t, errors.Is(err, dataset.ErrShapeMismatch))
}

func TestMeanStd(t *testing.T) {
	mean, std, err := MeanStd([][]float64{{1, 2}, {3, 2}})
	assert.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, mean)
	assert.Equal(t, []float64{1, 0}, std)
	_, _, err = MeanStd([][]float64{{1, 2}, {3}})
	assert.True(t, errors.Is(err, dataset.ErrShapeMismatch))
	_, _, err = MeanStd(nil)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}

func TestSummary(t *testing.T) {
	table := New([]string{"RMSE"})
	assert.NoError(t, table.Summary("Naive (single)", [][]float64{{4}, {1}, {3}, {2}}))
	assert.Equal(t, []string{
		"Naive (single) median",
		"Naive (single) mean",
		"Naive (single) std",
		"Naive (single) min",
		"Naive (single) max",
	}, table.Rows)
	assert.Equal(t, [][]float64{{2.5}, {2.5}, {math.Sqrt(1.25)}, {1}, {4}}, table.Values)

	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	err := table.Summary("x", [][]float64{{1, 2}})
	assert.True(t, errors.Is(err, dataset.ErrShapeMismatch))
}

func TestRound(t *testing.T) {
	table := New([]string{"a", "b", "c"})
	assert.NoError(t, table.Append("x", []float64{0.12345, 0.0625, math.NaN()}))
	rounded := table.Round(3)
	assert.Equal(t, 0.123, rounded.Values[0][0])
	assert.Equal(t, 0.063, rounded.Values[0][1])
	assert.True(t, math.IsNaN(rounded.Values[0][2]))
	// the source table is untouched
	assert.Equal(t, 0.12345, table.Values[0][0])
}

func TestRank(t *testing.T) {
	table := New([]string{"lr", "mlp", "rf"})
	assert.NoError(t, table.Append("Oracle", []float64{0.8, 0.9, 0.7}))
	assert.NoError(t, table.Append("DGE", []float64{0.5, 0.5, 0.6}))
	ranked := table.Rank(true)
	assert.Equal(t, [][]float64{{2, 3, 1}, {1, 2, 3}}, ranked.Values)
	ranked = table.Rank(false)
	assert.Equal(t, [][]float64{{2, 1, 3}, {2, 3, 1}}, ranked.Values)

	sorted, err := table.SortColumns("Oracle", true)
	assert.NoError(t, err)
	assert.Equal(t, []string{"rf", "lr", "mlp"}, sorted.Columns)
	assert.Equal(t, [][]float64{{0.7, 0.8, 0.9}, {0.6, 0.5, 0.5}}, sorted.Values)
	_, err = table.SortColumns("Naive", true)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestSelect(t *testing.T) {
	selected, err := newTable(t).Select([]string{"Acc", "AUC"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"Acc", "AUC"}, selected.Columns)
	assert.Equal(t, []float64{0.8, 0.9}, selected.Values[0])
	_, err = newTable(t).Select([]string{"F1"})
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestMeanAcross(t *testing.T) {
	a := New([]string{"AUC"})
	assert.NoError(t, a.Append("Oracle", []float64{0.8}))
	assert.NoError(t, a.Append("DGE", []float64{0.6}))
	b := New([]string{"AUC"})
	assert.NoError(t, b.Append("DGE", []float64{0.7}))
	assert.NoError(t, b.Append("Oracle", []float64{1.0}))
	assert.NoError(t, b.Append("Naive", []float64{0.5}))
	mean, err := MeanAcross([]*Table{a, b})
	assert.NoError(t, err)
	assert.Equal(t, []string{"Oracle", "DGE", "Naive"}, mean.Rows)
	assert.InDelta(t, 0.9, mean.Values[0][0], 1e-12)
	assert.InDelta(t, 0.65, mean.Values[1][0], 1e-12)
	assert.Equal(t, 0.5, mean.Values[2][0])

	_, err = MeanAcross([]*Table{a, New([]string{"Acc"})})
	assert.True(t, errors.Is(err, dataset.ErrShapeMismatch))
	_, err = MeanAcross(nil)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}

func TestMetricAcross(t *testing.T) {
	moons := newTable(t)
	circles := New([]string{"AUC"})
	assert.NoError(t, circles.Append("Oracle", []float64{0.7}))
	result, err := MetricAcross([]string{"moons", "circles"}, []*Table{moons, circles}, "AUC")
	assert.NoError(t, err)
	assert.Equal(t, []string{"moons", "circles", "Mean"}, result.Columns)
	assert.Equal(t, moons.Rows, result.Rows)
	assert.InDelta(t, 0.8, result.Values[0][2], 1e-12)
	assert.True(t, math.IsNaN(result.Values[1][1]))
	assert.Equal(t, 0.7, result.Values[1][2])
}

func TestWithStd(t *testing.T) {
	mean := newTable(t)
	std := New([]string{"Acc"})
	assert.NoError(t, std.Append("Oracle", []float64{0.01}))
	assert.NoError(t, std.Append("Naive", []float64{0.0204}))
	assert.NoError(t, std.Append("DGE (K=5)", []float64{0}))
	text, err := WithStd(mean, std, 3)
	assert.NoError(t, err)
	assert.Equal(t, [][]string{
		{"0.900", "0.800 ± 0.010"},
		{"0.700", "0.850 ± 0.020"},
		{"0.800", "0.750 ± 0.000"},
	}, text.Cells)

	std.Rows[0] = "Other"
	_, err = WithStd(mean, std, 3)
	assert.True(t, errors.Is(err, dataset.ErrShapeMismatch))
}

func TestLaTeX(t *testing.T) {
	table := New([]string{"AUC", "F1"})
	assert.NoError(t, table.Append("DGE_alternative", []float64{0.91234, 0.5}))
	var buf bytes.Buffer
	assert.NoError(t, table.LaTeX(&buf, 2))
	assert.Equal(t, "\\begin{tabular}{lrr}\n"+
		"\\toprule\n"+
		" & AUC & F1 \\\\\n"+
		"\\midrule\n"+
		"DGE\\_alternative & 0.91 & 0.50 \\\\\n"+
		"\\bottomrule\n"+
		"\\end{tabular}\n", buf.String())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, newTable(t).Render(&buf, DefaultPrecision))
	out := buf.String()
	assert.Contains(t, out, "Oracle")
	assert.Contains(t, out, "DGE (K=5)")
	assert.Contains(t, out, "0.850")
	assert.Contains(t, out, "0.750")
}
