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

package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func newTestDataset(t *testing.T, n int) *Dataset {
	x := lo.Map(lo.Range(n), func(i, _ int) []float64 { return []float64{float64(i), float64(-i)} })
	y := lo.Map(lo.Range(n), func(i, _ int) float64 { return float64(i % 2) })
	d, err := New([]string{"a", "b"}, x, y, Classification)
	assert.NoError(t, err)
	return d
}

func TestNew(t *testing.T) {
	_, err := New(nil, [][]float64{{1}}, []float64{1}, TargetType(0))
	assert.ErrorIs(t, err, ErrUnknownTargetType)
	_, err = New(nil, [][]float64{{1}, {2}}, []float64{1}, Regression)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = New([]string{"a", "b"}, [][]float64{{1}}, []float64{1}, Regression)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = New(nil, [][]float64{{1}}, []float64{1}, Regression, WithTrainSize(1))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	d, err := New(nil, [][]float64{{1, 2, 3}}, []float64{1}, Regression)
	assert.NoError(t, err)
	assert.Equal(t, []string{"x0", "x1", "x2"}, d.Columns())
	assert.Equal(t, Regression, d.TargetType())
	rows, cols := d.Shape()
	assert.Equal(t, 1, rows)
	assert.Equal(t, 4, cols)
}

func TestParseTargetType(t *testing.T) {
	targetType, err := ParseTargetType("classification")
	assert.NoError(t, err)
	assert.Equal(t, Classification, targetType)
	assert.Equal(t, "regression", Regression.String())
	_, err = ParseTargetType("density")
	assert.True(t, errors.Is(err, ErrUnknownTargetType))
}

func TestSplit(t *testing.T) {
	d := newTestDataset(t, 100)
	train, test := d.Train(), d.Test()
	assert.Equal(t, 80, train.Len())
	assert.Equal(t, 20, test.Len())
	assert.Equal(t, Classification, train.TargetType())
	assert.Equal(t, Classification, test.TargetType())
	// splits are disjoint and cover every row
	seen := make(map[float64]int)
	for _, part := range []*Dataset{train, test} {
		x, _ := part.Unpack()
		for _, row := range x {
			seen[row[0]]++
		}
	}
	assert.Len(t, seen, 100)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
	// deterministic
	other := newTestDataset(t, 100)
	assert.Equal(t, train.Fingerprint(), other.Train().Fingerprint())
	assert.Same(t, train, d.Train())
	// another seed gives another split
	x, y := d.Unpack()
	reseeded, err := New(d.Columns(), x, y, Classification, WithSplitSeed(42))
	assert.NoError(t, err)
	assert.NotEqual(t, train.Fingerprint(), reseeded.Train().Fingerprint())
}

func TestSplitTiny(t *testing.T) {
	d := newTestDataset(t, 2)
	assert.Equal(t, 1, d.Train().Len())
	assert.Equal(t, 1, d.Test().Len())
}

func TestSlice(t *testing.T) {
	d := newTestDataset(t, 10)
	assert.Equal(t, 3, d.Head(3).Len())
	assert.Equal(t, 10, d.Head(100).Len())
	s := d.Slice(2, 5)
	assert.Equal(t, []float64{2, -2}, s.Row(0))
	assert.Equal(t, 0.0, s.Target(0))
	assert.Equal(t, 0, d.Slice(7, 3).Len())
	f := d.Filter(func(x []float64, y float64) bool { return IsPositive(y) })
	assert.Equal(t, 5, f.Len())
}

func TestConcat(t *testing.T) {
	a := newTestDataset(t, 3)
	b := newTestDataset(t, 4)
	c, err := Concat(a, b)
	assert.NoError(t, err)
	assert.Equal(t, 7, c.Len())
	assert.Equal(t, Classification, c.TargetType())
	c, err = ConcatHead(2, a, b)
	assert.NoError(t, err)
	assert.Equal(t, 4, c.Len())

	r, err := New(nil, [][]float64{{1, 2}}, []float64{1}, Regression)
	assert.NoError(t, err)
	_, err = Concat(a, r)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = Concat()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestFingerprint(t *testing.T) {
	a := newTestDataset(t, 10)
	b := newTestDataset(t, 10)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), a.Head(9).Fingerprint())
	x, y := a.Unpack()
	r, err := New(a.Columns(), x, y, Regression)
	assert.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), r.Fingerprint())
}

func TestFeatureRange(t *testing.T) {
	d := newTestDataset(t, 5)
	lower, upper := d.FeatureRange()
	assert.Equal(t, -4.0, lower)
	assert.Equal(t, 4.0, upper)
}

func TestCSV(t *testing.T) {
	text := "a,target,b\n1,0,2\n3,1,4.5\n"
	d, err := ReadCSV(strings.NewReader(text), "target", Classification)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, d.Columns())
	x, y := d.Unpack()
	assert.Equal(t, [][]float64{{1, 2}, {3, 4.5}}, x)
	assert.Equal(t, []float64{0, 1}, y)

	var buf bytes.Buffer
	assert.NoError(t, WriteCSV(&buf, d, "target"))
	assert.Equal(t, "a,b,target\n1,2,0\n3,4.5,1\n", buf.String())

	_, err = ReadCSV(strings.NewReader(text), "label", Classification)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = ReadCSV(strings.NewReader("a,target\nx,1\n"), "target", Classification)
	assert.Error(t, err)
}

func TestMakeMoons(t *testing.T) {
	d, err := MakeMoons(101, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, 101, d.Len())
	assert.Equal(t, 2, d.Dim())
	_, y := d.Unpack()
	assert.Equal(t, 51, len(lo.Filter(y, func(v float64, _ int) bool { return IsPositive(v) })))
	other, err := MakeMoons(101, 0.1, 0)
	assert.NoError(t, err)
	assert.NotEqual(t, d.Fingerprint(), other.Fingerprint())
}

func TestMakeCircles(t *testing.T) {
	d, err := MakeCircles(100, 0, 0.5, 1)
	assert.NoError(t, err)
	x, y := d.Unpack()
	for i := range x {
		radius := x[i][0]*x[i][0] + x[i][1]*x[i][1]
		if IsPositive(y[i]) {
			assert.InDelta(t, 0.25, radius, 1e-9)
		} else {
			assert.InDelta(t, 1, radius, 1e-9)
		}
	}
}
