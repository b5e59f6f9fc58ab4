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
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// MakeMoons generates two interleaving half circles. The outer moon is labeled 0 and
// the inner moon is labeled 1.
func MakeMoons(n int, noise float64, seed int64, opts ...Option) (*Dataset, error) {
	nOut := n / 2
	nIn := n - nOut
	x := make([][]float64, 0, n)
	y := make([]float64, 0, n)
	for _, t := range linspace(0, math.Pi, nOut) {
		x = append(x, []float64{math.Cos(t), math.Sin(t)})
		y = append(y, 0)
	}
	for _, t := range linspace(0, math.Pi, nIn) {
		x = append(x, []float64{1 - math.Cos(t), 1 - math.Sin(t) - 0.5})
		y = append(y, 1)
	}
	return shuffleWithNoise(x, y, noise, seed, opts...)
}

// MakeCircles generates a large circle containing a smaller one. The outer circle is
// labeled 0 and the inner circle, scaled by factor, is labeled 1.
func MakeCircles(n int, noise, factor float64, seed int64, opts ...Option) (*Dataset, error) {
	nOut := n / 2
	nIn := n - nOut
	x := make([][]float64, 0, n)
	y := make([]float64, 0, n)
	for i := 0; i < nOut; i++ {
		t := 2 * math.Pi * float64(i) / float64(nOut)
		x = append(x, []float64{math.Cos(t), math.Sin(t)})
		y = append(y, 0)
	}
	for i := 0; i < nIn; i++ {
		t := 2 * math.Pi * float64(i) / float64(nIn)
		x = append(x, []float64{factor * math.Cos(t), factor * math.Sin(t)})
		y = append(y, 1)
	}
	return shuffleWithNoise(x, y, noise, seed, opts...)
}

func shuffleWithNoise(x [][]float64, y []float64, noise float64, seed int64, opts ...Option) (*Dataset, error) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(x), func(i, j int) {
		x[i], x[j] = x[j], x[i]
		y[i], y[j] = y[j], y[i]
	})
	if noise > 0 {
		for _, row := range x {
			for j := range row {
				row[j] += rng.NormFloat64() * noise
			}
		}
	}
	return New([]string{"x0", "x1"}, x, y, Classification, opts...)
}

func linspace(start, end float64, n int) []float64 {
	switch n {
	case 0:
		return nil
	case 1:
		return []float64{start}
	default:
		return floats.Span(make([]float64, n), start, end)
	}
}
