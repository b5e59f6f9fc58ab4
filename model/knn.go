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

package model

import (
	"context"
	"io"

	"github.com/gorse-io/dge/common/encoding"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// KNearestNeighbors averages the targets of the k closest training rows under the
// Euclidean distance with uniform weights.
type KNearestNeighbors struct {
	X [][]float64
	Y []float64
	K int
}

func NewKNearestNeighbors(params Params) *KNearestNeighbors {
	return &KNearestNeighbors{K: params.GetInt(NNeighbors, 5)}
}

func (m *KNearestNeighbors) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	m.X, m.Y = x, y
	return nil
}

type neighbor struct {
	index    int
	distance float64
}

func (m *KNearestNeighbors) neighbors(row []float64) []neighbor {
	k := min(m.K, len(m.X))
	nearest := make([]neighbor, 0, k+1)
	for i, candidate := range m.X {
		var distance float64
		for j, v := range candidate {
			distance += (v - row[j]) * (v - row[j])
		}
		if len(nearest) == k && distance >= nearest[k-1].distance {
			continue
		}
		// insert keeping nearest sorted by distance, earlier rows win ties
		pos := len(nearest)
		for pos > 0 && nearest[pos-1].distance > distance {
			pos--
		}
		nearest = append(nearest, neighbor{})
		copy(nearest[pos+1:], nearest[pos:])
		nearest[pos] = neighbor{index: i, distance: distance}
		if len(nearest) > k {
			nearest = nearest[:k]
		}
	}
	return nearest
}

func (m *KNearestNeighbors) Predict(x [][]float64) []float64 {
	return lo.Map(x, func(row []float64, _ int) float64 {
		nearest := m.neighbors(row)
		return lo.SumBy(nearest, func(n neighbor) float64 { return m.Y[n.index] }) / float64(len(nearest))
	})
}

type knnState struct {
	X [][]float64
	Y []float64
}

func (m *KNearestNeighbors) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, knnState{X: m.X, Y: m.Y})
}

func (m *KNearestNeighbors) Unmarshal(r io.Reader) error {
	var state knnState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.X, m.Y = state.X, state.Y
	return nil
}
