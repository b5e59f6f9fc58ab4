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

package ensemble

import (
	"context"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/task"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
)

const DefaultGridSteps = 400

// Grid holds prediction surfaces over a square grid. Mean[r][c] and Std[r][c] are
// evaluated at (X[c], Y[r]).
type Grid struct {
	X      []float64
	Y      []float64
	Mean   [][]float64
	Std    [][]float64
	Models []model.Model
}

// AggregateGrid evaluates the ensemble on a steps x steps grid spanning the range of
// real training features. The real data must have exactly two features.
func AggregateGrid(ctx context.Context, gt *dataset.Dataset, syns []*dataset.Dataset, t task.Task, steps int, opts Options) (*Grid, error) {
	if gt.Dim() != 2 {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "grid requires 2 features but got %d", gt.Dim())
	}
	if steps <= 0 {
		steps = DefaultGridSteps
	} else if steps < 2 {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "grid requires at least 2 steps but got %d", steps)
	}
	if len(syns) == 0 {
		return nil, errors.Annotate(dataset.ErrInvalidConfiguration, "empty ensemble")
	}
	// both axes span the range of all features
	lower, upper := gt.Train().FeatureRange()
	axis := floats.Span(make([]float64, steps), lower, upper)
	x := make([][]float64, 0, steps*steps)
	for r := 0; r < steps; r++ {
		for c := 0; c < steps; c++ {
			x = append(x, []float64{axis[c], axis[r]})
		}
	}
	y := make([]float64, len(x))
	for i := range y {
		y[i] = -1
	}
	evalSet, err := dataset.New(gt.Columns(), x, y, syns[0].TargetType())
	if err != nil {
		return nil, errors.Trace(err)
	}
	result, err := Aggregate(ctx, evalSet, syns, t, opts)
	if err != nil {
		return nil, err
	}
	if len(result.Mean) != len(x) {
		return nil, errors.Annotatef(dataset.ErrShapeMismatch, "%d outcomes for %d grid points", len(result.Mean), len(x))
	}
	grid := &Grid{
		X:      axis,
		Y:      append([]float64(nil), axis...),
		Mean:   make([][]float64, steps),
		Std:    make([][]float64, steps),
		Models: result.Models,
	}
	for r := 0; r < steps; r++ {
		grid.Mean[r] = result.Mean[r*steps : (r+1)*steps]
		grid.Std[r] = result.Std[r*steps : (r+1)*steps]
	}
	return grid, nil
}
