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
	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler removes the mean and scales features to unit variance. Constant
// features are only centered.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func (s *StandardScaler) Fit(x [][]float64) {
	d := len(x[0])
	s.Mean = make([]float64, d)
	s.Scale = make([]float64, d)
	column := make([]float64, len(x))
	for j := 0; j < d; j++ {
		for i, row := range x {
			column[i] = row[j]
		}
		s.Mean[j], s.Scale[j] = stat.PopMeanStdDev(column, nil)
		if s.Scale[j] < 1e-15 {
			s.Scale[j] = 1
		}
	}
}

func (s *StandardScaler) Transform(x [][]float64) [][]float64 {
	return lo.Map(x, func(row []float64, _ int) []float64 {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		return scaled
	})
}

// Pipeline standardizes features before handing them to the estimator.
type Pipeline struct {
	modelType  ModelType
	targetType dataset.TargetType
	params     Params
	scaler     StandardScaler
	estimator  Estimator
	fitted     bool
}

func (p *Pipeline) ModelType() ModelType {
	return p.modelType
}

func (p *Pipeline) TargetType() dataset.TargetType {
	return p.targetType
}

func (p *Pipeline) GetParams() Params {
	return p.params
}

func (p *Pipeline) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := validateTrainingSet(x, y); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	if p.targetType == dataset.Classification {
		y = binaryLabels(y)
	}
	p.scaler.Fit(x)
	if err := p.estimator.Fit(ctx, p.scaler.Transform(x), y); err != nil {
		return errors.Annotatef(err, "fit %v", p.modelType)
	}
	p.fitted = true
	return nil
}

func (p *Pipeline) predict(x [][]float64) ([]float64, error) {
	if !p.fitted {
		return nil, errors.Trace(ErrNotFitted)
	}
	for i, row := range x {
		if len(row) != len(p.scaler.Mean) {
			return nil, errors.Annotatef(dataset.ErrShapeMismatch, "row %d has %d features, expect %d", i, len(row), len(p.scaler.Mean))
		}
	}
	return p.estimator.Predict(p.scaler.Transform(x)), nil
}

func (p *Pipeline) Predict(x [][]float64) ([]float64, error) {
	output, err := p.predict(x)
	if err != nil {
		return nil, err
	}
	if p.targetType == dataset.Classification {
		for i := range output {
			if output[i] > 0.5 {
				output[i] = 1
			} else {
				output[i] = 0
			}
		}
	}
	return output, nil
}

func (p *Pipeline) PredictProba(x [][]float64) ([]float64, error) {
	if p.targetType != dataset.Classification {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "%v regressor has no probabilities", p.modelType)
	}
	return p.predict(x)
}

type pipelineState struct {
	Fitted bool
	Mean   []float64
	Scale  []float64
}

func (p *Pipeline) Marshal(w io.Writer) error {
	err := encoding.WriteGob(w, pipelineState{
		Fitted: p.fitted,
		Mean:   p.scaler.Mean,
		Scale:  p.scaler.Scale,
	})
	if err != nil {
		return errors.Trace(err)
	}
	return p.estimator.Marshal(w)
}

func (p *Pipeline) Unmarshal(r io.Reader) error {
	var state pipelineState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	p.fitted = state.Fitted
	p.scaler = StandardScaler{Mean: state.Mean, Scale: state.Scale}
	return p.estimator.Unmarshal(r)
}
