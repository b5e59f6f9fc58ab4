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
	"math"

	"github.com/gorse-io/dge/common/encoding"
	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// KernelDensity estimates the density of training features with a Gaussian product
// kernel. Targets are ignored. The bandwidth of each feature is its standard deviation
// scaled by Scott's factor n^(-1/(d+4)) unless the Bandwidth parameter is positive.
// Densities are computed on raw features, so the model is not wrapped in a Pipeline.
type KernelDensity struct {
	targetType dataset.TargetType
	params     Params
	Points     [][]float64
	Bandwidth  []float64
}

func NewKernelDensity(params Params, targetType dataset.TargetType) *KernelDensity {
	return &KernelDensity{targetType: targetType, params: params}
}

func (m *KernelDensity) ModelType() ModelType {
	return KDE
}

func (m *KernelDensity) TargetType() dataset.TargetType {
	return m.targetType
}

func (m *KernelDensity) GetParams() Params {
	return m.params
}

func (m *KernelDensity) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := validateTrainingSet(x, y); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	d := len(x[0])
	factor := math.Pow(float64(len(x)), -1/float64(d+4))
	bandwidth := m.params.GetFloat64(Bandwidth, 0)
	m.Bandwidth = make([]float64, d)
	for j := range m.Bandwidth {
		if bandwidth > 0 {
			m.Bandwidth[j] = bandwidth
			continue
		}
		_, std := stat.PopMeanStdDev(lo.Map(x, func(row []float64, _ int) float64 { return row[j] }), nil)
		if std < 1e-15 {
			// constant feature
			std = 1
		}
		m.Bandwidth[j] = std * factor
	}
	m.Points = x
	return nil
}

// Predict returns the estimated density at every row.
func (m *KernelDensity) Predict(x [][]float64) ([]float64, error) {
	if m.Points == nil {
		return nil, errors.Trace(ErrNotFitted)
	}
	d := len(m.Bandwidth)
	norm := float64(len(m.Points)) * math.Pow(2*math.Pi, float64(d)/2) * floats.Prod(m.Bandwidth)
	densities := make([]float64, len(x))
	for i, row := range x {
		if len(row) != d {
			return nil, errors.Annotatef(dataset.ErrShapeMismatch, "row %d has %d features, expect %d", i, len(row), d)
		}
		var sum float64
		for _, point := range m.Points {
			var sq float64
			for j, v := range row {
				z := (v - point[j]) / m.Bandwidth[j]
				sq += z * z
			}
			sum += math.Exp(-sq / 2)
		}
		densities[i] = sum / norm
	}
	return densities, nil
}

func (m *KernelDensity) PredictProba([][]float64) ([]float64, error) {
	return nil, errors.Annotate(dataset.ErrInvalidConfiguration, "kernel density has no probabilities")
}

type kdeState struct {
	Points    [][]float64
	Bandwidth []float64
}

func (m *KernelDensity) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, kdeState{Points: m.Points, Bandwidth: m.Bandwidth})
}

func (m *KernelDensity) Unmarshal(r io.Reader) error {
	var state kdeState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.Points, m.Bandwidth = state.Points, state.Bandwidth
	return nil
}
