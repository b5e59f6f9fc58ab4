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
	"math/rand"

	"github.com/gorse-io/dge/common/encoding"
	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// KernelMachine is a support vector machine with an RBF kernel trained by dual
// coordinate descent. The bias is absorbed into the kernel as K(a, b) + 1.
// Classification minimizes the hinge loss and maps decision values to probabilities
// with Platt scaling. Regression minimizes the epsilon-insensitive loss.
type KernelMachine struct {
	SupportVectors [][]float64
	Coef           []float64
	Gamma          float64
	PlattA         float64
	PlattB         float64
	targetType     dataset.TargetType
	c              float64
	epsilon        float64
	maxIter        int
	tol            float64
	randomState    int64
}

func NewKernelMachine(params Params, targetType dataset.TargetType) *KernelMachine {
	return &KernelMachine{
		Gamma:       params.GetFloat64(Gamma, 0),
		targetType:  targetType,
		c:           params.GetFloat64(C, 1),
		epsilon:     params.GetFloat64(Epsilon, 0.1),
		maxIter:     params.GetInt(NEpochs, 1000),
		tol:         params.GetFloat64(Tol, 1e-3),
		randomState: params.GetInt64(RandomState, 0),
	}
}

func (m *KernelMachine) kernel(a, b []float64) float64 {
	var distance float64
	for j := range a {
		distance += (a[j] - b[j]) * (a[j] - b[j])
	}
	return math.Exp(-m.Gamma*distance) + 1
}

// scaleGamma returns 1 / (n_features * var(X)) over all feature values.
func scaleGamma(x [][]float64) float64 {
	var sum, sumSq, n float64
	for _, row := range x {
		for _, v := range row {
			sum += v
			sumSq += v * v
			n++
		}
	}
	variance := sumSq/n - (sum/n)*(sum/n)
	if variance <= 0 {
		return 1
	}
	return 1 / (float64(len(x[0])) * variance)
}

func (m *KernelMachine) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if m.Gamma <= 0 {
		m.Gamma = scaleGamma(x)
	}
	n := len(x)
	rng := rand.New(rand.NewSource(m.randomState))
	// targets in {-1, 1} for classification
	signs := lo.Map(y, func(v float64, _ int) float64 {
		if v > 0.5 {
			return 1
		}
		return -1
	})
	coef := make([]float64, n)   // alpha_i * s_i or beta_i
	output := make([]float64, n) // decision values on the training set
	row := make([]float64, n)
	order := lo.Range(n)
	for epoch := 0; epoch < m.maxIter; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		var violation float64
		for _, i := range order {
			for j := range x {
				row[j] = m.kernel(x[i], x[j])
			}
			var delta float64
			if m.targetType == dataset.Classification {
				alpha := coef[i] * signs[i]
				g := signs[i]*output[i] - 1
				pg := g
				if alpha <= 0 {
					pg = min(g, 0)
				} else if alpha >= m.c {
					pg = max(g, 0)
				}
				violation = max(violation, math.Abs(pg))
				if math.Abs(pg) < 1e-12 {
					continue
				}
				newAlpha := min(max(alpha-g/row[i], 0), m.c)
				delta = (newAlpha - alpha) * signs[i]
			} else {
				g := output[i] - y[i]
				beta := coef[i] - g/row[i]
				threshold := m.epsilon / row[i]
				switch {
				case beta > threshold:
					beta -= threshold
				case beta < -threshold:
					beta += threshold
				default:
					beta = 0
				}
				beta = min(max(beta, -m.c), m.c)
				delta = beta - coef[i]
				violation = max(violation, math.Abs(delta)*row[i])
			}
			if delta == 0 {
				continue
			}
			coef[i] += delta
			for j := range output {
				output[j] += delta * row[j]
			}
		}
		if violation < m.tol {
			break
		}
	}
	m.SupportVectors, m.Coef = nil, nil
	for i, c := range coef {
		if c != 0 {
			m.SupportVectors = append(m.SupportVectors, x[i])
			m.Coef = append(m.Coef, c)
		}
	}
	if m.targetType == dataset.Classification {
		m.PlattA, m.PlattB = plattScaling(output, signs)
	}
	return nil
}

func (m *KernelMachine) decision(row []float64) float64 {
	var f float64
	for i, sv := range m.SupportVectors {
		f += m.Coef[i] * m.kernel(sv, row)
	}
	return f
}

func (m *KernelMachine) Predict(x [][]float64) []float64 {
	return lo.Map(x, func(row []float64, _ int) float64 {
		f := m.decision(row)
		if m.targetType == dataset.Classification {
			return sigmoid(-(m.PlattA*f + m.PlattB))
		}
		return f
	})
}

// plattScaling fits P(y=1|f) = 1 / (1 + exp(A*f + B)) by regularized maximum
// likelihood using Newton's method with backtracking.
func plattScaling(decision, signs []float64) (float64, float64) {
	var prior1, prior0 float64
	for _, s := range signs {
		if s > 0 {
			prior1++
		} else {
			prior0++
		}
	}
	hiTarget := (prior1 + 1) / (prior1 + 2)
	loTarget := 1 / (prior0 + 2)
	targets := lo.Map(signs, func(s float64, _ int) float64 {
		if s > 0 {
			return hiTarget
		}
		return loTarget
	})
	objective := func(a, b float64) float64 {
		var f float64
		for i, dec := range decision {
			fApB := dec*a + b
			if fApB >= 0 {
				f += targets[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				f += (targets[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return f
	}
	a, b := 0.0, math.Log((prior0+1)/(prior1+1))
	fval := objective(a, b)
	for iter := 0; iter < 100; iter++ {
		h11, h22, h21, g1, g2 := 1e-12, 1e-12, 0.0, 0.0, 0.0
		for i, dec := range decision {
			fApB := dec*a + b
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += dec * dec * d2
			h22 += d2
			h21 += dec * d2
			d1 := targets[i] - p
			g1 += dec * d1
			g2 += d1
		}
		if math.Abs(g1) < 1e-5 && math.Abs(g2) < 1e-5 {
			break
		}
		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB
		step := 1.0
		for ; step >= 1e-10; step /= 2 {
			newA, newB := a+step*dA, b+step*dB
			newF := objective(newA, newB)
			if newF < fval+1e-4*step*gd {
				a, b, fval = newA, newB, newF
				break
			}
		}
		if step < 1e-10 {
			break
		}
	}
	return a, b
}

type kernelState struct {
	SupportVectors [][]float64
	Coef           []float64
	Gamma          float64
	PlattA         float64
	PlattB         float64
}

func (m *KernelMachine) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, kernelState{
		SupportVectors: m.SupportVectors,
		Coef:           m.Coef,
		Gamma:          m.Gamma,
		PlattA:         m.PlattA,
		PlattB:         m.PlattB,
	})
}

func (m *KernelMachine) Unmarshal(r io.Reader) error {
	var state kernelState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.SupportVectors, m.Coef, m.Gamma = state.SupportVectors, state.Coef, state.Gamma
	m.PlattA, m.PlattB = state.PlattA, state.PlattB
	return nil
}
