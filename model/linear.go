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
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is an L2 regularized binary logistic regression fitted by Newton's
// method. The intercept is not penalized.
type LogisticRegression struct {
	Coef      []float64
	Intercept float64
	c         float64
	maxIter   int
	tol       float64
}

func NewLogisticRegression(params Params) *LogisticRegression {
	return &LogisticRegression{
		c:       params.GetFloat64(C, 1.0),
		maxIter: params.GetInt(NEpochs, 100),
		tol:     params.GetFloat64(Tol, 1e-8),
	}
}

// design prepends a column of ones to x.
func design(x [][]float64) *mat.Dense {
	n, d := len(x), len(x[0])
	data := make([]float64, 0, n*(d+1))
	for _, row := range x {
		data = append(data, 1)
		data = append(data, row...)
	}
	return mat.NewDense(n, d+1, data)
}

// solve solves a*x = b and tolerates ill-conditioned systems.
func solve(a mat.Matrix, b mat.Vector) (*mat.VecDense, error) {
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		var condition mat.Condition
		if !errors.As(err, &condition) {
			return nil, errors.Trace(err)
		}
	}
	return &x, nil
}

func (m *LogisticRegression) Fit(ctx context.Context, x [][]float64, y []float64) error {
	X := design(x)
	n, p := X.Dims()
	w := mat.NewVecDense(p, nil)
	prob := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(p, nil)
	hess := mat.NewDense(p, p, nil)
	weighted := mat.NewDense(n, p, nil)
	for iter := 0; iter < m.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		// probabilities and residuals
		prob.MulVec(X, w)
		residual := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			pi := sigmoid(prob.AtVec(i))
			prob.SetVec(i, pi)
			residual.SetVec(i, pi-y[i])
		}
		// gradient = X'(p - y) + w / C
		grad.MulVec(X.T(), residual)
		for j := 1; j < p; j++ {
			grad.SetVec(j, grad.AtVec(j)+w.AtVec(j)/m.c)
		}
		// hessian = X'SX + I / C
		for i := 0; i < n; i++ {
			s := prob.AtVec(i) * (1 - prob.AtVec(i))
			for j := 0; j < p; j++ {
				weighted.Set(i, j, X.At(i, j)*s)
			}
		}
		hess.Mul(X.T(), weighted)
		hess.Set(0, 0, hess.At(0, 0)+1e-10)
		for j := 1; j < p; j++ {
			hess.Set(j, j, hess.At(j, j)+1/m.c)
		}
		step, err := solve(hess, grad)
		if err != nil {
			return err
		}
		w.SubVec(w, step)
		if mat.Norm(step, math.Inf(1)) < m.tol {
			break
		}
	}
	m.Intercept = w.AtVec(0)
	m.Coef = make([]float64, p-1)
	for j := range m.Coef {
		m.Coef[j] = w.AtVec(j + 1)
	}
	return nil
}

func (m *LogisticRegression) decision(row []float64) float64 {
	z := m.Intercept
	for j, v := range row {
		z += m.Coef[j] * v
	}
	return z
}

func (m *LogisticRegression) Predict(x [][]float64) []float64 {
	output := make([]float64, len(x))
	for i, row := range x {
		output[i] = sigmoid(m.decision(row))
	}
	return output
}

type linearState struct {
	Coef      []float64
	Intercept float64
}

func (m *LogisticRegression) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, linearState{Coef: m.Coef, Intercept: m.Intercept})
}

func (m *LogisticRegression) Unmarshal(r io.Reader) error {
	var state linearState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.Coef, m.Intercept = state.Coef, state.Intercept
	return nil
}

// LinearRegression is ordinary least squares with an intercept.
type LinearRegression struct {
	Coef      []float64
	Intercept float64
}

func NewLinearRegression(_ Params) *LinearRegression {
	return &LinearRegression{}
}

func (m *LinearRegression) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	X := design(x)
	_, p := X.Dims()
	// normal equations with a tiny ridge keep rank deficient designs solvable
	var gram mat.Dense
	gram.Mul(X.T(), X)
	for j := 1; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+1e-10)
	}
	var rhs mat.VecDense
	rhs.MulVec(X.T(), mat.NewVecDense(len(y), y))
	beta, err := solve(&gram, &rhs)
	if err != nil {
		return err
	}
	m.Intercept = beta.AtVec(0)
	m.Coef = make([]float64, p-1)
	for j := range m.Coef {
		m.Coef[j] = beta.AtVec(j + 1)
	}
	return nil
}

func (m *LinearRegression) Predict(x [][]float64) []float64 {
	output := make([]float64, len(x))
	for i, row := range x {
		output[i] = m.Intercept
		for j, v := range row {
			output[i] += m.Coef[j] * v
		}
	}
	return output
}

func (m *LinearRegression) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, linearState{Coef: m.Coef, Intercept: m.Intercept})
}

func (m *LinearRegression) Unmarshal(r io.Reader) error {
	var state linearState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.Coef, m.Intercept = state.Coef, state.Intercept
	return nil
}
