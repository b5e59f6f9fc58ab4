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
	"gonum.org/v1/gonum/mat"
)

type denseLayer struct {
	W *mat.Dense // in x out
	B []float64
}

// MultilayerPerceptron is a fully connected network with ReLU hidden layers trained by
// Adam on mini-batches. Classification uses a logistic output with log loss and
// regression uses an identity output with squared loss.
type MultilayerPerceptron struct {
	layers      []denseLayer
	hidden      []int
	targetType  dataset.TargetType
	lr          float64
	alpha       float64
	batchSize   int
	maxIter     int
	tol         float64
	nIterNoStop int
	randomState int64
	optimizer   *adam
	BestLoss    float64
	NIterations int
	LossCurve   []float64
}

func NewMultilayerPerceptron(params Params, targetType dataset.TargetType) *MultilayerPerceptron {
	return &MultilayerPerceptron{
		hidden:      params.GetInts(HiddenLayers, []int{100}),
		targetType:  targetType,
		lr:          params.GetFloat64(Lr, 0.001),
		alpha:       params.GetFloat64(Alpha, 0.0001),
		batchSize:   params.GetInt(BatchSize, 200),
		maxIter:     params.GetInt(NEpochs, 200),
		tol:         params.GetFloat64(Tol, 1e-4),
		nIterNoStop: params.GetInt(NIterNoChange, 10),
		randomState: params.GetInt64(RandomState, 0),
	}
}

func (m *MultilayerPerceptron) init(nFeatures int, rng *rand.Rand) {
	sizes := append(append([]int{nFeatures}, m.hidden...), 1)
	m.layers = make([]denseLayer, len(sizes)-1)
	for l := range m.layers {
		in, out := sizes[l], sizes[l+1]
		// Glorot uniform initialization
		bound := math.Sqrt(6 / float64(in+out))
		w := make([]float64, in*out)
		for i := range w {
			w[i] = (2*rng.Float64() - 1) * bound
		}
		b := make([]float64, out)
		for i := range b {
			b[i] = (2*rng.Float64() - 1) * bound
		}
		m.layers[l] = denseLayer{W: mat.NewDense(in, out, w), B: b}
	}
	var params [][]float64
	for _, layer := range m.layers {
		params = append(params, layer.W.RawMatrix().Data, layer.B)
	}
	m.optimizer = newAdam(params, m.lr)
}

// forward returns activations of every layer. activations[0] is the input batch and
// the last element holds raw outputs before the output activation.
func (m *MultilayerPerceptron) forward(input *mat.Dense) []*mat.Dense {
	activations := []*mat.Dense{input}
	for l, layer := range m.layers {
		var z mat.Dense
		z.Mul(activations[l], layer.W)
		rows, cols := z.Dims()
		raw := z.RawMatrix()
		for i := 0; i < rows; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+cols]
			for j := range row {
				row[j] += layer.B[j]
				if l < len(m.layers)-1 && row[j] < 0 {
					row[j] = 0
				}
			}
		}
		activations = append(activations, &z)
	}
	return activations
}

func (m *MultilayerPerceptron) output(z float64) float64 {
	if m.targetType == dataset.Classification {
		return sigmoid(z)
	}
	return z
}

func (m *MultilayerPerceptron) loss(pred, y float64) float64 {
	if m.targetType == dataset.Classification {
		p := min(max(pred, 1e-15), 1-1e-15)
		return -(y*math.Log(p) + (1-y)*math.Log(1-p))
	}
	return (pred - y) * (pred - y) / 2
}

// step runs forward and backward passes on a batch, updates weights and returns the
// penalized batch loss.
func (m *MultilayerPerceptron) step(batchX *mat.Dense, batchY []float64) float64 {
	n := float64(len(batchY))
	activations := m.forward(batchX)
	outputs := activations[len(activations)-1]
	// output delta is (prediction - target) for both losses
	delta := mat.NewDense(len(batchY), 1, nil)
	var loss float64
	for i, y := range batchY {
		pred := m.output(outputs.At(i, 0))
		loss += m.loss(pred, y)
		delta.Set(i, 0, pred-y)
	}
	loss /= n
	var penalty float64
	for _, layer := range m.layers {
		for _, w := range layer.W.RawMatrix().Data {
			penalty += w * w
		}
	}
	loss += 0.5 * m.alpha * penalty / n
	// backward
	grads := make([][]float64, 0, 2*len(m.layers))
	for l := len(m.layers) - 1; l >= 0; l-- {
		layer := m.layers[l]
		var gradW mat.Dense
		gradW.Mul(activations[l].T(), delta)
		gradW.Scale(1/n, &gradW)
		gradW.Add(&gradW, scaled(layer.W, m.alpha/n))
		rows, cols := delta.Dims()
		gradB := make([]float64, cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				gradB[j] += delta.At(i, j) / n
			}
		}
		grads = append(grads, gradB, gradW.RawMatrix().Data)
		if l > 0 {
			var prev mat.Dense
			prev.Mul(delta, layer.W.T())
			// derivative of ReLU
			prev.Apply(func(i, j int, v float64) float64 {
				if activations[l].At(i, j) <= 0 {
					return 0
				}
				return v
			}, &prev)
			delta = &prev
		}
	}
	// gradients were collected from the last layer backwards
	for i, j := 0, len(grads)-1; i < j; i, j = i+1, j-1 {
		grads[i], grads[j] = grads[j], grads[i]
	}
	m.optimizer.step(grads)
	return loss
}

func scaled(a *mat.Dense, s float64) *mat.Dense {
	var b mat.Dense
	b.Scale(s, a)
	return &b
}

func (m *MultilayerPerceptron) Fit(ctx context.Context, x [][]float64, y []float64) error {
	rng := rand.New(rand.NewSource(m.randomState))
	n, d := len(x), len(x[0])
	m.init(d, rng)
	batchSize := min(m.batchSize, n)
	indices := rng.Perm(n)
	m.BestLoss = math.Inf(1)
	m.LossCurve = m.LossCurve[:0]
	noImprovement := 0
	for epoch := 0; epoch < m.maxIter; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		var epochLoss float64
		for begin := 0; begin < n; begin += batchSize {
			end := min(begin+batchSize, n)
			batchX := mat.NewDense(end-begin, d, nil)
			batchY := make([]float64, end-begin)
			for i, index := range indices[begin:end] {
				batchX.SetRow(i, x[index])
				batchY[i] = y[index]
			}
			epochLoss += m.step(batchX, batchY) * float64(end-begin)
		}
		epochLoss /= float64(n)
		m.LossCurve = append(m.LossCurve, epochLoss)
		m.NIterations = epoch + 1
		if epochLoss > m.BestLoss-m.tol {
			noImprovement++
		} else {
			noImprovement = 0
		}
		if epochLoss < m.BestLoss {
			m.BestLoss = epochLoss
		}
		if noImprovement > m.nIterNoStop {
			break
		}
	}
	return nil
}

func (m *MultilayerPerceptron) Predict(x [][]float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}
	input := mat.NewDense(len(x), len(x[0]), nil)
	for i, row := range x {
		input.SetRow(i, row)
	}
	activations := m.forward(input)
	outputs := activations[len(activations)-1]
	predictions := make([]float64, len(x))
	for i := range predictions {
		predictions[i] = m.output(outputs.At(i, 0))
	}
	return predictions
}

type layerState struct {
	In, Out int
	W, B    []float64
}

type mlpState struct {
	Layers      []layerState
	BestLoss    float64
	NIterations int
}

func (m *MultilayerPerceptron) Marshal(w io.Writer) error {
	state := mlpState{BestLoss: m.BestLoss, NIterations: m.NIterations}
	for _, layer := range m.layers {
		in, out := layer.W.Dims()
		state.Layers = append(state.Layers, layerState{
			In:  in,
			Out: out,
			W:   layer.W.RawMatrix().Data,
			B:   layer.B,
		})
	}
	return encoding.WriteGob(w, state)
}

func (m *MultilayerPerceptron) Unmarshal(r io.Reader) error {
	var state mlpState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.layers = make([]denseLayer, len(state.Layers))
	for l, layer := range state.Layers {
		m.layers[l] = denseLayer{W: mat.NewDense(layer.In, layer.Out, layer.W), B: layer.B}
	}
	m.BestLoss, m.NIterations = state.BestLoss, state.NIterations
	return nil
}

// adam updates flat parameter slices in place.
type adam struct {
	params [][]float64
	alpha  float64
	beta1  float64
	beta2  float64
	eps    float64
	ms, vs [][]float64
	t      float64
}

func newAdam(params [][]float64, alpha float64) *adam {
	a := &adam{
		params: params,
		alpha:  alpha,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
	}
	for _, p := range params {
		a.ms = append(a.ms, make([]float64, len(p)))
		a.vs = append(a.vs, make([]float64, len(p)))
	}
	return a
}

func (a *adam) step(grads [][]float64) {
	a.t++
	fix1 := 1 - math.Pow(a.beta1, a.t)
	fix2 := 1 - math.Pow(a.beta2, a.t)
	lr := a.alpha * math.Sqrt(fix2) / fix1
	for k, p := range a.params {
		m, v, g := a.ms[k], a.vs[k], grads[k]
		for i := range p {
			m[i] += (1 - a.beta1) * (g[i] - m[i])
			v[i] += (1 - a.beta2) * (g[i]*g[i] - v[i])
			p[i] -= lr * m[i] / (math.Sqrt(v[i]) + a.eps)
		}
	}
}
