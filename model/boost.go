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
)

// GradientBoosting is a second order gradient boosted tree ensemble with exact greedy
// splits. Classification boosts the logistic loss starting from a 0.5 base score,
// regression boosts the squared loss starting from the target mean.
type GradientBoosting struct {
	Trees          []*Tree
	BaseScore      float64
	targetType     dataset.TargetType
	nEstimators    int
	maxDepth       int
	eta            float64
	lambda         float64
	minChildWeight float64
}

func NewGradientBoosting(params Params, targetType dataset.TargetType) *GradientBoosting {
	return &GradientBoosting{
		targetType:     targetType,
		nEstimators:    params.GetInt(NEstimators, 100),
		maxDepth:       params.GetInt(MaxDepth, 6),
		eta:            params.GetFloat64(Lr, 0.3),
		lambda:         params.GetFloat64(Lambda, 1),
		minChildWeight: params.GetFloat64(MinChildWeight, 1),
	}
}

func (m *GradientBoosting) Fit(ctx context.Context, x [][]float64, y []float64) error {
	n := len(x)
	if m.targetType == dataset.Regression {
		m.BaseScore = lo.Sum(y) / float64(n)
	} else {
		m.BaseScore = 0
	}
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = m.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	indices := lo.Range(n)
	m.Trees = make([]*Tree, 0, m.nEstimators)
	for round := 0; round < m.nEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		for i := range margin {
			if m.targetType == dataset.Classification {
				p := sigmoid(margin[i])
				grad[i] = p - y[i]
				hess[i] = max(p*(1-p), 1e-16)
			} else {
				grad[i] = margin[i] - y[i]
				hess[i] = 1
			}
		}
		b := &boostBuilder{x: x, grad: grad, hess: hess, maxDepth: m.maxDepth, eta: m.eta,
			lambda: m.lambda, minChildWeight: m.minChildWeight, tree: &Tree{}}
		b.grow(indices, 0)
		for i := range margin {
			margin[i] += b.tree.predict(x[i])
		}
		m.Trees = append(m.Trees, b.tree)
	}
	return nil
}

func (m *GradientBoosting) Predict(x [][]float64) []float64 {
	return lo.Map(x, func(row []float64, _ int) float64 {
		margin := m.BaseScore
		for _, tree := range m.Trees {
			margin += tree.predict(row)
		}
		if m.targetType == dataset.Classification {
			return sigmoid(margin)
		}
		return margin
	})
}

type boostState struct {
	Trees     []*Tree
	BaseScore float64
}

func (m *GradientBoosting) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, boostState{Trees: m.Trees, BaseScore: m.BaseScore})
}

func (m *GradientBoosting) Unmarshal(r io.Reader) error {
	var state boostState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.Trees, m.BaseScore = state.Trees, state.BaseScore
	return nil
}

type boostBuilder struct {
	x              [][]float64
	grad, hess     []float64
	maxDepth       int
	eta            float64
	lambda         float64
	minChildWeight float64
	tree           *Tree
}

func (b *boostBuilder) grow(indices []int, depth int) int {
	var g, h float64
	for _, i := range indices {
		g += b.grad[i]
		h += b.hess[i]
	}
	node := b.tree.addLeaf(-g / (h + b.lambda) * b.eta)
	if depth >= b.maxDepth || len(indices) < 2 {
		return node
	}
	var (
		bestGain      float64
		bestFeature   = -1
		bestThreshold float64
	)
	parent := g * g / (h + b.lambda)
	for j := range b.x[0] {
		sorted := sortByFeature(b.x, indices, j)
		var gLeft, hLeft float64
		for pos := 1; pos < len(sorted); pos++ {
			gLeft += b.grad[sorted[pos-1]]
			hLeft += b.hess[sorted[pos-1]]
			prev, next := b.x[sorted[pos-1]][j], b.x[sorted[pos]][j]
			if next <= prev {
				continue
			}
			gRight, hRight := g-gLeft, h-hLeft
			if hLeft < b.minChildWeight || hRight < b.minChildWeight {
				continue
			}
			gain := 0.5 * (gLeft*gLeft/(hLeft+b.lambda) + gRight*gRight/(hRight+b.lambda) - parent)
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = j
				bestThreshold = prev + (next-prev)/2
				if bestThreshold >= next {
					bestThreshold = prev
				}
			}
		}
	}
	if bestFeature < 0 {
		return node
	}
	left, right := partition(b.x, indices, bestFeature, bestThreshold)
	leftNode := b.grow(left, depth+1)
	rightNode := b.grow(right, depth+1)
	b.tree.Nodes[node].Feature = bestFeature
	b.tree.Nodes[node].Threshold = bestThreshold
	b.tree.Nodes[node].Left = leftNode
	b.tree.Nodes[node].Right = rightNode
	return node
}
