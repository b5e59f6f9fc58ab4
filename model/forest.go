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
	"math/rand"

	"github.com/gorse-io/dge/common/encoding"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// RandomForest averages fully grown trees fitted on bootstrap samples. For
// classification the average of leaf means is the positive class probability.
type RandomForest struct {
	Trees          []*Tree
	nEstimators    int
	maxDepth       int
	maxFeatures    int
	minSamplesLeaf int
	bootstrap      bool
	randomState    int64
}

func NewRandomForest(params Params) *RandomForest {
	return &RandomForest{
		nEstimators:    params.GetInt(NEstimators, 100),
		maxDepth:       params.GetInt(MaxDepth, 0),
		maxFeatures:    params.GetInt(MaxFeatures, 0),
		minSamplesLeaf: params.GetInt(MinSamplesLeaf, 1),
		bootstrap:      params.GetBool(Bootstrap, true),
		randomState:    params.GetInt64(RandomState, 0),
	}
}

func (m *RandomForest) Fit(ctx context.Context, x [][]float64, y []float64) error {
	rng := rand.New(rand.NewSource(m.randomState))
	n := len(x)
	maxFeatures := m.maxFeatures
	if maxFeatures < 0 {
		maxFeatures = sqrtFeatures(len(x[0]))
	}
	m.Trees = make([]*Tree, m.nEstimators)
	for t := range m.Trees {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		treeRng := rand.New(rand.NewSource(rng.Int63()))
		indices := lo.Range(n)
		if m.bootstrap {
			for i := range indices {
				indices[i] = treeRng.Intn(n)
			}
		}
		m.Trees[t] = buildCART(x, y, indices, m.maxDepth, maxFeatures, m.minSamplesLeaf, treeRng)
	}
	return nil
}

func (m *RandomForest) Predict(x [][]float64) []float64 {
	return lo.Map(x, func(row []float64, _ int) float64 {
		var sum float64
		for _, tree := range m.Trees {
			sum += tree.predict(row)
		}
		return sum / float64(len(m.Trees))
	})
}

func (m *RandomForest) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, m.Trees)
}

func (m *RandomForest) Unmarshal(r io.Reader) error {
	return encoding.ReadGob(r, &m.Trees)
}
