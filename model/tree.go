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
	"math"
	"math/rand"
	"sort"
)

// treeNode is a node of a binary decision tree. Rows with x[Feature] <= Threshold go
// to Left. Leaves have Feature < 0.
type treeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a binary decision tree stored as a flat node list rooted at index 0.
type Tree struct {
	Nodes []treeNode
}

func (t *Tree) predict(row []float64) float64 {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		if row[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Value
}

func (t *Tree) addLeaf(value float64) int {
	t.Nodes = append(t.Nodes, treeNode{Feature: -1, Left: -1, Right: -1, Value: value})
	return len(t.Nodes) - 1
}

// Depth returns the number of edges on the longest root to leaf path.
func (t *Tree) Depth() int {
	var depth func(i int) int
	depth = func(i int) int {
		if t.Nodes[i].Feature < 0 {
			return 0
		}
		return 1 + max(depth(t.Nodes[i].Left), depth(t.Nodes[i].Right))
	}
	return depth(0)
}

// sortByFeature returns a copy of indices ordered by the value of feature j.
func sortByFeature(x [][]float64, indices []int, j int) []int {
	sorted := append([]int(nil), indices...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return x[sorted[a]][j] < x[sorted[b]][j]
	})
	return sorted
}

// partition splits indices by x[feature] <= threshold.
func partition(x [][]float64, indices []int, feature int, threshold float64) (left, right []int) {
	for _, i := range indices {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return
}

// cartBuilder grows regression trees minimizing the squared error. For 0/1 targets the
// split criterion is equivalent to the Gini impurity.
type cartBuilder struct {
	x              [][]float64
	y              []float64
	maxDepth       int
	maxFeatures    int
	minSamplesLeaf int
	rng            *rand.Rand
	features       []int
	tree           *Tree
}

func buildCART(x [][]float64, y []float64, indices []int, maxDepth, maxFeatures, minSamplesLeaf int, rng *rand.Rand) *Tree {
	d := len(x[0])
	if maxFeatures <= 0 || maxFeatures > d {
		maxFeatures = d
	}
	b := &cartBuilder{
		x:              x,
		y:              y,
		maxDepth:       maxDepth,
		maxFeatures:    maxFeatures,
		minSamplesLeaf: max(minSamplesLeaf, 1),
		rng:            rng,
		features:       make([]int, d),
		tree:           &Tree{},
	}
	for j := range b.features {
		b.features[j] = j
	}
	b.grow(indices, 0)
	return b.tree
}

func (b *cartBuilder) grow(indices []int, depth int) int {
	var sum, sumSq float64
	for _, i := range indices {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(indices))
	mean := sum / n
	node := b.tree.addLeaf(mean)
	if len(indices) < 2*b.minSamplesLeaf ||
		(b.maxDepth > 0 && depth >= b.maxDepth) ||
		sumSq-sum*sum/n <= 1e-12 {
		return node
	}
	var (
		bestScore     = sum * sum / n
		bestFeature   = -1
		bestThreshold float64
	)
	// visit features in random order, draw beyond maxFeatures only while no split is found
	for visited := 0; visited < len(b.features); visited++ {
		if visited >= b.maxFeatures && bestFeature >= 0 {
			break
		}
		k := visited + b.rng.Intn(len(b.features)-visited)
		b.features[visited], b.features[k] = b.features[k], b.features[visited]
		j := b.features[visited]
		sorted := sortByFeature(b.x, indices, j)
		var sumLeft float64
		for pos := 1; pos < len(sorted); pos++ {
			sumLeft += b.y[sorted[pos-1]]
			prev, next := b.x[sorted[pos-1]][j], b.x[sorted[pos]][j]
			if next <= prev {
				continue
			}
			nLeft, nRight := float64(pos), n-float64(pos)
			if pos < b.minSamplesLeaf || len(sorted)-pos < b.minSamplesLeaf {
				continue
			}
			sumRight := sum - sumLeft
			score := sumLeft*sumLeft/nLeft + sumRight*sumRight/nRight
			if score > bestScore+1e-12 {
				bestScore = score
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

// sqrtFeatures is the number of features tried per split by random forest classifiers.
func sqrtFeatures(d int) int {
	return max(int(math.Sqrt(float64(d))), 1)
}
