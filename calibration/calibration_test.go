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

package calibration

import (
	"math"
	"math/rand"
	"testing"

	"github.com/gorse-io/dge/dataset"
	"github.com/stretchr/testify/assert"
)

func TestCurvePerfect(t *testing.T) {
	// labels drawn with the predicted probability lie on the diagonal
	rng := rand.New(rand.NewSource(0))
	n := 200000
	yProb := make([]float64, n)
	yTrue := make([]float64, n)
	for i := range yProb {
		yProb[i] = rng.Float64()
		if rng.Float64() < yProb[i] {
			yTrue[i] = 1
		}
	}
	probTrue, probPred, err := Curve(yTrue, yProb, DefaultCalibrationBins, Uniform)
	assert.NoError(t, err)
	assert.Len(t, probTrue, 10)
	for i := range probTrue {
		assert.InDelta(t, probPred[i], probTrue[i], 0.01)
		assert.InDelta(t, 0.05+0.1*float64(i), probPred[i], 0.01)
	}

	probTrue, probPred, err = Curve(yTrue, yProb, 5, Quantile)
	assert.NoError(t, err)
	assert.Len(t, probTrue, 5)
	for i := range probTrue {
		assert.InDelta(t, probPred[i], probTrue[i], 0.01)
	}
}

func TestCurveEmptyBins(t *testing.T) {
	probTrue, probPred, err := Curve([]float64{0, 1, 1}, []float64{0.05, 0.95, 0.92}, 10, Uniform)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, probTrue)
	assert.InDeltaSlice(t, []float64{0.05, 0.935}, probPred, 1e-12)
	// values on an edge fall into the lower bin
	probTrue, probPred, err = Curve([]float64{1, 0}, []float64{0.5, 0.51}, 2, Uniform)
	assert.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, probTrue)
	assert.Equal(t, []float64{0.5, 0.51}, probPred)
}

func TestCurveErrors(t *testing.T) {
	_, _, err := Curve([]float64{1}, []float64{1.5}, 10, Uniform)
	assert.ErrorIs(t, err, dataset.ErrInvalidConfiguration)
	_, _, err = Curve([]float64{1}, []float64{0.5, 0.5}, 10, Uniform)
	assert.ErrorIs(t, err, dataset.ErrShapeMismatch)
	_, _, err = Curve([]float64{1}, []float64{0.5}, 0, Uniform)
	assert.ErrorIs(t, err, dataset.ErrInvalidConfiguration)
	_, err = ParseStrategy("kmeans")
	assert.ErrorIs(t, err, dataset.ErrInvalidConfiguration)
	strategy, err := ParseStrategy("quantile")
	assert.NoError(t, err)
	assert.Equal(t, Quantile, strategy)
}

func TestAccuracyConfidence(t *testing.T) {
	thresholds, accs, err := AccuracyConfidence(
		[]float64{1, 0, 1, 0},
		[]float64{0.99, 0.02, 0.6, 0.7},
		DefaultConfidenceBins)
	assert.NoError(t, err)
	assert.Len(t, thresholds, 20)
	assert.Equal(t, 0.5, thresholds[0])
	assert.InDelta(t, 0.95, thresholds[19], 1e-12)
	// τ = 0.5 keeps everything: 3 of 4 correct
	assert.Equal(t, 0.75, accs[0])
	// τ = 0.95 keeps 0.99 and 0.02, both correct
	assert.Equal(t, 1.0, accs[19])
}

func TestAccuracyConfidenceMonotone(t *testing.T) {
	// calibrated predictions get more accurate as confidence grows
	rng := rand.New(rand.NewSource(1))
	n := 100000
	yProb := make([]float64, n)
	yTrue := make([]float64, n)
	for i := range yProb {
		yProb[i] = rng.Float64()
		if rng.Float64() < yProb[i] {
			yTrue[i] = 1
		}
	}
	_, accs, err := AccuracyConfidence(yTrue, yProb, 10)
	assert.NoError(t, err)
	for i := 1; i < len(accs); i++ {
		assert.GreaterOrEqual(t, accs[i], accs[i-1]-0.005)
	}
	assert.Greater(t, accs[len(accs)-1], accs[0])
}

func TestAccuracyConfidenceEmpty(t *testing.T) {
	_, accs, err := AccuracyConfidence([]float64{1, 0}, []float64{0.6, 0.4}, 3)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, accs[0])
	assert.True(t, math.IsNaN(accs[2]))
	thresholds := Thresholds(1)
	assert.Equal(t, []float64{0.5}, thresholds)
}
