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
	"sort"

	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultCalibrationBins = 10
	DefaultConfidenceBins  = 20
)

// Strategy decides bin edges of a calibration curve.
type Strategy int

const (
	// Uniform bins have equal width in [0, 1].
	Uniform Strategy = iota
	// Quantile bins hold roughly the same number of predictions.
	Quantile
)

func (s Strategy) String() string {
	switch s {
	case Uniform:
		return "uniform"
	case Quantile:
		return "quantile"
	default:
		return "unknown"
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "uniform":
		return Uniform, nil
	case "quantile":
		return Quantile, nil
	default:
		return 0, errors.Annotatef(dataset.ErrInvalidConfiguration, "unknown calibration strategy %q", s)
	}
}

func validate(yTrue, yProb []float64, nBins int) error {
	if len(yTrue) != len(yProb) {
		return errors.Annotatef(dataset.ErrShapeMismatch, "%d labels but %d probabilities", len(yTrue), len(yProb))
	}
	if nBins < 1 {
		return errors.Annotatef(dataset.ErrInvalidConfiguration, "number of bins must be positive, got %d", nBins)
	}
	return nil
}

// Curve bins predicted probabilities and returns, for every non-empty bin, the fraction
// of positives and the mean predicted probability. Empty bins are skipped.
func Curve(yTrue, yProb []float64, nBins int, strategy Strategy) (probTrue, probPred []float64, err error) {
	if err = validate(yTrue, yProb, nBins); err != nil {
		return nil, nil, err
	}
	if lo.SomeBy(yProb, func(p float64) bool { return p < 0 || p > 1 || math.IsNaN(p) }) {
		return nil, nil, errors.Annotate(dataset.ErrInvalidConfiguration, "probabilities must be in [0, 1]")
	}
	var edges []float64
	switch strategy {
	case Uniform:
		edges = floats.Span(make([]float64, nBins+1), 0, 1)
	case Quantile:
		sorted := append([]float64(nil), yProb...)
		sort.Float64s(sorted)
		edges = make([]float64, nBins+1)
		for i := range edges {
			edges[i] = stat.Quantile(float64(i)/float64(nBins), stat.LinInterp, sorted, nil)
		}
	default:
		return nil, nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "unknown calibration strategy %d", strategy)
	}
	// interior edges decide the bin, values on an edge fall into the lower bin
	interior := edges[1:nBins]
	binTrue := make([]float64, nBins)
	binSum := make([]float64, nBins)
	binTotal := make([]float64, nBins)
	for i, p := range yProb {
		bin := sort.SearchFloat64s(interior, p)
		binSum[bin] += p
		binTotal[bin]++
		if dataset.IsPositive(yTrue[i]) {
			binTrue[bin]++
		}
	}
	for bin := range binTotal {
		if binTotal[bin] == 0 {
			continue
		}
		probTrue = append(probTrue, binTrue[bin]/binTotal[bin])
		probPred = append(probPred, binSum[bin]/binTotal[bin])
	}
	return probTrue, probPred, nil
}

// Thresholds returns nBins confidence thresholds evenly spaced in [0.5, 0.95].
func Thresholds(nBins int) []float64 {
	if nBins == 1 {
		return []float64{0.5}
	}
	return floats.Span(make([]float64, nBins), 0.5, 0.95)
}

// AccuracyConfidence computes, for every threshold τ, the accuracy of hard predictions
// (p > 0.5) on examples with p > τ or p < 1-τ. The accuracy is NaN when no example is
// that confident.
func AccuracyConfidence(yTrue, yProb []float64, nBins int) (thresholds, accs []float64, err error) {
	if err = validate(yTrue, yProb, nBins); err != nil {
		return nil, nil, err
	}
	thresholds = Thresholds(nBins)
	accs = make([]float64, nBins)
	for i, threshold := range thresholds {
		var selected, correct int
		for j, p := range yProb {
			if p > threshold || p < 1-threshold {
				selected++
				if (p > 0.5) == dataset.IsPositive(yTrue[j]) {
					correct++
				}
			}
		}
		if selected == 0 {
			accs[i] = math.NaN()
		} else {
			accs[i] = float64(correct) / float64(selected)
		}
	}
	return thresholds, accs, nil
}
