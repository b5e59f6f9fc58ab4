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

package metrics

import (
	"math"
	"sort"

	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

const (
	AUC       = "AUC"
	Accuracy  = "Acc"
	F1        = "F1"
	Precision = "Precision"
	Recall    = "Recall"
	NLL       = "NLL"
	Brier     = "Brier"
	RMSE      = "RMSE"
	MAE       = "MAE"
)

// Threshold separates positive from negative predictions. A probability equal to the
// threshold is negative.
const Threshold = 0.5

// eps clips probabilities in the log loss.
const eps = 1e-15

// Names returns metric names reported for a target type in report order.
func Names(targetType dataset.TargetType) ([]string, error) {
	switch targetType {
	case dataset.Classification:
		return []string{AUC, Accuracy, F1, Precision, Recall, NLL, Brier}, nil
	case dataset.Regression:
		return []string{RMSE, MAE}, nil
	default:
		return nil, errors.Annotatef(dataset.ErrUnknownTargetType, "target type %v", targetType)
	}
}

// LowerIsBetter reports whether smaller values of the metric are better.
func LowerIsBetter(name string) bool {
	switch name {
	case NLL, Brier, RMSE, MAE:
		return true
	default:
		return false
	}
}

// Scores is an ordered list of named metric values.
type Scores struct {
	Names  []string
	Values []float64
}

// Get returns the value of a metric.
func (s Scores) Get(name string) (float64, bool) {
	i := lo.IndexOf(s.Names, name)
	if i < 0 {
		return math.NaN(), false
	}
	return s.Values[i], true
}

func (s Scores) ZapFields() []zap.Field {
	return lo.Map(s.Names, func(name string, i int) zap.Field {
		return zap.Float64(name, s.Values[i])
	})
}

// Compute evaluates predictions. For classification yPred holds probabilities of the
// positive class, for regression it holds predicted values.
func Compute(yTrue, yPred []float64, targetType dataset.TargetType) (Scores, error) {
	names, err := Names(targetType)
	if err != nil {
		return Scores{}, err
	}
	if len(yTrue) != len(yPred) {
		return Scores{}, errors.Annotatef(dataset.ErrShapeMismatch, "%d labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Scores{}, errors.Annotate(dataset.ErrInvalidConfiguration, "no samples to evaluate")
	}
	var values []float64
	switch targetType {
	case dataset.Classification:
		labels := lo.Map(yTrue, func(y float64, _ int) bool { return dataset.IsPositive(y) })
		values = []float64{
			ROCAUC(labels, yPred),
			AccuracyScore(labels, yPred),
			F1Score(labels, yPred),
			PrecisionScore(labels, yPred),
			RecallScore(labels, yPred),
			LogLoss(labels, yPred),
			BrierScore(labels, yPred),
		}
	case dataset.Regression:
		values = []float64{
			RootMeanSquaredError(yTrue, yPred),
			MeanAbsoluteError(yTrue, yPred),
		}
	}
	return Scores{Names: names, Values: values}, nil
}

// ROCAUC is the area under the ROC curve. Tied scores count as half. It returns NaN
// when only one class is present.
func ROCAUC(labels []bool, scores []float64) float64 {
	var pos, neg []float64
	for i, positive := range labels {
		if positive {
			pos = append(pos, scores[i])
		} else {
			neg = append(neg, scores[i])
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return math.NaN()
	}
	sort.Float64s(neg)
	var sum float64
	for _, p := range pos {
		// negatives strictly below p and negatives equal to p
		below := sort.SearchFloat64s(neg, p)
		equal := sort.Search(len(neg), func(i int) bool { return neg[i] > p }) - below
		sum += float64(below) + 0.5*float64(equal)
	}
	return sum / float64(len(pos)) / float64(len(neg))
}

type confusion struct {
	tp, fp, tn, fn float64
}

func confusionMatrix(labels []bool, probs []float64) confusion {
	var c confusion
	for i, positive := range labels {
		predicted := probs[i] > Threshold
		switch {
		case positive && predicted:
			c.tp++
		case positive && !predicted:
			c.fn++
		case !positive && predicted:
			c.fp++
		default:
			c.tn++
		}
	}
	return c
}

func AccuracyScore(labels []bool, probs []float64) float64 {
	c := confusionMatrix(labels, probs)
	return (c.tp + c.tn) / float64(len(labels))
}

// PrecisionScore returns 0 when nothing is predicted positive.
func PrecisionScore(labels []bool, probs []float64) float64 {
	c := confusionMatrix(labels, probs)
	if c.tp+c.fp == 0 {
		return 0
	}
	return c.tp / (c.tp + c.fp)
}

// RecallScore returns 0 when there is no positive label.
func RecallScore(labels []bool, probs []float64) float64 {
	c := confusionMatrix(labels, probs)
	if c.tp+c.fn == 0 {
		return 0
	}
	return c.tp / (c.tp + c.fn)
}

// F1Score returns 0 when precision and recall are both 0.
func F1Score(labels []bool, probs []float64) float64 {
	c := confusionMatrix(labels, probs)
	if 2*c.tp+c.fp+c.fn == 0 {
		return 0
	}
	return 2 * c.tp / (2*c.tp + c.fp + c.fn)
}

// LogLoss is the mean negative log-likelihood with probabilities clipped to [eps, 1-eps].
func LogLoss(labels []bool, probs []float64) float64 {
	var sum float64
	for i, positive := range labels {
		p := min(max(probs[i], eps), 1-eps)
		if positive {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(labels))
}

// BrierScore is the mean squared difference between probability and outcome.
func BrierScore(labels []bool, probs []float64) float64 {
	outcomes := lo.Map(labels, func(positive bool, _ int) float64 { return lo.Ternary(positive, 1.0, 0.0) })
	distance := floats.Distance(probs, outcomes, 2)
	return distance * distance / float64(len(labels))
}

func RootMeanSquaredError(yTrue, yPred []float64) float64 {
	return floats.Distance(yTrue, yPred, 2) / math.Sqrt(float64(len(yTrue)))
}

func MeanAbsoluteError(yTrue, yPred []float64) float64 {
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue))
}
