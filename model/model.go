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

	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	ErrUnknownModelType = errors.ConstError("unknown model type")
	ErrNotFitted        = errors.ConstError("model is not fitted")
)

// ModelType identifies a downstream model family with fixed hyper-parameters.
type ModelType int

const (
	LR ModelType = iota + 1
	SmallestMLP
	MLP
	DeepishMLP
	DeepMLP
	LargestMLP
	RF
	KNN
	SVM
	XGBoost
	KDE
)

var modelTypeNames = map[ModelType]string{
	LR:          "lr",
	SmallestMLP: "smallest_mlp",
	MLP:         "mlp",
	DeepishMLP:  "deepish_mlp",
	DeepMLP:     "deep_mlp",
	LargestMLP:  "largest_mlp",
	RF:          "rf",
	KNN:         "knn",
	SVM:         "svm",
	XGBoost:     "xgboost",
	KDE:         "kde",
}

func (t ModelType) String() string {
	if name, ok := modelTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

func ParseModelType(s string) (ModelType, error) {
	for modelType, name := range modelTypeNames {
		if name == s {
			return modelType, nil
		}
	}
	return 0, errors.Annotatef(ErrUnknownModelType, "model type %q", s)
}

// ModelTypes returns every model type in declaration order.
func ModelTypes() []ModelType {
	return lo.Map(lo.Range(len(modelTypeNames)), func(i, _ int) ModelType {
		return ModelType(i + 1)
	})
}

// Estimator learns from standardized features. Classifiers return the probability of
// the positive class from Predict, regressors return predicted values.
type Estimator interface {
	Fit(ctx context.Context, x [][]float64, y []float64) error
	Predict(x [][]float64) []float64
	Marshal(w io.Writer) error
	Unmarshal(r io.Reader) error
}

// Model is a fitted or unfitted downstream model.
type Model interface {
	ModelType() ModelType
	TargetType() dataset.TargetType
	GetParams() Params
	Fit(ctx context.Context, x [][]float64, y []float64) error
	// Predict returns predicted values for regression and 0/1 labels for classification.
	Predict(x [][]float64) ([]float64, error)
	// PredictProba returns the probability of the positive class.
	PredictProba(x [][]float64) ([]float64, error)
	Marshal(w io.Writer) error
	Unmarshal(r io.Reader) error
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// binaryLabels maps targets to 0 and 1.
func binaryLabels(y []float64) []float64 {
	return lo.Map(y, func(v float64, _ int) float64 {
		if dataset.IsPositive(v) {
			return 1
		}
		return 0
	})
}

func validateTrainingSet(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return errors.Annotate(dataset.ErrInvalidConfiguration, "empty training set")
	}
	if len(x) != len(y) {
		return errors.Annotatef(dataset.ErrShapeMismatch, "%d rows but %d targets", len(x), len(y))
	}
	return nil
}
