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
	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
)

var hiddenLayers = map[ModelType][]int{
	SmallestMLP: {50},
	MLP:         {100},
	DeepishMLP:  {100, 100},
	DeepMLP:     {100, 100, 100},
	LargestMLP:  {500, 500, 500},
}

// DefaultParams returns the fixed hyper-parameters of a model type.
func DefaultParams(modelType ModelType, targetType dataset.TargetType) (Params, error) {
	if err := targetType.Validate(); err != nil {
		return nil, err
	}
	switch modelType {
	case LR:
		return Params{C: 1.0, NEpochs: 100, Tol: 1e-8}, nil
	case SmallestMLP, MLP, DeepishMLP, DeepMLP, LargestMLP:
		return Params{
			HiddenLayers:  hiddenLayers[modelType],
			Lr:            0.001,
			Alpha:         0.0001,
			BatchSize:     200,
			NEpochs:       200,
			Tol:           1e-4,
			NIterNoChange: 10,
		}, nil
	case RF:
		params := Params{
			NEstimators:    100,
			MaxDepth:       0,
			MinSamplesLeaf: 1,
			Bootstrap:      true,
		}
		if targetType == dataset.Classification {
			// square root of the number of features
			params[MaxFeatures] = -1
		}
		return params, nil
	case KNN:
		return Params{NNeighbors: 5}, nil
	case SVM:
		params := Params{C: 1.0, Gamma: 0.0, NEpochs: 1000, Tol: 1e-3}
		if targetType == dataset.Regression {
			params[Epsilon] = 0.1
		}
		return params, nil
	case XGBoost:
		return Params{
			NEstimators:    100,
			MaxDepth:       6,
			Lr:             0.3,
			Lambda:         1.0,
			MinChildWeight: 1.0,
		}, nil
	case KDE:
		return Params{Bandwidth: 0.0}, nil
	default:
		return nil, errors.Annotatef(ErrUnknownModelType, "model type %d", int(modelType))
	}
}

// NewModel creates an unfitted model of the given type wrapped in a standardizing
// pipeline. The seed drives every random choice made while fitting.
func NewModel(modelType ModelType, targetType dataset.TargetType, seed int64) (Model, error) {
	params, err := DefaultParams(modelType, targetType)
	if err != nil {
		return nil, err
	}
	params[RandomState] = seed
	if modelType == KDE {
		return NewKernelDensity(params, targetType), nil
	}
	var estimator Estimator
	switch modelType {
	case LR:
		if targetType == dataset.Classification {
			estimator = NewLogisticRegression(params)
		} else {
			estimator = NewLinearRegression(params)
		}
	case SmallestMLP, MLP, DeepishMLP, DeepMLP, LargestMLP:
		estimator = NewMultilayerPerceptron(params, targetType)
	case RF:
		estimator = NewRandomForest(params)
	case KNN:
		estimator = NewKNearestNeighbors(params)
	case SVM:
		estimator = NewKernelMachine(params, targetType)
	case XGBoost:
		estimator = NewGradientBoosting(params, targetType)
	}
	return &Pipeline{
		modelType:  modelType,
		targetType: targetType,
		params:     params,
		estimator:  estimator,
	}, nil
}
