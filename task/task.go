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

package task

import (
	"context"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/metrics"
	"github.com/gorse-io/dge/model"
	"github.com/juju/errors"
)

// Outcome is the result of a task on one ensemble member. Names is nil if Values is a
// prediction vector, otherwise Values[i] is the score of metric Names[i].
type Outcome struct {
	Names  []string
	Values []float64
}

// Task fits a downstream model on a training set (unless a fitted model is given) and
// evaluates it on an evaluation set.
type Task interface {
	// Name identifies the task in cache paths.
	Name() string
	// TaskType identifies the downstream model in cache paths.
	TaskType() string
	Seed() int64
	// WithSeed returns a copy of the task fitting models with another seed.
	WithSeed(seed int64) Task
	Run(ctx context.Context, evalSet, trainSet *dataset.Dataset, m model.Model) (Outcome, model.Model, error)
}

// SupervisedTask predicts the target of every row in the evaluation set. Predictions
// are values for regression and probabilities of the positive class for classification.
type SupervisedTask struct {
	ModelType  model.ModelType
	RandomSeed int64
}

func NewSupervisedTask(modelType model.ModelType, seed int64) *SupervisedTask {
	return &SupervisedTask{ModelType: modelType, RandomSeed: seed}
}

func (t *SupervisedTask) Name() string {
	return "supervised_task"
}

func (t *SupervisedTask) TaskType() string {
	return t.ModelType.String()
}

func (t *SupervisedTask) Seed() int64 {
	return t.RandomSeed
}

func (t *SupervisedTask) WithSeed(seed int64) Task {
	return &SupervisedTask{ModelType: t.ModelType, RandomSeed: seed}
}

func (t *SupervisedTask) Run(ctx context.Context, evalSet, trainSet *dataset.Dataset, m model.Model) (Outcome, model.Model, error) {
	m, err := fit(ctx, t.ModelType, t.RandomSeed, evalSet, trainSet, m)
	if err != nil {
		return Outcome{}, nil, err
	}
	x, _ := evalSet.Unpack()
	pred, err := predict(m, x)
	if err != nil {
		return Outcome{}, nil, err
	}
	return Outcome{Values: pred}, m, nil
}

// TrainTestTask scores a model on the evaluation set with the metric suite. Subset
// optionally filters the evaluation set before scoring.
type TrainTestTask struct {
	ModelType  model.ModelType
	RandomSeed int64
	Subset     func(*dataset.Dataset) *dataset.Dataset
}

func NewTrainTestTask(modelType model.ModelType, seed int64) *TrainTestTask {
	return &TrainTestTask{ModelType: modelType, RandomSeed: seed}
}

func (t *TrainTestTask) Name() string {
	return "tt_predict_performance"
}

func (t *TrainTestTask) TaskType() string {
	return t.ModelType.String()
}

func (t *TrainTestTask) Seed() int64 {
	return t.RandomSeed
}

func (t *TrainTestTask) WithSeed(seed int64) Task {
	return &TrainTestTask{ModelType: t.ModelType, RandomSeed: seed, Subset: t.Subset}
}

func (t *TrainTestTask) Run(ctx context.Context, evalSet, trainSet *dataset.Dataset, m model.Model) (Outcome, model.Model, error) {
	if t.Subset != nil {
		evalSet = t.Subset(evalSet)
	}
	m, err := fit(ctx, t.ModelType, t.RandomSeed, evalSet, trainSet, m)
	if err != nil {
		return Outcome{}, nil, err
	}
	x, y := evalSet.Unpack()
	pred, err := predict(m, x)
	if err != nil {
		return Outcome{}, nil, err
	}
	scores, err := metrics.Compute(y, pred, evalSet.TargetType())
	if err != nil {
		return Outcome{}, nil, err
	}
	return Outcome{Names: scores.Names, Values: scores.Values}, m, nil
}

// DensityTask estimates the density of training features at every row of the
// evaluation set. Targets are ignored.
type DensityTask struct {
	RandomSeed int64
}

func NewDensityTask(seed int64) *DensityTask {
	return &DensityTask{RandomSeed: seed}
}

func (t *DensityTask) Name() string {
	return "density_estimation"
}

func (t *DensityTask) TaskType() string {
	return model.KDE.String()
}

func (t *DensityTask) Seed() int64 {
	return t.RandomSeed
}

func (t *DensityTask) WithSeed(seed int64) Task {
	return &DensityTask{RandomSeed: seed}
}

func (t *DensityTask) Run(ctx context.Context, evalSet, trainSet *dataset.Dataset, m model.Model) (Outcome, model.Model, error) {
	m, err := fit(ctx, model.KDE, t.RandomSeed, evalSet, trainSet, m)
	if err != nil {
		return Outcome{}, nil, err
	}
	x, _ := evalSet.Unpack()
	density, err := m.Predict(x)
	if err != nil {
		return Outcome{}, nil, err
	}
	return Outcome{Values: density}, m, nil
}

// fit returns m if it is not nil, otherwise a new model fitted on the training set.
func fit(ctx context.Context, modelType model.ModelType, seed int64, evalSet, trainSet *dataset.Dataset, m model.Model) (model.Model, error) {
	if evalSet.TargetType() != trainSet.TargetType() {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration,
			"evaluate %v on a model trained for %v", evalSet.TargetType(), trainSet.TargetType())
	}
	if m != nil {
		if m.TargetType() != evalSet.TargetType() {
			return nil, errors.Annotatef(dataset.ErrInvalidConfiguration,
				"evaluate %v on a %v model", evalSet.TargetType(), m.TargetType())
		}
		return m, nil
	}
	m, err := model.NewModel(modelType, trainSet.TargetType(), seed)
	if err != nil {
		return nil, err
	}
	x, y := trainSet.Unpack()
	if err = m.Fit(ctx, x, y); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

func predict(m model.Model, x [][]float64) ([]float64, error) {
	if m.TargetType() == dataset.Classification {
		return m.PredictProba(x)
	}
	return m.Predict(x)
}
