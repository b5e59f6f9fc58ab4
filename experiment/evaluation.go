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

package experiment

import (
	"context"

	"github.com/gorse-io/dge/common/log"
	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/ensemble"
	"github.com/gorse-io/dge/metrics"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/report"
	"github.com/gorse-io/dge/task"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// EvaluationApproaches are compared by model evaluation.
var EvaluationApproaches = []ensemble.Approach{
	{Strategy: ensemble.Oracle},
	{Strategy: ensemble.Naive},
	{Strategy: ensemble.DGE, K: 5},
	{Strategy: ensemble.DGE, K: 10},
	{Strategy: ensemble.DGE, K: 20},
}

// SelectionModelTypes are compared by model selection.
var SelectionModelTypes = []model.ModelType{
	model.LR,
	model.MLP,
	model.DeepMLP,
	model.RF,
	model.KNN,
	model.SVM,
	model.XGBoost,
}

// ModelEvaluation scores a model type with every approach of EvaluationApproaches.
// Rows of the returned tables are approaches and values are rounded to 3 decimals.
func ModelEvaluation(ctx context.Context, gt *dataset.Dataset, syns []*dataset.Dataset, modelType model.ModelType,
	relative ensemble.Relative, opts Options) (means, stds *report.Table, err error) {
	if means, stds, err = evaluate(ctx, gt, syns, modelType, relative, opts); err != nil {
		return nil, nil, err
	}
	if err = opts.record(ctx, "model_evaluation", means); err != nil {
		return nil, nil, err
	}
	if err = opts.record(ctx, "model_evaluation_std", stds); err != nil {
		return nil, nil, err
	}
	return means, stds, nil
}

func evaluate(ctx context.Context, gt *dataset.Dataset, syns []*dataset.Dataset, modelType model.ModelType,
	relative ensemble.Relative, opts Options) (*report.Table, *report.Table, error) {
	if err := opts.validate(gt, syns); err != nil {
		return nil, nil, err
	}
	t := task.NewTrainTestTask(modelType, opts.Seed)
	var means, stds *report.Table
	for _, approach := range EvaluationApproaches {
		log.Logger().Info("evaluate approach",
			zap.Stringer("model", modelType),
			zap.Stringer("approach", approach),
			zap.Stringer("relative", relative))
		aggOpts := opts.ensemble("", nil)
		if opts.Cache != nil {
			// one folder per approach
			aggOpts.Cache = opts.Cache.Sub(approach.String())
		}
		result, err := ensemble.AggregatePredictive(ctx, gt, syns, t, approach, relative, aggOpts)
		if err != nil {
			return nil, nil, errors.Annotatef(err, "%v of %v", approach, modelType)
		}
		if means == nil {
			means, stds = report.New(result.Names), report.New(result.Names)
		}
		if err = means.Append(approach.String(), result.Mean); err != nil {
			return nil, nil, err
		}
		if err = stds.Append(approach.String(), result.Std); err != nil {
			return nil, nil, err
		}
	}
	return means.Round(report.DefaultPrecision), stds.Round(report.DefaultPrecision), nil
}

// SelectionResult compares model types on one metric.
type SelectionResult struct {
	// Results has "mean ± std" cells with approaches as rows and model types as columns.
	Results *report.Text
	// Means holds the means followed by a rank row per approach. Columns are sorted by
	// the oracle, best first.
	Means *report.Table
}

// ModelSelection evaluates model types and ranks them on a metric by every approach.
// SelectionModelTypes are used if modelTypes is nil. Ranks are ascending for metrics
// where lower is better and for distances to the oracle.
func ModelSelection(ctx context.Context, gt *dataset.Dataset, syns []*dataset.Dataset, modelTypes []model.ModelType,
	relative ensemble.Relative, metric string, opts Options) (*SelectionResult, error) {
	if modelTypes == nil {
		modelTypes = SelectionModelTypes
	}
	names, err := metrics.Names(gt.TargetType())
	if err != nil {
		return nil, err
	}
	if !lo.Contains(names, metric) {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "metric %q is not in %v", metric, names)
	}
	columns := lo.Map(modelTypes, func(modelType model.ModelType, _ int) string { return modelType.String() })
	rows := lo.Map(EvaluationApproaches, func(approach ensemble.Approach, _ int) string { return approach.String() })
	means := &report.Table{Columns: columns, Rows: rows, Values: make([][]float64, len(rows))}
	stds := &report.Table{Columns: columns, Rows: rows, Values: make([][]float64, len(rows))}
	for i := range rows {
		means.Values[i] = make([]float64, len(columns))
		stds.Values[i] = make([]float64, len(columns))
	}
	for j, modelType := range modelTypes {
		m, s, err := evaluate(ctx, gt, syns, modelType, relative, opts)
		if err != nil {
			return nil, err
		}
		meanColumn, _ := m.Column(metric)
		stdColumn, _ := s.Column(metric)
		for i := range rows {
			means.Values[i][j] = meanColumn[i]
			stds.Values[i][j] = stdColumn[i]
		}
	}

	// sort by the oracle, best first
	oracle := ensemble.Approach{Strategy: ensemble.Oracle}.String()
	lowerIsBetter := metrics.LowerIsBetter(metric)
	if means, err = means.SortColumns(oracle, lowerIsBetter); err != nil {
		return nil, errors.Trace(err)
	}
	if stds, err = stds.Select(means.Columns); err != nil {
		return nil, errors.Trace(err)
	}
	results, err := report.WithStd(means, stds, report.DefaultPrecision)
	if err != nil {
		return nil, err
	}

	ascending, descending := means.Rank(true), means.Rank(false)
	for i, row := range rows {
		ranks := descending.Values[i]
		if lowerIsBetter || (relative != ensemble.Absolute && row != oracle) {
			ranks = ascending.Values[i]
		}
		if err = means.Append(row+" rank", ranks); err != nil {
			return nil, err
		}
	}
	if err = opts.record(ctx, "model_selection", means); err != nil {
		return nil, err
	}
	return &SelectionResult{Results: results, Means: means}, nil
}
