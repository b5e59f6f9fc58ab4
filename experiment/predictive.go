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
	"fmt"

	"github.com/gorse-io/dge/calibration"
	"github.com/gorse-io/dge/common/log"
	"github.com/gorse-io/dge/common/progress"
	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/ensemble"
	"github.com/gorse-io/dge/metrics"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/plot"
	"github.com/gorse-io/dge/report"
	"github.com/gorse-io/dge/task"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	PredictiveMembers = 20

	NaiveSingle   = "Naive (single)"
	NaiveEnsemble = "Naive (ensemble)"
)

// PredictiveResult holds predictions on the real test split by approach.
type PredictiveResult struct {
	// Approaches lists approaches in evaluation order.
	Approaches  []string
	Predictions map[string][]float64
	// Scores has a row per approach except "Naive", followed by summaries of naive
	// baselines across synthetic datasets.
	Scores      *report.Table
	Calibration []plot.Curve
	Confidence  []plot.Curve
	// Grids are prediction surfaces by cache filename.
	Grids map[string]*ensemble.Grid
}

func (r *PredictiveResult) add(approach string, pred []float64) {
	r.Approaches = append(r.Approaches, approach)
	r.Predictions[approach] = pred
}

// Predictive compares predictions of DGE (K = 20, 10, 5), naive baselines and an oracle
// ensemble trained on real data. There must be exactly 20 synthetic datasets.
func Predictive(ctx context.Context, gt *dataset.Dataset, syns []*dataset.Dataset, modelType model.ModelType, opts Options) (*PredictiveResult, error) {
	if err := opts.validate(gt, syns); err != nil {
		return nil, err
	}
	if len(syns) != PredictiveMembers {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration,
			"%d synthetic datasets are required but got %d", PredictiveMembers, len(syns))
	}
	testSet := gt.Test()
	plotGrid := opts.Plot && gt.Dim() == 2
	t := task.NewSupervisedTask(modelType, opts.Seed)
	result := &PredictiveResult{
		Predictions: make(map[string][]float64),
		Grids:       make(map[string]*ensemble.Grid),
	}
	ctx, span := progress.Start(ctx, "predictive", 4+2*len(syns))
	fail := func(err error) (*PredictiveResult, error) {
		span.Fail(err)
		return nil, err
	}

	// DGE
	for _, k := range []int{20, 10, 5} {
		filename := fmt.Sprintf("DGE_k%d", k)
		res, err := ensemble.Aggregate(ctx, testSet, syns[:k], t, opts.ensemble(filename, nil))
		if err != nil {
			return fail(errors.Annotatef(err, "DGE (k=%d)", k))
		}
		if plotGrid {
			if result.Grids[filename], err = opts.surface(ctx, gt, syns[:k], t, filename, opts.ensemble(filename, res.Models)); err != nil {
				return fail(err)
			}
		}
		result.add(fmt.Sprintf("DGE (k=%d)", k), res.Mean)
		span.Add(1)
	}

	// Naive: a single model, or an ensemble of models trained on the same dataset
	naive := make(map[string][][]float64)
	for _, approach := range []string{NaiveSingle, NaiveEnsemble} {
		for i := range syns {
			members := []*dataset.Dataset{syns[i]}
			if approach == NaiveEnsemble {
				members = lo.RepeatBy(len(syns), func(int) *dataset.Dataset { return syns[i] })
			}
			filename := fmt.Sprintf("naive_m%d_", i)
			res, err := ensemble.Aggregate(ctx, testSet, members, t, opts.ensemble(filename, nil))
			if err != nil {
				return fail(errors.Annotatef(err, "%s %d", approach, i))
			}
			if i == 0 && approach == NaiveEnsemble {
				if plotGrid {
					if result.Grids[filename], err = opts.surface(ctx, gt, members, t, filename, opts.ensemble(filename, res.Models)); err != nil {
						return fail(err)
					}
				}
				result.add("Naive", res.Mean)
			}
			naive[approach] = append(naive[approach], res.Mean)
			span.Add(1)
		}
	}

	// Oracle ensemble
	oracle := lo.RepeatBy(len(syns), func(int) *dataset.Dataset { return gt.Train() })
	res, err := ensemble.Aggregate(ctx, testSet, oracle, t, opts.ensemble("oracle", nil))
	if err != nil {
		return fail(errors.Annotate(err, "Oracle"))
	}
	if plotGrid {
		if result.Grids["oracle"], err = opts.surface(ctx, gt, oracle, t, "oracle", opts.ensemble("oracle", res.Models)); err != nil {
			return fail(err)
		}
	}
	result.add("Oracle", res.Mean)
	span.Add(1)

	_, yTrue := testSet.Unpack()
	if gt.TargetType() == dataset.Classification {
		if err = result.curves(yTrue, opts); err != nil {
			return fail(err)
		}
		if opts.Save {
			if err = plot.CalibrationCurves(opts.path(opts.Name+plot.CalibrationSuffix), result.Calibration); err != nil {
				return fail(err)
			}
			if err = plot.ConfidenceCurves(opts.path(opts.Name+plot.ConfidenceSuffix), result.Confidence); err != nil {
				return fail(err)
			}
		}
	}

	// scores
	rows := lo.Without(result.Approaches, "Naive")
	scores := make([]metrics.Scores, len(rows))
	for i, row := range rows {
		if scores[i], err = metrics.Compute(yTrue, result.Predictions[row], gt.TargetType()); err != nil {
			return fail(errors.Annotatef(err, "score %s", row))
		}
	}
	if result.Scores, err = report.FromScores(rows, scores); err != nil {
		return fail(err)
	}
	for _, approach := range []string{NaiveSingle, NaiveEnsemble} {
		values := make([][]float64, len(naive[approach]))
		for i, pred := range naive[approach] {
			s, err := metrics.Compute(yTrue, pred, gt.TargetType())
			if err != nil {
				return fail(errors.Annotatef(err, "score %s %d", approach, i))
			}
			values[i] = s.Values
		}
		if err = result.Scores.Summary(approach, values); err != nil {
			return fail(err)
		}
	}
	if err = opts.record(ctx, "predictive", result.Scores); err != nil {
		return fail(err)
	}
	span.End()
	log.Logger().Info("complete predictive experiment", zap.String("name", opts.Name), zap.Stringer("model", modelType))
	return result, nil
}

func (r *PredictiveResult) curves(yTrue []float64, opts Options) error {
	for _, approach := range r.Approaches {
		probTrue, probPred, err := calibration.Curve(yTrue, r.Predictions[approach], opts.CalibrationBins, opts.Strategy)
		if err != nil {
			return errors.Annotatef(err, "calibration of %s", approach)
		}
		r.Calibration = append(r.Calibration, plot.Curve{Name: approach, X: probPred, Y: probTrue})
		thresholds, accs, err := calibration.AccuracyConfidence(yTrue, r.Predictions[approach], opts.ConfidenceBins)
		if err != nil {
			return errors.Annotatef(err, "confidence of %s", approach)
		}
		r.Confidence = append(r.Confidence, plot.Curve{Name: approach, X: thresholds, Y: accs})
	}
	return nil
}
