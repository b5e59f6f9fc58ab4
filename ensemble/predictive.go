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

package ensemble

import (
	"context"
	"math"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/task"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// AggregatePredictive evaluates an approach by running the task once per synthetic
// dataset and reducing outcomes to mean and standard deviation. The training and
// evaluation sets of member i are chosen by the approach:
//
//   - Oracle: gt.Train() and gt.Test().
//   - Naive: syns[i].Train() and syns[i].Test().
//   - DGE: syns[i].Train() and the test splits of the first min(K-1, N-1) other members.
//   - DGE_alternative: like DGE, but every other member is scored separately. The
//     outcome of member i is the mean across those members and the reported standard
//     deviation is sqrt(mean(spread)^2 + std(outcome)^2), which assumes the two
//     sources of variance are independent. Members are not returned.
//
// If relative is set, outcomes of non-Oracle approaches are replaced by their distance
// to outcomes of the same model on gt.Test().
func AggregatePredictive(ctx context.Context, gt *dataset.Dataset, syns []*dataset.Dataset, t task.Task,
	approach Approach, relative Relative, opts Options) (*Result, error) {
	if err := approach.Validate(); err != nil {
		return nil, err
	}
	switch relative {
	case Absolute, RelativeL1, RelativeL2:
	default:
		return nil, errors.Annotatef(ErrUnknownRelativeMetric, "relative metric %d", int(relative))
	}
	if relative != Absolute && approach.Strategy == DGEAlternative {
		return nil, errors.Annotatef(ErrIncompatibleOptions, "relative %v with %v", relative, approach)
	}
	if err := validateMembers(syns, opts); err != nil {
		return nil, err
	}
	if gt.TargetType() != syns[0].TargetType() {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration,
			"real data is %v but synthetic data is %v", gt.TargetType(), syns[0].TargetType())
	}
	n := len(syns)
	k := approach.K
	if k <= 0 {
		k = n
	}
	nOthers := min(k-1, n-1)
	if (approach.Strategy == DGE || approach.Strategy == DGEAlternative) && nOthers < 1 {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration,
			"%v requires another member but there are %d members", approach, n)
	}
	others := func(i int) []*dataset.Dataset {
		var tests []*dataset.Dataset
		for j := 0; j < n && len(tests) < nOthers; j++ {
			if j != i {
				tests = append(tests, syns[j].Test())
			}
		}
		return tests
	}

	r := &runner{task: t, opts: opts}
	result, members, err := r.aggregate(ctx, approach.String(), n, func(ctx context.Context, i int) (memberResult, error) {
		trainSet := syns[i].Train()
		if approach.Strategy == Oracle {
			trainSet = gt.Train()
		}
		m, err := r.load(ctx, i, trainSet)
		if err != nil {
			return memberResult{}, err
		}
		var res memberResult
		switch approach.Strategy {
		case Oracle:
			res.outcome, m, err = r.run(ctx, i, gt.Test(), trainSet, m)
		case Naive:
			res.outcome, m, err = r.run(ctx, i, syns[i].Test(), trainSet, m)
		case DGE:
			var evalSet *dataset.Dataset
			if evalSet, err = dataset.Concat(others(i)...); err != nil {
				return memberResult{}, err
			}
			res.outcome, m, err = r.run(ctx, i, evalSet, trainSet, m)
		case DGEAlternative:
			outcomes := make([]task.Outcome, 0, nOthers)
			for _, evalSet := range others(i) {
				var outcome task.Outcome
				if outcome, m, err = r.run(ctx, i, evalSet, trainSet, m); err != nil {
					return memberResult{}, err
				}
				outcomes = append(outcomes, outcome)
			}
			var mean []float64
			if mean, res.spread, err = meanStd(outcomes); err != nil {
				return memberResult{}, err
			}
			res.outcome = task.Outcome{Names: outcomes[0].Names, Values: mean}
		}
		if err != nil {
			return memberResult{}, err
		}
		if relative != Absolute && approach.Strategy != Oracle {
			var oracle task.Outcome
			if oracle, m, err = r.run(ctx, i, gt.Test(), trainSet, m); err != nil {
				return memberResult{}, err
			}
			if len(oracle.Values) != len(res.outcome.Values) {
				return memberResult{}, errors.Annotatef(dataset.ErrShapeMismatch,
					"%d values on real data but %d values on synthetic data", len(oracle.Values), len(res.outcome.Values))
			}
			values := make([]float64, len(oracle.Values))
			for j := range values {
				if values[j], err = relative.distance(res.outcome.Values[j], oracle.Values[j]); err != nil {
					return memberResult{}, err
				}
			}
			res.outcome.Values = values
		}
		if err = r.save(ctx, i, trainSet, m); err != nil {
			return memberResult{}, err
		}
		res.model = m
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if approach.Strategy == DGEAlternative {
		spreads := lo.Map(members, func(member memberResult, _ int) []float64 { return member.spread })
		for j := range result.Std {
			meanSpread := lo.SumBy(spreads, func(spread []float64) float64 { return spread[j] }) / float64(len(spreads))
			result.Std[j] = math.Sqrt(meanSpread*meanSpread + result.Std[j]*result.Std[j])
		}
		result.Members = nil
	}
	return result, nil
}
