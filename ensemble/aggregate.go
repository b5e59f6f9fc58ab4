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

	"github.com/gorse-io/dge/cache"
	"github.com/gorse-io/dge/common/log"
	"github.com/gorse-io/dge/common/parallel"
	"github.com/gorse-io/dge/common/progress"
	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/task"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Options controls model reuse and scheduling of an aggregation.
type Options struct {
	// Models are fitted models of members. The cache is bypassed if they are given.
	Models []model.Model
	// Cache stores fitted models. Models are neither loaded nor saved if it is nil.
	Cache *cache.Cache
	// Filename distinguishes models of the same task in the cache.
	Filename string
	// Load models from the cache if they exist and match the training set.
	Load bool
	// Save fitted (or loaded) models to the cache.
	Save bool
	// FirstOnly evaluates member 0 only.
	FirstOnly bool
	// Jobs is the number of members evaluated concurrently.
	Jobs int
}

// Result is the reduction of member outcomes. Std is the population standard
// deviation across members.
type Result struct {
	Names   []string
	Mean    []float64
	Std     []float64
	Models  []model.Model
	Members []task.Outcome
}

// Scores returns the mean of metric name.
func (r *Result) Scores(name string) (mean, std float64, ok bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Mean[i], r.Std[i], true
		}
	}
	return 0, 0, false
}

// Aggregate runs the task for every member, training on the member and evaluating on
// evalSet, and reduces the outcomes to the elementwise mean and standard deviation.
func Aggregate(ctx context.Context, evalSet *dataset.Dataset, members []*dataset.Dataset, t task.Task, opts Options) (*Result, error) {
	if err := validateMembers(members, opts); err != nil {
		return nil, err
	}
	r := &runner{task: t, opts: opts}
	result, _, err := r.aggregate(ctx, "aggregate", len(members), func(ctx context.Context, i int) (memberResult, error) {
		m, err := r.load(ctx, i, members[i])
		if err != nil {
			return memberResult{}, err
		}
		outcome, m, err := r.run(ctx, i, evalSet, members[i], m)
		if err != nil {
			return memberResult{}, err
		}
		if err = r.save(ctx, i, members[i], m); err != nil {
			return memberResult{}, err
		}
		return memberResult{outcome: outcome, model: m}, nil
	})
	return result, err
}

func validateMembers(members []*dataset.Dataset, opts Options) error {
	if len(members) == 0 {
		return errors.Annotate(dataset.ErrInvalidConfiguration, "empty ensemble")
	}
	for i, member := range members {
		if member.TargetType() != members[0].TargetType() {
			return errors.Annotatef(dataset.ErrInvalidConfiguration,
				"member %d is %v but member 0 is %v", i, member.TargetType(), members[0].TargetType())
		}
	}
	n := len(members)
	if opts.FirstOnly {
		n = 1
	}
	if opts.Models != nil && len(opts.Models) < n {
		return errors.Annotatef(dataset.ErrInvalidConfiguration, "%d models for %d members", len(opts.Models), n)
	}
	return nil
}

type memberResult struct {
	outcome task.Outcome
	// spread is the standard deviation of the outcome across evaluation sets.
	spread []float64
	model  model.Model
}

type runner struct {
	task task.Task
	opts Options
}

// aggregate evaluates members concurrently and reduces their results.
func (r *runner) aggregate(ctx context.Context, name string, nMembers int, member func(ctx context.Context, i int) (memberResult, error)) (*Result, []memberResult, error) {
	if r.opts.FirstOnly {
		nMembers = 1
	}
	ctx, span := progress.Start(ctx, name, nMembers)
	results, err := parallel.Map(ctx, nMembers, r.opts.Jobs, func(i int) (memberResult, error) {
		result, err := member(ctx, i)
		if err != nil {
			return memberResult{}, errors.Annotatef(err, "member %d", i)
		}
		span.Add(1)
		return result, nil
	})
	if err != nil {
		span.Fail(err)
		return nil, nil, err
	}
	span.End()
	outcomes := make([]task.Outcome, len(results))
	models := make([]model.Model, len(results))
	for i, result := range results {
		outcomes[i] = result.outcome
		models[i] = result.model
	}
	mean, std, err := meanStd(outcomes)
	if err != nil {
		return nil, nil, err
	}
	return &Result{
		Names:   outcomes[0].Names,
		Mean:    mean,
		Std:     std,
		Models:  models,
		Members: outcomes,
	}, results, nil
}

func (r *runner) key(i int, trainSet *dataset.Dataset) cache.Key {
	return cache.Key{
		Task:        r.task.Name(),
		TaskType:    r.task.TaskType(),
		Filename:    r.opts.Filename,
		Index:       i,
		Fingerprint: trainSet.Fingerprint(),
	}
}

// load returns the given or cached model of member i. It returns nil if the model
// needs to be fitted.
func (r *runner) load(ctx context.Context, i int, trainSet *dataset.Dataset) (model.Model, error) {
	if r.opts.Models != nil {
		return r.opts.Models[i], nil
	}
	if r.opts.Cache == nil || !r.opts.Load {
		return nil, nil
	}
	key := r.key(i, trainSet)
	m, ok, err := r.opts.Cache.Load(ctx, key)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if ok {
		log.Logger().Debug("load model from cache", zap.String("path", key.Path()))
	} else {
		log.Logger().Debug("model not found in cache", zap.String("path", key.Path()))
	}
	return m, nil
}

// run evaluates member i with a model fitted on trainSet. The model is fitted with
// seed + i if m is nil.
func (r *runner) run(ctx context.Context, i int, evalSet, trainSet *dataset.Dataset, m model.Model) (task.Outcome, model.Model, error) {
	if m == nil {
		log.Logger().Info("fit model",
			zap.String("task", r.task.Name()),
			zap.String("model", r.task.TaskType()),
			zap.String("filename", r.opts.Filename),
			zap.Int("member", i),
			zap.Int("n_rows", trainSet.Len()))
	}
	outcome, m, err := r.task.WithSeed(r.task.Seed()+int64(i)).Run(ctx, evalSet, trainSet, m)
	if err != nil {
		return task.Outcome{}, nil, errors.Trace(err)
	}
	return outcome, m, nil
}

func (r *runner) save(ctx context.Context, i int, trainSet *dataset.Dataset, m model.Model) error {
	if r.opts.Models != nil || r.opts.Cache == nil || !r.opts.Save || m == nil {
		return nil
	}
	key := r.key(i, trainSet)
	if err := r.opts.Cache.Save(ctx, key, m); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Debug("save model to cache", zap.String("path", key.Path()))
	return nil
}

// meanStd returns the elementwise mean and population standard deviation.
func meanStd(outcomes []task.Outcome) ([]float64, []float64, error) {
	d := len(outcomes[0].Values)
	for i, outcome := range outcomes {
		if len(outcome.Values) != d {
			return nil, nil, errors.Annotatef(dataset.ErrShapeMismatch,
				"member %d has %d values but member 0 has %d", i, len(outcome.Values), d)
		}
	}
	mean := make([]float64, d)
	std := make([]float64, d)
	column := make([]float64, len(outcomes))
	for j := 0; j < d; j++ {
		for i, outcome := range outcomes {
			column[i] = outcome.Values[j]
		}
		if allEqual(column) {
			// summation error would move the mean of identical values
			mean[j], std[j] = column[0], 0
		} else {
			mean[j], std[j] = stat.PopMeanStdDev(column, nil)
		}
	}
	return mean, std, nil
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
