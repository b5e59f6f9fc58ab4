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
	"path/filepath"

	"github.com/gorse-io/dge/cache"
	"github.com/gorse-io/dge/calibration"
	"github.com/gorse-io/dge/common/log"
	"github.com/gorse-io/dge/config"
	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/ensemble"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/plot"
	"github.com/gorse-io/dge/report"
	"github.com/gorse-io/dge/storage/ledger"
	"github.com/gorse-io/dge/task"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Options are shared by all experiments.
type Options struct {
	// Name prefixes figures, for example "moons_mlp".
	Name string
	// ResultsDir is where figures are written. It is required to save results.
	ResultsDir string
	// Cache stores fitted models. Models are always fitted if it is nil.
	Cache *cache.Cache
	Load  bool
	// Save writes models to the cache and figures to the results directory.
	Save bool
	// Plot evaluates prediction surfaces of two dimensional data.
	Plot            bool
	Jobs            int
	Seed            int64
	CalibrationBins int
	ConfidenceBins  int
	Strategy        calibration.Strategy
	GridSteps       int
	// Ledger records score tables. Tables are not recorded if it is nil.
	Ledger ledger.Database
}

func DefaultOptions() Options {
	return Options{
		Load:            true,
		Save:            true,
		Jobs:            1,
		CalibrationBins: calibration.DefaultCalibrationBins,
		ConfidenceBins:  calibration.DefaultConfidenceBins,
		Strategy:        calibration.Uniform,
		GridSteps:       ensemble.DefaultGridSteps,
	}
}

// NewOptions creates options from the configuration.
func NewOptions(cfg *config.Config, c *cache.Cache, l ledger.Database) (Options, error) {
	strategy, err := calibration.ParseStrategy(cfg.Experiment.Strategy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ResultsDir:      cfg.Workspace.ResultsDir,
		Cache:           c,
		Load:            cfg.Workspace.Load,
		Save:            cfg.Workspace.Save,
		Plot:            cfg.Experiment.Plot,
		Jobs:            cfg.Experiment.Jobs,
		Seed:            cfg.Experiment.Seed,
		CalibrationBins: cfg.Experiment.CalibrationBins,
		ConfidenceBins:  cfg.Experiment.ConfidenceBins,
		Strategy:        strategy,
		GridSteps:       cfg.Experiment.GridSteps,
		Ledger:          l,
	}, nil
}

func (opts *Options) validate(gt *dataset.Dataset, syns []*dataset.Dataset) error {
	if err := gt.TargetType().Validate(); err != nil {
		return err
	}
	if opts.Save && opts.ResultsDir == "" {
		return errors.Annotate(dataset.ErrInvalidConfiguration, "results directory is required to save results")
	}
	if len(syns) == 0 {
		return errors.Annotate(dataset.ErrInvalidConfiguration, "no synthetic datasets")
	}
	return nil
}

func (opts *Options) ensemble(filename string, models []model.Model) ensemble.Options {
	return ensemble.Options{
		Models:   models,
		Cache:    opts.Cache,
		Filename: filename,
		Load:     opts.Load,
		Save:     opts.Save,
		Jobs:     opts.Jobs,
	}
}

func (opts *Options) path(name string) string {
	return filepath.Join(opts.ResultsDir, name)
}

// surface evaluates members on a grid and saves the figures if results are saved.
func (opts *Options) surface(ctx context.Context, gt *dataset.Dataset, members []*dataset.Dataset, t task.Task, filename string, aggOpts ensemble.Options) (*ensemble.Grid, error) {
	grid, err := ensemble.AggregateGrid(ctx, gt, members, t, opts.GridSteps, aggOpts)
	if err != nil {
		return nil, errors.Annotatef(err, "grid of %s", filename)
	}
	if opts.Save {
		prefix := opts.path(fmt.Sprintf("%s_%s_%s", t.Name(), t.TaskType(), filename))
		if err = plot.Surfaces(prefix, grid, filename == "oracle"); err != nil {
			return nil, err
		}
		log.Logger().Info("save prediction surfaces", zap.String("prefix", prefix))
	}
	return grid, nil
}

// record saves a table to the ledger if there is one.
func (opts *Options) record(ctx context.Context, experiment string, table *report.Table) error {
	if opts.Ledger == nil {
		return nil
	}
	id, err := opts.Ledger.Record(ctx, experiment, table)
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("record scores", zap.String("experiment", experiment), zap.String("run_id", id))
	return nil
}
