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

package main

import (
	"context"
	"os"
	"sort"

	"github.com/gorse-io/dge/common/log"
	"github.com/gorse-io/dge/ensemble"
	"github.com/gorse-io/dge/experiment"
	"github.com/gorse-io/dge/metrics"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/report"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

var predictiveCommand = &cobra.Command{
	Use:   "predictive",
	Short: "Compare predictions of DGE, naive and oracle ensembles",
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, func(ctx context.Context, s *session) error {
			result, err := experiment.Predictive(ctx, s.gt, s.syns, s.modelType, s.opts)
			if err != nil {
				return err
			}
			log.Logger().Info("complete predictive experiment",
				zap.Strings("approaches", result.Approaches),
				zap.Int("grids", len(result.Grids)))
			return s.print(result.Scores.Text(report.DefaultPrecision))
		})
	},
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Estimate downstream model performance by each approach",
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, func(ctx context.Context, s *session) error {
			relativeName, _ := cmd.Flags().GetString("relative")
			relative, err := ensemble.ParseRelative(relativeName)
			if err != nil {
				return err
			}
			means, stds, err := experiment.ModelEvaluation(ctx, s.gt, s.syns, s.modelType, relative, s.opts)
			if err != nil {
				return err
			}
			text, err := report.WithStd(means, stds, report.DefaultPrecision)
			if err != nil {
				return err
			}
			return s.print(text)
		})
	},
}

var selectCommand = &cobra.Command{
	Use:   "select",
	Short: "Rank downstream model types by each approach",
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, func(ctx context.Context, s *session) error {
			relativeName, _ := cmd.Flags().GetString("relative")
			relative, err := ensemble.ParseRelative(relativeName)
			if err != nil {
				return err
			}
			metric, _ := cmd.Flags().GetString("metric")
			if metric == "" {
				names, err := metrics.Names(s.gt.TargetType())
				if err != nil {
					return err
				}
				metric = names[0]
			}
			modelNames, _ := cmd.Flags().GetStringSlice("models")
			var modelTypes []model.ModelType
			for _, name := range modelNames {
				modelType, err := model.ParseModelType(name)
				if err != nil {
					return err
				}
				modelTypes = append(modelTypes, modelType)
			}
			result, err := experiment.ModelSelection(ctx, s.gt, s.syns, modelTypes, relative, metric, s.opts)
			if err != nil {
				return err
			}
			log.Logger().Info("complete model selection",
				zap.String("metric", metric),
				zap.Strings("ranking", result.Means.Columns))
			return s.print(result.Results)
		})
	},
}

var varyingCommand = &cobra.Command{
	Use:   "varying",
	Short: "Compare prediction surfaces of truncated synthetic datasets",
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, func(ctx context.Context, s *session) error {
			grids, err := experiment.VaryingSize(ctx, s.gt, s.syns, s.modelType, s.opts)
			if err != nil {
				return err
			}
			table, err := summarizeGrids(grids)
			if err != nil {
				return err
			}
			return s.print(table.Text(report.DefaultPrecision))
		})
	},
}

var densityCommand = &cobra.Command{
	Use:   "density",
	Short: "Estimate densities of synthetic datasets on a grid",
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, func(ctx context.Context, s *session) error {
			grid, err := experiment.Density(ctx, s.gt, s.syns, s.opts)
			if err != nil {
				return err
			}
			table, err := summarizeGrids(map[string]*ensemble.Grid{"density": grid})
			if err != nil {
				return err
			}
			return s.print(table.Text(report.DefaultPrecision))
		})
	},
}

// summarizeGrids returns the range of mean surfaces and the largest std of every grid,
// ordered by name.
func summarizeGrids(grids map[string]*ensemble.Grid) (*report.Table, error) {
	names := lo.Keys(grids)
	sort.Strings(names)
	table := report.New([]string{"mean min", "mean max", "std max"})
	for _, name := range names {
		mean, std := lo.Flatten(grids[name].Mean), lo.Flatten(grids[name].Std)
		if err := table.Append(name, []float64{floats.Min(mean), floats.Max(mean), floats.Max(std)}); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// print writes a table to stdout, either as a text table or LaTeX.
func (s *session) print(text *report.Text) error {
	if s.latex {
		return errors.Trace(text.LaTeX(os.Stdout))
	}
	return errors.Trace(text.Render(os.Stdout))
}
