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
	"math"
	"path/filepath"
	"testing"

	"github.com/gorse-io/dge/cache"
	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/ensemble"
	"github.com/gorse-io/dge/metrics"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/plot"
	"github.com/gorse-io/dge/storage/blob"
	"github.com/gorse-io/dge/storage/ledger"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func moons(t *testing.T, n, rows int) (*dataset.Dataset, []*dataset.Dataset) {
	gt, err := dataset.MakeMoons(100, 0.2, 100)
	assert.NoError(t, err)
	syns := lo.Times(n, func(i int) *dataset.Dataset {
		syn, err := dataset.MakeMoons(rows, 0.2, int64(i))
		assert.NoError(t, err)
		return syn
	})
	return gt, syns
}

func regression(t *testing.T, rows int, seed int64) *dataset.Dataset {
	moons, err := dataset.MakeMoons(rows, 0.1, seed)
	assert.NoError(t, err)
	x, _ := moons.Unpack()
	y := lo.Map(x, func(row []float64, _ int) float64 { return row[0] + row[1] })
	d, err := dataset.New(moons.Columns(), x, y, dataset.Regression)
	assert.NoError(t, err)
	return d
}

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.Name = "moons_knn"
	opts.ResultsDir = filepath.Join(t.TempDir(), "results")
	opts.Cache = cache.New(blob.NewMemory())
	opts.GridSteps = 5
	return opts
}

func TestPredictive(t *testing.T) {
	ctx := context.Background()
	gt, syns := moons(t, PredictiveMembers, 40)
	opts := testOptions(t)
	opts.Plot = true
	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	assert.NoError(t, err)
	assert.NoError(t, db.Init())
	defer db.Close()
	opts.Ledger = db

	result, err := Predictive(ctx, gt, syns, model.KNN, opts)
	assert.NoError(t, err)
	assert.Equal(t, []string{"DGE (k=20)", "DGE (k=10)", "DGE (k=5)", "Naive", "Oracle"}, result.Approaches)
	for _, approach := range result.Approaches {
		assert.Len(t, result.Predictions[approach], gt.Test().Len())
	}

	// scores
	names, err := metrics.Names(dataset.Classification)
	assert.NoError(t, err)
	assert.Equal(t, names, result.Scores.Columns)
	assert.Equal(t, []string{
		"DGE (k=20)", "DGE (k=10)", "DGE (k=5)", "Oracle",
		"Naive (single) median", "Naive (single) mean", "Naive (single) std", "Naive (single) min", "Naive (single) max",
		"Naive (ensemble) median", "Naive (ensemble) mean", "Naive (ensemble) std", "Naive (ensemble) min", "Naive (ensemble) max",
	}, result.Scores.Rows)
	acc, ok := result.Scores.Get("Oracle", metrics.Accuracy)
	assert.True(t, ok)
	assert.Greater(t, acc, 0.7)
	lower, _ := result.Scores.Get("Naive (single) min", metrics.Accuracy)
	upper, _ := result.Scores.Get("Naive (single) max", metrics.Accuracy)
	assert.LessOrEqual(t, lower, upper)

	// figures
	assert.Len(t, result.Calibration, 5)
	assert.Len(t, result.Confidence, 5)
	assert.FileExists(t, filepath.Join(opts.ResultsDir, "moons_knn"+plot.CalibrationSuffix))
	assert.FileExists(t, filepath.Join(opts.ResultsDir, "moons_knn"+plot.ConfidenceSuffix))
	assert.Len(t, result.Grids, 5)
	for _, filename := range []string{"DGE_k20", "DGE_k10", "DGE_k5", "naive_m0_", "oracle"} {
		assert.Contains(t, result.Grids, filename)
		assert.FileExists(t, filepath.Join(opts.ResultsDir, "supervised_task_knn_"+filename+"mean.png"))
		assert.FileExists(t, filepath.Join(opts.ResultsDir, "supervised_task_knn_"+filename+"std.png"))
	}

	// models
	names, err = opts.Cache.List(ctx, "supervised_task", "knn")
	assert.NoError(t, err)
	assert.Len(t, names, 20+10+5+20*20+20)
	runs, err := db.ListRuns(ctx, "predictive")
	assert.NoError(t, err)
	assert.Len(t, runs, 1)

	// load models
	opts.Plot = false
	opts.Ledger = nil
	loaded, err := Predictive(ctx, gt, syns, model.KNN, opts)
	assert.NoError(t, err)
	assert.Equal(t, result.Predictions, loaded.Predictions)
	assert.Empty(t, loaded.Grids)
}

func TestPredictiveRegression(t *testing.T) {
	gt := regression(t, 100, 100)
	syns := lo.Times(PredictiveMembers, func(i int) *dataset.Dataset { return regression(t, 30, int64(i)) })
	opts := testOptions(t)
	opts.Save = false
	result, err := Predictive(context.Background(), gt, syns, model.KNN, opts)
	assert.NoError(t, err)
	assert.Equal(t, []string{metrics.RMSE, metrics.MAE}, result.Scores.Columns)
	assert.Empty(t, result.Calibration)
	assert.Empty(t, result.Confidence)
	for i, row := range result.Scores.Values {
		if !lo.Contains([]string{"Naive (single) std", "Naive (ensemble) std"}, result.Scores.Rows[i]) {
			assert.GreaterOrEqual(t, row[0], row[1], result.Scores.Rows[i])
		}
	}
}

func TestPredictiveInvalid(t *testing.T) {
	ctx := context.Background()
	gt, syns := moons(t, PredictiveMembers-1, 20)
	_, err := Predictive(ctx, gt, syns, model.KNN, testOptions(t))
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))

	opts := testOptions(t)
	opts.ResultsDir = ""
	_, err = Predictive(ctx, gt, append(syns, syns[0]), model.KNN, opts)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}

func TestModelEvaluation(t *testing.T) {
	ctx := context.Background()
	gt, syns := moons(t, 5, 100)
	opts := testOptions(t)
	means, stds, err := ModelEvaluation(ctx, gt, syns, model.KNN, ensemble.Absolute, opts)
	assert.NoError(t, err)
	assert.Equal(t, []string{"Oracle", "Naive", "DGE (K=5)", "DGE (K=10)", "DGE (K=20)"}, means.Rows)
	assert.Equal(t, means.Rows, stds.Rows)
	names, err := metrics.Names(dataset.Classification)
	assert.NoError(t, err)
	assert.Equal(t, names, means.Columns)
	for i := range means.Values {
		for j := range means.Values[i] {
			if v := means.Values[i][j]; !math.IsNaN(v) {
				assert.InDelta(t, math.Round(v*1000), v*1000, 1e-6)
			}
			assert.False(t, stds.Values[i][j] < 0)
		}
	}
	// models of approaches are kept apart
	for _, folder := range means.Rows {
		objects, err := opts.Cache.Store().List(ctx, folder+"/")
		assert.NoError(t, err)
		assert.Len(t, objects, 5, folder)
	}

	relative, _, err := ModelEvaluation(ctx, gt, syns, model.KNN, ensemble.RelativeL1, opts)
	assert.NoError(t, err)
	assert.Equal(t, means.Values[0], relative.Values[0])
	for _, row := range relative.Values[1:] {
		for _, v := range row {
			assert.False(t, v < 0)
		}
	}
}

func TestModelSelection(t *testing.T) {
	ctx := context.Background()
	gt, syns := moons(t, 5, 100)
	opts := testOptions(t)
	result, err := ModelSelection(ctx, gt, syns, []model.ModelType{model.LR, model.KNN}, ensemble.Absolute, metrics.Accuracy, opts)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"lr", "knn"}, result.Means.Columns)
	assert.Equal(t, result.Means.Columns, result.Results.Columns)
	assert.Len(t, result.Results.Rows, 5)
	assert.Contains(t, result.Results.Cells[0][0], " ± ")
	assert.Len(t, result.Means.Rows, 10)
	assert.Equal(t, "Oracle rank", result.Means.Rows[5])
	// best oracle first
	assert.GreaterOrEqual(t, result.Means.Values[0][0], result.Means.Values[0][1])
	assert.Equal(t, []float64{1, 2}, result.Means.Values[5])
	for _, ranks := range result.Means.Values[5:] {
		assert.ElementsMatch(t, []float64{1, 2}, ranks)
	}

	_, err = ModelSelection(ctx, gt, syns, []model.ModelType{model.KNN}, ensemble.Absolute, metrics.RMSE, opts)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}

func TestVaryingSize(t *testing.T) {
	ctx := context.Background()
	gt, syns := moons(t, 10, 200)
	opts := testOptions(t)
	opts.Save = false
	grids, err := VaryingSize(ctx, gt, syns, model.KNN, opts)
	assert.NoError(t, err)
	assert.Len(t, grids, 15)
	for _, n := range []string{"2", "20", "200"} {
		for _, suffix := range []string{"_dge", "_dge_k=10", "_dge_k=5", "_naive", "_concat"} {
			grid, ok := grids["n_syn"+n+suffix]
			if assert.True(t, ok, n+suffix) {
				assert.Len(t, grid.Mean, 5)
			}
		}
		// a single model has no spread
		for _, row := range grids["n_syn"+n+"_naive"].Std {
			assert.Equal(t, make([]float64, 5), row)
		}
	}

	_, err = VaryingSize(ctx, gt, syns[:9], model.KNN, opts)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}

func TestDensity(t *testing.T) {
	ctx := context.Background()
	gt, syns := moons(t, 3, 50)
	opts := testOptions(t)
	grid, err := Density(ctx, gt, syns, opts)
	assert.NoError(t, err)
	assert.Len(t, grid.Models, 3)
	assert.Len(t, grid.Mean, 5)
	for r := range grid.Mean {
		for c := range grid.Mean[r] {
			assert.GreaterOrEqual(t, grid.Mean[r][c], 0.0)
			assert.GreaterOrEqual(t, grid.Std[r][c], 0.0)
		}
	}
	for _, m := range grid.Models {
		assert.Equal(t, model.KDE, m.ModelType())
	}
	names, err := opts.Cache.List(ctx, "density_estimation", "kde")
	assert.NoError(t, err)
	assert.Len(t, names, 3)
	assert.FileExists(t, filepath.Join(opts.ResultsDir, "density_estimation_kde_densitymean.png"))

	// three features
	x := [][]float64{{0, 0, 0}, {1, 1, 1}}
	wide, err := dataset.New(nil, x, []float64{0, 1}, dataset.Classification)
	assert.NoError(t, err)
	_, err = Density(ctx, wide, syns, opts)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}
