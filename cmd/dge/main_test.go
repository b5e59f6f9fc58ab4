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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/ensemble"
	"github.com/gorse-io/dge/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addPersistentFlags(cmd.Flags())
	addDatasetFlags(cmd.Flags())
	cmd.Flags().Bool("plot", false, "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func writeMoons(t *testing.T, path string, n int, seed int64) {
	d, err := dataset.MakeMoons(n, 0.2, seed)
	require.NoError(t, err)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, dataset.WriteCSV(f, d, "label"))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cmd := newCommand(t,
		"--workspace", dir,
		"--results", filepath.Join(dir, "results"),
		"--no-save",
		"--seed", "7",
		"--jobs", "3",
		"--cache-store", "memory://",
		"--plot")
	cfg, err := loadConfig(cmd.Flags())
	assert.NoError(t, err)
	assert.Equal(t, dir, cfg.Workspace.Dir)
	assert.Equal(t, filepath.Join(dir, "results"), cfg.Workspace.ResultsDir)
	assert.True(t, cfg.Workspace.Load)
	assert.False(t, cfg.Workspace.Save)
	assert.Equal(t, int64(7), cfg.Experiment.Seed)
	assert.Equal(t, 3, cfg.Experiment.Jobs)
	assert.Equal(t, "memory://", cfg.Cache.Store)
	assert.True(t, cfg.Experiment.Plot)

	cmd = newCommand(t, "--jobs", "0")
	_, err = loadConfig(cmd.Flags())
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}

func TestLoadDatasets(t *testing.T) {
	dir := t.TempDir()
	writeMoons(t, filepath.Join(dir, "real.csv"), 50, 0)
	for i := 0; i < 3; i++ {
		writeMoons(t, filepath.Join(dir, fmt.Sprintf("syn_%d.csv", i)), 20+i, int64(i+1))
	}
	cfg, err := loadConfig(newCommand(t).Flags())
	require.NoError(t, err)

	gt, syns, err := loadDatasets(filepath.Join(dir, "real.csv"), filepath.Join(dir, "syn_*.csv"), "label", dataset.Classification, cfg)
	assert.NoError(t, err)
	assert.Equal(t, 50, gt.Len())
	assert.Equal(t, 2, gt.Dim())
	if assert.Len(t, syns, 3) {
		for i, syn := range syns {
			assert.Equal(t, 20+i, syn.Len())
		}
	}

	_, _, err = loadDatasets(filepath.Join(dir, "real.csv"), filepath.Join(dir, "gen_*.csv"), "label", dataset.Classification, cfg)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
	_, _, err = loadDatasets("", filepath.Join(dir, "syn_*.csv"), "label", dataset.Classification, cfg)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}

func TestNewSession(t *testing.T) {
	dir := t.TempDir()
	writeMoons(t, filepath.Join(dir, "moons.csv"), 50, 0)
	writeMoons(t, filepath.Join(dir, "syn_0.csv"), 20, 1)
	cmd := newCommand(t,
		"--real", filepath.Join(dir, "moons.csv"),
		"--synthetic", filepath.Join(dir, "syn_*.csv"),
		"--target", "label",
		"--model", model.KNN.String(),
		"--workspace", filepath.Join(dir, "workspace"),
		"--results", filepath.Join(dir, "results"),
		"--ledger", filepath.Join(dir, "ledger.db"),
		"--latex")
	s, err := newSession(context.Background(), cmd)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, model.KNN, s.modelType)
	assert.Len(t, s.syns, 1)
	assert.True(t, s.latex)
	assert.Equal(t, "moons_knn", s.opts.Name)
	assert.DirExists(t, filepath.Join(dir, "workspace"))
	assert.Equal(t, filepath.Join(dir, "results"), s.opts.ResultsDir)
	assert.NotNil(t, s.opts.Cache)
	assert.NotNil(t, s.opts.Ledger)
	runs, err := s.opts.Ledger.ListRuns(context.Background(), "predictive")
	assert.NoError(t, err)
	assert.Empty(t, runs)

	cmd = newCommand(t,
		"--real", filepath.Join(dir, "moons.csv"),
		"--synthetic", filepath.Join(dir, "syn_*.csv"),
		"--target", "label",
		"--model", "gpt")
	_, err = newSession(context.Background(), cmd)
	assert.True(t, errors.Is(err, model.ErrUnknownModelType))

	// neither load nor save
	cmd = newCommand(t,
		"--real", filepath.Join(dir, "moons.csv"),
		"--synthetic", filepath.Join(dir, "syn_*.csv"),
		"--target", "label",
		"--workspace", filepath.Join(dir, "unused"),
		"--no-load", "--no-save")
	s, err = newSession(context.Background(), cmd)
	require.NoError(t, err)
	s.Close()
	assert.NoDirExists(t, filepath.Join(dir, "unused"))
}

func TestSummarizeGrids(t *testing.T) {
	table, err := summarizeGrids(map[string]*ensemble.Grid{
		"n_syn2_naive": {
			Mean: [][]float64{{0.2, 0.4}, {0.6, 0.8}},
			Std:  [][]float64{{0, 0}, {0, 0}},
		},
		"n_syn2_dge": {
			Mean: [][]float64{{0.1, 0.3}, {0.5, 0.9}},
			Std:  [][]float64{{0.1, 0.2}, {0.05, 0}},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"n_syn2_dge", "n_syn2_naive"}, table.Rows)
	assert.Equal(t, [][]float64{{0.1, 0.9, 0.2}, {0.2, 0.8, 0}}, table.Values)
}

func TestCommands(t *testing.T) {
	names := lo.Map(rootCommand.Commands(), func(cmd *cobra.Command, _ int) string { return cmd.Name() })
	assert.Subset(t, names, []string{"predictive", "evaluate", "select", "varying", "density", "version"})
	assert.NotNil(t, densityCommand.Flags().Lookup("real"))
}
