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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorse-io/dge/cache"
	"github.com/gorse-io/dge/cmd/version"
	"github.com/gorse-io/dge/common/log"
	"github.com/gorse-io/dge/common/progress"
	"github.com/gorse-io/dge/config"
	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/experiment"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/storage/blob"
	"github.com/gorse-io/dge/storage/ledger"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "dge",
	Short: "Deep generative ensembles for model evaluation on synthetic data",
	Long: "dge trains downstream models on synthetic datasets and compares the oracle, naive " +
		"and deep generative ensemble approaches on real test data.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the version of dge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func init() {
	addPersistentFlags(rootCommand.PersistentFlags())
	for _, cmd := range []*cobra.Command{predictiveCommand, evaluateCommand, selectCommand, varyingCommand, densityCommand} {
		addDatasetFlags(cmd.Flags())
		rootCommand.AddCommand(cmd)
	}
	predictiveCommand.Flags().Bool("plot", false, "evaluate prediction surfaces of two dimensional data")
	evaluateCommand.Flags().String("relative", "", "score distance to the oracle (l1 or l2)")
	selectCommand.Flags().String("relative", "", "score distance to the oracle (l1 or l2)")
	selectCommand.Flags().String("metric", "", "metric to rank models by (default AUC or RMSE)")
	selectCommand.Flags().StringSlice("models", nil, "model types to compare (default lr, mlp, deep_mlp, rf, knn, svm, xgboost)")
	rootCommand.AddCommand(versionCommand)
}

func addPersistentFlags(flags *pflag.FlagSet) {
	log.AddFlags(flags)
	flags.Bool("debug", false, "use debug log mode")
	flags.StringP("config", "c", "", "configuration file path")
	flags.String("workspace", "", "directory of cached models")
	flags.String("results", "", "directory of figures")
	flags.Bool("no-load", false, "fit models even if they are cached")
	flags.Bool("no-save", false, "save neither models nor figures")
	flags.Int64("seed", 0, "random seed")
	flags.Int("jobs", 1, "number of ensemble members fitted concurrently")
	flags.String("cache-store", "", "URL of the model store (default the workspace directory)")
	flags.String("ledger", "", "path of the SQLite run ledger")
}

func addDatasetFlags(flags *pflag.FlagSet) {
	flags.String("real", "", "CSV file of the real dataset")
	flags.String("synthetic", "", "glob pattern of CSV files of synthetic datasets")
	flags.String("target", "target", "name of the target column")
	flags.String("target-type", dataset.Classification.String(), "target type (classification or regression)")
	flags.String("model", model.MLP.String(), "downstream model type")
	flags.String("name", "", "prefix of figures (default {real}_{model})")
	flags.Bool("latex", false, "print tables as LaTeX")
}

// loadConfig loads the configuration file and applies flags set on the command line.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, _ := flags.GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if flags.Changed("workspace") {
		cfg.Workspace.Dir, _ = flags.GetString("workspace")
	}
	if flags.Changed("results") {
		cfg.Workspace.ResultsDir, _ = flags.GetString("results")
	}
	if noLoad, _ := flags.GetBool("no-load"); noLoad {
		cfg.Workspace.Load = false
	}
	if noSave, _ := flags.GetBool("no-save"); noSave {
		cfg.Workspace.Save = false
	}
	if flags.Changed("seed") {
		cfg.Experiment.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("jobs") {
		cfg.Experiment.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("cache-store") {
		cfg.Cache.Store, _ = flags.GetString("cache-store")
	}
	if flags.Changed("ledger") {
		cfg.Ledger.Store, _ = flags.GetString("ledger")
	}
	if flags.Lookup("plot") != nil && flags.Changed("plot") {
		cfg.Experiment.Plot, _ = flags.GetBool("plot")
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDatasets loads the real dataset and synthetic datasets matched by pattern. Synthetic
// datasets are ordered by file name.
func loadDatasets(realPath, pattern, target string, targetType dataset.TargetType, cfg *config.Config) (*dataset.Dataset, []*dataset.Dataset, error) {
	if realPath == "" || pattern == "" {
		return nil, nil, errors.Annotate(dataset.ErrInvalidConfiguration, "both real and synthetic datasets are required")
	}
	opts := []dataset.Option{
		dataset.WithTrainSize(cfg.Experiment.TrainSize),
		dataset.WithSplitSeed(cfg.Experiment.Seed),
	}
	gt, err := dataset.LoadCSV(realPath, target, targetType, opts...)
	if err != nil {
		return nil, nil, err
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "pattern %s: %v", pattern, err)
	}
	if len(paths) == 0 {
		return nil, nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "no synthetic datasets match %s", pattern)
	}
	syns := make([]*dataset.Dataset, len(paths))
	for i, path := range paths {
		if syns[i], err = dataset.LoadCSV(path, target, targetType, opts...); err != nil {
			return nil, nil, err
		}
	}
	return gt, syns, nil
}

// session holds everything an experiment command needs.
type session struct {
	gt        *dataset.Dataset
	syns      []*dataset.Dataset
	modelType model.ModelType
	opts      experiment.Options
	latex     bool
	closers   []io.Closer
}

func newSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	flags := cmd.Flags()
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load config")
	}

	// load datasets
	realPath, _ := flags.GetString("real")
	pattern, _ := flags.GetString("synthetic")
	target, _ := flags.GetString("target")
	targetTypeName, _ := flags.GetString("target-type")
	targetType, err := dataset.ParseTargetType(targetTypeName)
	if err != nil {
		return nil, err
	}
	modelName, _ := flags.GetString("model")
	modelType, err := model.ParseModelType(modelName)
	if err != nil {
		return nil, err
	}
	gt, syns, err := loadDatasets(realPath, pattern, target, targetType, cfg)
	if err != nil {
		return nil, err
	}
	log.Logger().Info("load datasets",
		zap.String("real", realPath),
		zap.Int("n_real", gt.Len()),
		zap.Int("n_synthetic", len(syns)))

	s := &session{gt: gt, syns: syns, modelType: modelType}
	s.latex, _ = flags.GetBool("latex")

	// open model store
	storeURL := cfg.Cache.Store
	if storeURL == "" {
		storeURL = cfg.Workspace.Dir
	}
	store, err := blob.Open(ctx, storeURL, cfg)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open model store")
	}
	if closer, ok := store.(io.Closer); ok {
		s.closers = append(s.closers, closer)
	}
	if posix, ok := store.(*blob.POSIX); ok && (cfg.Workspace.Load || cfg.Workspace.Save) {
		if err = posix.Init(); err != nil {
			s.Close()
			return nil, errors.Annotate(err, "failed to create workspace")
		}
	}
	log.Logger().Info("open model store", zap.String("store", log.RedactURL(storeURL)))

	// open run ledger
	var database ledger.Database
	if cfg.Ledger.Store != "" {
		if database, err = ledger.Open(cfg.Ledger.Store); err != nil {
			s.Close()
			return nil, errors.Annotate(err, "failed to open ledger")
		}
		s.closers = append(s.closers, database)
		if err = database.Init(); err != nil {
			s.Close()
			return nil, errors.Annotate(err, "failed to init ledger")
		}
	}

	if s.opts, err = experiment.NewOptions(cfg, cache.New(store), database); err != nil {
		s.Close()
		return nil, err
	}
	s.opts.Name, _ = flags.GetString("name")
	if s.opts.Name == "" {
		base := strings.TrimSuffix(filepath.Base(realPath), filepath.Ext(realPath))
		s.opts.Name = fmt.Sprintf("%s_%s", base, modelType)
	}
	return s, nil
}

func (s *session) Close() {
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			log.Logger().Warn("failed to close", zap.Error(err))
		}
	}
}

// run opens a session and runs an experiment under a progress bar.
func run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) {
	tracer := progress.NewTracer("dge")
	tracer.EnableBars(os.Stderr)
	ctx, span := tracer.Start(context.Background(), cmd.Name(), 1)
	s, err := newSession(ctx, cmd)
	if err != nil {
		span.Fail(err)
		log.Logger().Fatal("failed to prepare experiment", zap.Error(err))
	}
	defer s.Close()
	if err = fn(ctx, s); err != nil {
		span.Fail(err)
		s.Close()
		log.Logger().Fatal("failed to run experiment", zap.String("experiment", cmd.Name()), zap.Error(err))
	}
	span.Add(1)
	span.End()
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
