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

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for experiments.
type Config struct {
	Workspace  WorkspaceConfig  `mapstructure:"workspace"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
	S3         S3Config         `mapstructure:"s3"`
	GCS        GCSConfig        `mapstructure:"gcs"`
	Azure      AzureConfig      `mapstructure:"azure"`
}

type WorkspaceConfig struct {
	Dir        string `mapstructure:"dir" validate:"required"`
	ResultsDir string `mapstructure:"results_dir"`
	Load       bool   `mapstructure:"load"`
	Save       bool   `mapstructure:"save"`
}

type CacheConfig struct {
	// Store is the URL of the model store. Models are stored under the workspace
	// directory if it is empty.
	Store string `mapstructure:"store"`
}

type LedgerConfig struct {
	// Store is the path of the SQLite run ledger. The ledger is disabled if it is empty.
	Store string `mapstructure:"store"`
}

type ExperimentConfig struct {
	Seed            int64   `mapstructure:"seed"`
	Jobs            int     `mapstructure:"jobs" validate:"gte=1"`
	TrainSize       float64 `mapstructure:"train_size" validate:"gt=0,lt=1"`
	CalibrationBins int     `mapstructure:"calibration_bins" validate:"gte=1"`
	ConfidenceBins  int     `mapstructure:"confidence_bins" validate:"gte=1"`
	Strategy        string  `mapstructure:"strategy" validate:"oneof=uniform quantile"`
	GridSteps       int     `mapstructure:"grid_steps" validate:"gte=2"`
	Plot            bool    `mapstructure:"plot"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Dir:        "workspace",
			ResultsDir: "results",
			Load:       true,
			Save:       true,
		},
		Experiment: ExperimentConfig{
			Jobs:            1,
			TrainSize:       dataset.DefaultTrainSize,
			CalibrationBins: 10,
			ConfidenceBins:  20,
			Strategy:        "uniform",
			GridSteps:       400,
		},
		S3: S3Config{
			UseSSL: true,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [workspace]
	viper.SetDefault("workspace.dir", defaultConfig.Workspace.Dir)
	viper.SetDefault("workspace.results_dir", defaultConfig.Workspace.ResultsDir)
	viper.SetDefault("workspace.load", defaultConfig.Workspace.Load)
	viper.SetDefault("workspace.save", defaultConfig.Workspace.Save)
	// [cache]
	viper.SetDefault("cache.store", defaultConfig.Cache.Store)
	// [ledger]
	viper.SetDefault("ledger.store", defaultConfig.Ledger.Store)
	// [experiment]
	viper.SetDefault("experiment.seed", defaultConfig.Experiment.Seed)
	viper.SetDefault("experiment.jobs", defaultConfig.Experiment.Jobs)
	viper.SetDefault("experiment.train_size", defaultConfig.Experiment.TrainSize)
	viper.SetDefault("experiment.calibration_bins", defaultConfig.Experiment.CalibrationBins)
	viper.SetDefault("experiment.confidence_bins", defaultConfig.Experiment.ConfidenceBins)
	viper.SetDefault("experiment.strategy", defaultConfig.Experiment.Strategy)
	viper.SetDefault("experiment.grid_steps", defaultConfig.Experiment.GridSteps)
	viper.SetDefault("experiment.plot", defaultConfig.Experiment.Plot)
	// [s3]
	viper.SetDefault("s3.endpoint", defaultConfig.S3.Endpoint)
	viper.SetDefault("s3.access_key_id", defaultConfig.S3.AccessKeyID)
	viper.SetDefault("s3.secret_access_key", defaultConfig.S3.SecretAccessKey)
	viper.SetDefault("s3.use_ssl", defaultConfig.S3.UseSSL)
	// [gcs]
	viper.SetDefault("gcs.credentials_file", defaultConfig.GCS.CredentialsFile)
	// [azure]
	viper.SetDefault("azure.connection_string", defaultConfig.Azure.ConnectionString)
	viper.SetDefault("azure.account_name", defaultConfig.Azure.AccountName)
	viper.SetDefault("azure.account_key", defaultConfig.Azure.AccountKey)
	viper.SetDefault("azure.endpoint", defaultConfig.Azure.Endpoint)
}

type configBinding struct {
	key string
	env string
}

func bindEnv() error {
	bindings := []configBinding{
		{"workspace.dir", "DGE_WORKSPACE_DIR"},
		{"workspace.results_dir", "DGE_RESULTS_DIR"},
		{"cache.store", "DGE_CACHE_STORE"},
		{"ledger.store", "DGE_LEDGER_STORE"},
		{"experiment.seed", "DGE_SEED"},
		{"experiment.jobs", "DGE_JOBS"},
		{"s3.endpoint", "DGE_S3_ENDPOINT"},
		{"s3.access_key_id", "DGE_S3_ACCESS_KEY_ID"},
		{"s3.secret_access_key", "DGE_S3_SECRET_ACCESS_KEY"},
		{"gcs.credentials_file", "DGE_GCS_CREDENTIALS_FILE"},
		{"azure.connection_string", "DGE_AZURE_CONNECTION_STRING"},
		{"azure.account_name", "DGE_AZURE_ACCOUNT_NAME"},
		{"azure.account_key", "DGE_AZURE_ACCOUNT_KEY"},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// LoadConfig loads configuration from a TOML file. Missing values fall back to defaults
// and DGE_* environment variables override the file. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	if err := bindEnv(); err != nil {
		return nil, err
	}
	if path != "" {
		viper.SetConfigType("toml")
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks value ranges declared in struct tags.
func (config *Config) Validate() error {
	if err := validator.New().Struct(config); err != nil {
		return errors.Annotate(dataset.ErrInvalidConfiguration, err.Error())
	}
	return nil
}
