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

package log

import (
	"net/url"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05.999999"

var logger *zap.Logger

func init() {
	var err error
	if logger, err = zap.NewDevelopment(); err != nil {
		panic(err)
	}
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger
}

// CloseLogger silences everything below fatal. Tests call it to keep output clean.
func CloseLogger() {
	logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		zap.FatalLevel))
}

// AddFlags registers log rotation flags.
func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// SetLogger replaces the global logger. Debug mode writes colored console logs at debug
// level, otherwise JSON logs at info level. Logs go to stderr since tables are printed to
// stdout, and to a rotated file if --log-path is set.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if file := rotatedFile(flagSet); file != nil {
		sinks = append(sinks, zapcore.AddSync(file))
	}
	logger = zap.New(zapcore.NewCore(newEncoder(debug), zap.CombineWriteSyncers(sinks...), level))
}

func newEncoder(debug bool) zapcore.Encoder {
	if debug {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return zapcore.NewJSONEncoder(cfg)
}

func rotatedFile(flagSet *pflag.FlagSet) *lumberjack.Logger {
	if !flagSet.Changed("log-path") {
		return nil
	}
	file := &lumberjack.Logger{}
	file.Filename, _ = flagSet.GetString("log-path")
	file.MaxSize, _ = flagSet.GetInt("log-max-size")
	file.MaxAge, _ = flagSet.GetInt("log-max-age")
	file.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	return file
}

// RedactURL masks credentials embedded in a storage URL before it is logged.
func RedactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	username := parsed.User.Username()
	password, _ := parsed.User.Password()
	parsed.User = url.UserPassword(strings.Repeat("x", len(username)), strings.Repeat("x", len(password)))
	return parsed.String()
}
