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

package ledger

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/report"
	"github.com/juju/errors"
)

const SQLitePrefix = "sqlite://"

// Run is a recorded execution of an experiment.
type Run struct {
	ID         string
	Experiment string
	CreatedAt  time.Time
}

// Database persists score tables of experiment runs.
type Database interface {
	Close() error
	Init() error
	// Record saves a table as a new run and returns the run id.
	Record(ctx context.Context, experiment string, table *report.Table) (string, error)
	// ListRuns returns runs of an experiment from the oldest to the newest. All runs are
	// returned if experiment is empty.
	ListRuns(ctx context.Context, experiment string) ([]Run, error)
	// Load returns the table of a run.
	Load(ctx context.Context, id string) (*report.Table, error)
}

// Open a ledger. The path is a SQLite file, optionally prefixed by "sqlite://".
func Open(path string) (Database, error) {
	dataSourceName := strings.TrimPrefix(path, SQLitePrefix)
	if dataSourceName == "" {
		return nil, errors.Annotate(dataset.ErrInvalidConfiguration, "empty ledger path")
	}
	if strings.Contains(dataSourceName, "://") {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "unknown ledger: %s", path)
	}
	if dir := filepath.Dir(dataSourceName); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, errors.Trace(err)
		}
	}
	// append parameters
	dataSourceName += "?" + url.Values{"_pragma": {"busy_timeout(10000)", "journal_mode(wal)"}}.Encode()
	return openSQLite(dataSourceName)
}
