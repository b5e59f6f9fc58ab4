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
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/report"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SQLiteTestSuite struct {
	suite.Suite
	Database
}

func (suite *SQLiteTestSuite) SetupTest() {
	var err error
	// create database
	path := fmt.Sprintf("sqlite://%s/results/ledger.db", suite.T().TempDir())
	suite.Database, err = Open(path)
	suite.NoError(err)
	// create schema
	suite.NoError(suite.Database.Init())
	suite.NoError(suite.Database.Init())
}

func (suite *SQLiteTestSuite) TearDownTest() {
	suite.NoError(suite.Database.Close())
}

func (suite *SQLiteTestSuite) TestRecord() {
	ctx := context.Background()
	table := report.New([]string{"AUC", "Acc"})
	suite.NoError(table.Append("Oracle", []float64{0.9, 0.8}))
	suite.NoError(table.Append("DGE (K=5)", []float64{math.NaN(), 0.75}))
	id, err := suite.Database.Record(ctx, "predictive", table)
	suite.NoError(err)
	suite.NotEmpty(id)

	loaded, err := suite.Database.Load(ctx, id)
	suite.NoError(err)
	suite.Equal(table.Columns, loaded.Columns)
	suite.Equal(table.Rows, loaded.Rows)
	suite.Equal(0.9, loaded.Values[0][0])
	suite.Equal(0.8, loaded.Values[0][1])
	suite.True(math.IsNaN(loaded.Values[1][0]))
	suite.Equal(0.75, loaded.Values[1][1])

	_, err = suite.Database.Load(ctx, "unknown")
	suite.True(errors.Is(err, errors.NotFound))
}

func (suite *SQLiteTestSuite) TestListRuns() {
	ctx := context.Background()
	table := report.New([]string{"RMSE"})
	suite.NoError(table.Append("Naive", []float64{1}))
	first, err := suite.Database.Record(ctx, "evaluate", table)
	suite.NoError(err)
	second, err := suite.Database.Record(ctx, "select", table)
	suite.NoError(err)
	third, err := suite.Database.Record(ctx, "evaluate", table)
	suite.NoError(err)

	runs, err := suite.Database.ListRuns(ctx, "evaluate")
	suite.NoError(err)
	if suite.Len(runs, 2) {
		suite.Equal(first, runs[0].ID)
		suite.Equal(third, runs[1].ID)
		suite.Equal("evaluate", runs[0].Experiment)
		suite.False(runs[0].CreatedAt.IsZero())
	}
	runs, err = suite.Database.ListRuns(ctx, "")
	suite.NoError(err)
	suite.Len(runs, 3)
	suite.Contains([]string{runs[0].ID, runs[1].ID, runs[2].ID}, second)
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

func TestOpen(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	assert.NoError(t, err)
	assert.NoError(t, db.Init())
	assert.NoError(t, db.Close())

	_, err = Open("")
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
	_, err = Open("mysql://localhost/dge")
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}
