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
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/dge/report"
	"github.com/juju/errors"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

func openSQLite(dataSourceName string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Init() error {
	// Create tables
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	experiment TEXT,
	created_at DATETIME
);`); err != nil {
		return errors.Trace(err)
	}
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS scores (
	run_id TEXT,
	row TEXT,
	metric TEXT,
	value REAL
);`); err != nil {
		return errors.Trace(err)
	}
	if _, err := s.db.Exec(`
CREATE INDEX IF NOT EXISTS scores_run_id ON scores (run_id);`); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (s *SQLite) Record(ctx context.Context, experiment string, table *report.Table) (string, error) {
	id := uuid.New().String()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Trace(err)
	}
	defer tx.Rollback()
	if _, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, experiment, created_at) VALUES (?, ?, ?)
`, id, experiment, time.Now().UTC()); err != nil {
		return "", errors.Trace(err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO scores (run_id, row, metric, value) VALUES (?, ?, ?, ?)
`)
	if err != nil {
		return "", errors.Trace(err)
	}
	defer stmt.Close()
	for i, row := range table.Rows {
		for j, metric := range table.Columns {
			// NaN is stored as NULL
			value := sql.NullFloat64{Float64: table.Values[i][j], Valid: !math.IsNaN(table.Values[i][j])}
			if _, err = stmt.ExecContext(ctx, id, row, metric, value); err != nil {
				return "", errors.Trace(err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return "", errors.Trace(err)
	}
	return id, nil
}

func (s *SQLite) ListRuns(ctx context.Context, experiment string) ([]Run, error) {
	query := `SELECT id, experiment, created_at FROM runs`
	var args []any
	if experiment != "" {
		query += ` WHERE experiment = ?`
		args = append(args, experiment)
	}
	rs, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var runs []Run
	for rs.Next() {
		var run Run
		if err = rs.Scan(&run.ID, &run.Experiment, &run.CreatedAt); err != nil {
			return nil, errors.Trace(err)
		}
		runs = append(runs, run)
	}
	return runs, errors.Trace(rs.Err())
}

func (s *SQLite) Load(ctx context.Context, id string) (*report.Table, error) {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&exist); err != nil {
		return nil, errors.Trace(err)
	}
	if exist == 0 {
		return nil, errors.NotFoundf("run %s", id)
	}
	rs, err := s.db.QueryContext(ctx, `
SELECT row, metric, value FROM scores WHERE run_id = ? ORDER BY rowid
`, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	table := report.New(nil)
	values := make(map[string]map[string]float64)
	for rs.Next() {
		var (
			row, metric string
			value       sql.NullFloat64
		)
		if err = rs.Scan(&row, &metric, &value); err != nil {
			return nil, errors.Trace(err)
		}
		if !lo.Contains(table.Rows, row) {
			table.Rows = append(table.Rows, row)
			values[row] = make(map[string]float64)
		}
		if !lo.Contains(table.Columns, metric) {
			table.Columns = append(table.Columns, metric)
		}
		values[row][metric] = lo.Ternary(value.Valid, value.Float64, math.NaN())
	}
	if err = rs.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	for _, row := range table.Rows {
		table.Values = append(table.Values, lo.Map(table.Columns, func(metric string, _ int) float64 {
			if v, ok := values[row][metric]; ok {
				return v
			}
			return math.NaN()
		}))
	}
	return table, nil
}
