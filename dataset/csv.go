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

package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

// LoadCSV loads a dataset from a CSV file with a header row. Every column other than
// target must be numeric.
func LoadCSV(path, target string, targetType TargetType, opts ...Option) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	d, err := ReadCSV(f, target, targetType, opts...)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}
	return d, nil
}

// ReadCSV parses a dataset from CSV text with a header row.
func ReadCSV(r io.Reader, target string, targetType TargetType, opts ...Option) (*Dataset, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(rows) == 0 {
		return nil, errors.Annotate(ErrInvalidConfiguration, "missing header")
	}
	header := rows[0]
	targetIndex := lo.IndexOf(header, target)
	if targetIndex < 0 {
		return nil, errors.Annotatef(ErrInvalidConfiguration, "target column %q not found", target)
	}
	columns := lo.Without(header, target)
	x := make([][]float64, 0, len(rows)-1)
	y := make([]float64, 0, len(rows)-1)
	for i, row := range rows[1:] {
		features := make([]float64, 0, len(columns))
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Annotatef(err, "line %d column %q", i+2, header[j])
			}
			if j == targetIndex {
				y = append(y, v)
			} else {
				features = append(features, v)
			}
		}
		x = append(x, features)
	}
	return New(columns, x, y, targetType, opts...)
}

// WriteCSV writes the dataset with a header row. The target column is named target.
func WriteCSV(w io.Writer, d *Dataset, target string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append(append([]string{}, d.columns...), target)); err != nil {
		return errors.Trace(err)
	}
	record := make([]string, d.Dim()+1)
	for i := range d.x {
		for j, v := range d.x[i] {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[d.Dim()] = strconv.FormatFloat(d.y[i], 'g', -1, 64)
		if err := writer.Write(record); err != nil {
			return errors.Trace(err)
		}
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}
