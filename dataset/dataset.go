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
	"encoding/binary"
	"math"
	"math/rand"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	ErrInvalidConfiguration = errors.ConstError("invalid configuration")
	ErrUnknownTargetType    = errors.ConstError("unknown target type")
	ErrShapeMismatch        = errors.ConstError("shape mismatch")
)

const (
	DefaultTrainSize       = 0.8
	DefaultSplitSeed int64 = 0
)

// TargetType tells downstream code which model family and metrics apply.
type TargetType int

const (
	Classification TargetType = iota + 1
	Regression
)

func (t TargetType) String() string {
	switch t {
	case Classification:
		return "classification"
	case Regression:
		return "regression"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

func (t TargetType) Validate() error {
	switch t {
	case Classification, Regression:
		return nil
	default:
		return errors.Annotatef(ErrUnknownTargetType, "target type %d", int(t))
	}
}

func ParseTargetType(s string) (TargetType, error) {
	switch s {
	case "classification":
		return Classification, nil
	case "regression":
		return Regression, nil
	default:
		return 0, errors.Annotatef(ErrUnknownTargetType, "target type %q", s)
	}
}

// IsPositive reads a classification label. Any non-zero value is the positive class.
func IsPositive(label float64) bool {
	return label != 0
}

// Dataset is an immutable tabular dataset with a single target column. Train and test
// splits are derived deterministically from the split seed.
type Dataset struct {
	columns    []string
	x          [][]float64
	y          []float64
	targetType TargetType
	trainSize  float64
	splitSeed  int64

	splitOnce   sync.Once
	train, test *Dataset

	fingerprintOnce sync.Once
	fingerprint     uint64
}

type Option func(*Dataset)

// WithTrainSize sets the fraction of rows assigned to the train split.
func WithTrainSize(trainSize float64) Option {
	return func(d *Dataset) {
		d.trainSize = trainSize
	}
}

// WithSplitSeed sets the seed of the train/test permutation.
func WithSplitSeed(seed int64) Option {
	return func(d *Dataset) {
		d.splitSeed = seed
	}
}

// New creates a dataset. Column names are generated when columns is nil. Rows are not
// copied, so callers must not modify them afterwards.
func New(columns []string, x [][]float64, y []float64, targetType TargetType, opts ...Option) (*Dataset, error) {
	if err := targetType.Validate(); err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, errors.Annotatef(ErrShapeMismatch, "%d rows but %d targets", len(x), len(y))
	}
	if columns == nil {
		if len(x) == 0 {
			return nil, errors.Annotate(ErrInvalidConfiguration, "columns are required for an empty dataset")
		}
		columns = lo.Map(lo.Range(len(x[0])), func(i, _ int) string {
			return "x" + strconv.Itoa(i)
		})
	}
	for i, row := range x {
		if len(row) != len(columns) {
			return nil, errors.Annotatef(ErrShapeMismatch, "row %d has %d features, expect %d", i, len(row), len(columns))
		}
	}
	d := &Dataset{
		columns:    columns,
		x:          x,
		y:          y,
		targetType: targetType,
		trainSize:  DefaultTrainSize,
		splitSeed:  DefaultSplitSeed,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.trainSize <= 0 || d.trainSize >= 1 {
		return nil, errors.Annotatef(ErrInvalidConfiguration, "train size must be in (0, 1), got %v", d.trainSize)
	}
	return d, nil
}

// derive creates a dataset sharing the schema and split options of d.
func (d *Dataset) derive(x [][]float64, y []float64) *Dataset {
	return &Dataset{
		columns:    d.columns,
		x:          x,
		y:          y,
		targetType: d.targetType,
		trainSize:  d.trainSize,
		splitSeed:  d.splitSeed,
	}
}

func (d *Dataset) Columns() []string {
	return d.columns
}

func (d *Dataset) TargetType() TargetType {
	return d.targetType
}

func (d *Dataset) TrainSize() float64 {
	return d.trainSize
}

func (d *Dataset) SplitSeed() int64 {
	return d.splitSeed
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.y)
}

// Dim returns the number of features.
func (d *Dataset) Dim() int {
	return len(d.columns)
}

// Shape returns rows and columns including the target column.
func (d *Dataset) Shape() (int, int) {
	return d.Len(), d.Dim() + 1
}

// Unpack returns features and target. The returned slices are shared with the dataset.
func (d *Dataset) Unpack() ([][]float64, []float64) {
	return d.x, d.y
}

// Row returns features of the i-th row.
func (d *Dataset) Row(i int) []float64 {
	return d.x[i]
}

// Target returns the target of the i-th row.
func (d *Dataset) Target(i int) float64 {
	return d.y[i]
}

func (d *Dataset) split() {
	d.splitOnce.Do(func() {
		n := d.Len()
		nTrain := int(math.Floor(d.trainSize * float64(n)))
		if n >= 2 {
			nTrain = min(max(nTrain, 1), n-1)
		}
		nTest := n - nTrain
		perm := rand.New(rand.NewSource(d.splitSeed)).Perm(n)
		d.test = d.Subset(perm[:nTest])
		d.train = d.Subset(perm[nTest:])
	})
}

// Train returns the train split. Repeated calls return the same rows.
func (d *Dataset) Train() *Dataset {
	d.split()
	return d.train
}

// Test returns the test split. Repeated calls return the same rows.
func (d *Dataset) Test() *Dataset {
	d.split()
	return d.test
}

// Subset selects rows by index.
func (d *Dataset) Subset(indices []int) *Dataset {
	x := make([][]float64, len(indices))
	y := make([]float64, len(indices))
	for i, index := range indices {
		x[i] = d.x[index]
		y[i] = d.y[index]
	}
	return d.derive(x, y)
}

// Slice selects rows in [begin, end). Bounds are clamped to the dataset.
func (d *Dataset) Slice(begin, end int) *Dataset {
	begin = min(max(begin, 0), d.Len())
	end = min(max(end, begin), d.Len())
	return d.derive(d.x[begin:end], d.y[begin:end])
}

// Head returns the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	return d.Slice(0, n)
}

// Filter keeps rows accepted by fn.
func (d *Dataset) Filter(fn func(x []float64, y float64) bool) *Dataset {
	var indices []int
	for i := range d.x {
		if fn(d.x[i], d.y[i]) {
			indices = append(indices, i)
		}
	}
	return d.Subset(indices)
}

// FeatureRange returns the minimum and maximum over all feature values.
func (d *Dataset) FeatureRange() (float64, float64) {
	lower, upper := math.Inf(1), math.Inf(-1)
	for _, row := range d.x {
		for _, v := range row {
			lower = min(lower, v)
			upper = max(upper, v)
		}
	}
	return lower, upper
}

// Fingerprint hashes schema and content. Datasets with equal fingerprints hold the same
// rows in the same order.
func (d *Dataset) Fingerprint() uint64 {
	d.fingerprintOnce.Do(func() {
		digest := xxhash.New()
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(d.targetType))
		_, _ = digest.Write(buf)
		for _, column := range d.columns {
			_, _ = digest.WriteString(column)
			_, _ = digest.Write([]byte{0})
		}
		for i := range d.x {
			for _, v := range d.x[i] {
				binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
				_, _ = digest.Write(buf)
			}
			binary.LittleEndian.PutUint64(buf, math.Float64bits(d.y[i]))
			_, _ = digest.Write(buf)
		}
		d.fingerprint = digest.Sum64()
	})
	return d.fingerprint
}

// Concat stacks datasets row-wise. All datasets must share the feature dimension and
// target type. The result uses the columns and split options of the first dataset.
func Concat(datasets ...*Dataset) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, errors.Annotate(ErrInvalidConfiguration, "nothing to concatenate")
	}
	first := datasets[0]
	n := lo.SumBy(datasets, func(d *Dataset) int { return d.Len() })
	x := make([][]float64, 0, n)
	y := make([]float64, 0, n)
	for i, d := range datasets {
		if d.Dim() != first.Dim() {
			return nil, errors.Annotatef(ErrShapeMismatch, "dataset %d has %d features, expect %d", i, d.Dim(), first.Dim())
		}
		if d.targetType != first.targetType {
			return nil, errors.Annotatef(ErrInvalidConfiguration, "dataset %d is %v, expect %v", i, d.targetType, first.targetType)
		}
		x = append(x, d.x...)
		y = append(y, d.y...)
	}
	return first.derive(x, y), nil
}

// ConcatHead stacks the first n rows of every dataset.
func ConcatHead(n int, datasets ...*Dataset) (*Dataset, error) {
	return Concat(lo.Map(datasets, func(d *Dataset, _ int) *Dataset {
		return d.Head(n)
	})...)
}
