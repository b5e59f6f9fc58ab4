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

package parallel

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := lo.Range(10000)
		b := make([]int, len(a))
		workerIds := make([]int, len(a))
		// multiple threads
		err := Parallel(context.Background(), len(a), 4, func(workerId, jobId int) error {
			b[jobId] = a[jobId]
			workerIds[jobId] = workerId
			time.Sleep(time.Microsecond)
			return nil
		})
		assert.NoError(t, err)
		workers := lo.Uniq(workerIds)
		assert.Equal(t, a, b)
		assert.GreaterOrEqual(t, 4, len(workers))
		assert.Less(t, 1, len(workers))
		// single thread
		err = Parallel(context.Background(), len(a), 1, func(workerId, jobId int) error {
			b[jobId] = a[jobId]
			workerIds[jobId] = workerId
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Equal(t, []int{0}, lo.Uniq(workerIds))
	})
}

func TestParallelError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sentinel := errors.New("failed")
		err := Parallel(context.Background(), 100, 4, func(_, jobId int) error {
			if jobId == 10 {
				return sentinel
			}
			return nil
		})
		assert.ErrorIs(t, err, sentinel)
		err = Parallel(context.Background(), 100, 1, func(_, jobId int) error {
			if jobId == 10 {
				return sentinel
			}
			return nil
		})
		assert.ErrorIs(t, err, sentinel)
	})
}

func TestParallelPanic(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		err := Parallel(context.Background(), 10, 2, func(_, jobId int) error {
			if jobId == 3 {
				panic("boom")
			}
			return nil
		})
		assert.Error(t, err)
	})
}

func TestParallelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Parallel(ctx, 10, 1, func(_, _ int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMap(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		squares, err := Map(context.Background(), 100, 4, func(i int) (int, error) {
			time.Sleep(time.Microsecond)
			return i * i, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, lo.Map(lo.Range(100), func(i, _ int) int { return i * i }), squares)
	})
}

func TestMapError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sentinel := errors.New("member failed")
		results, err := Map(context.Background(), 20, 3, func(i int) (float64, error) {
			if i == 7 {
				return 0, sentinel
			}
			return float64(i), nil
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Nil(t, results)
	})
}
