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
	"fmt"
	"sync"

	"github.com/gorse-io/dge/common/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Parallel runs jobs [0, nJobs) on nWorkers goroutines. worker receives the id of the
// goroutine and the id of the job. Once a job fails no new jobs are dispatched, and the
// failed job with the smallest id wins. Jobs run in order on the calling goroutine if
// nWorkers <= 1.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers <= 1 {
		for jobId := 0; jobId < nJobs; jobId++ {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			if err := safeRun(0, jobId, worker); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for jobId := 0; jobId < nJobs; jobId++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- jobId:
			}
		}
	}()

	var wg sync.WaitGroup
	errs := make([]error, nJobs)
	for workerId := 0; workerId < min(nWorkers, nJobs); workerId++ {
		wg.Go(func() {
			for jobId := range jobs {
				if ctx.Err() != nil {
					return
				}
				if errs[jobId] = safeRun(workerId, jobId, worker); errs[jobId] != nil {
					cancel()
					return
				}
			}
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(context.Cause(ctx))
}

// safeRun converts a panic inside a job into an error.
func safeRun(workerId, jobId int, worker func(workerId, jobId int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger().Error("panic recovered", zap.Int("job_id", jobId), zap.Any("panic", r))
			err = fmt.Errorf("job %d panicked: %v", jobId, r)
		}
	}()
	return worker(workerId, jobId)
}

// Map runs fn for every index in [0, n) on at most nWorkers goroutines and returns the
// results in index order.
func Map[T any](ctx context.Context, n, nWorkers int, fn func(i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	if err := Parallel(ctx, n, nWorkers, func(_, i int) (err error) {
		results[i], err = fn(i)
		return
	}); err != nil {
		return nil, err
	}
	return results, nil
}
