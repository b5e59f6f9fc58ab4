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

package experiment

import (
	"context"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/ensemble"
	"github.com/gorse-io/dge/task"
	"github.com/juju/errors"
)

// Density estimates the density of every synthetic dataset with a Gaussian kernel
// density and aggregates the estimates on a grid over the real data. The mean surface
// approximates the density of the generator, the std surface shows where synthetic
// datasets disagree. The real data must have two features.
func Density(ctx context.Context, gt *dataset.Dataset, syns []*dataset.Dataset, opts Options) (*ensemble.Grid, error) {
	if err := opts.validate(gt, syns); err != nil {
		return nil, err
	}
	if gt.Dim() != 2 {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "density surfaces require 2 features but got %d", gt.Dim())
	}
	const filename = "density"
	return opts.surface(ctx, gt, syns, task.NewDensityTask(opts.Seed), filename, opts.ensemble(filename, nil))
}
