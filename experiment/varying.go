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
	"fmt"

	"github.com/gorse-io/dge/dataset"
	"github.com/gorse-io/dge/ensemble"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/task"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// VaryingSize compares prediction surfaces when synthetic datasets are truncated to 1%,
// 10% and 100% of their rows. For every size it evaluates DGE with 20, 10 and 5 members,
// a naive ensemble repeating the first model, and an ensemble trained on the
// concatenation of all truncated datasets. The real data must have two features and
// there must be at least 10 synthetic datasets. Grids are returned by cache filename.
func VaryingSize(ctx context.Context, gt *dataset.Dataset, syns []*dataset.Dataset, modelType model.ModelType, opts Options) (map[string]*ensemble.Grid, error) {
	if err := opts.validate(gt, syns); err != nil {
		return nil, err
	}
	if gt.Dim() != 2 {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "prediction surfaces require 2 features but got %d", gt.Dim())
	}
	if len(syns) < 10 {
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "at least 10 synthetic datasets are required but got %d", len(syns))
	}
	t := task.NewSupervisedTask(modelType, opts.Seed)
	n := syns[0].Len()
	grids := make(map[string]*ensemble.Grid)
	for _, nSyn := range lo.Uniq([]int{n / 100, n / 10, n}) {
		if nSyn < 1 {
			continue
		}
		reduced := lo.Map(syns, func(syn *dataset.Dataset, _ int) *dataset.Dataset { return syn.Head(nSyn) })

		// DGE
		filename := fmt.Sprintf("n_syn%d_dge", nSyn)
		dge, err := opts.surface(ctx, gt, reduced, t, filename, opts.ensemble(filename, nil))
		if err != nil {
			return nil, err
		}
		grids[filename] = dge
		for _, k := range []int{10, 5} {
			filename = fmt.Sprintf("n_syn%d_dge_k=%d", nSyn, k)
			if grids[filename], err = opts.surface(ctx, gt, reduced[:k], t, filename, opts.ensemble(filename, dge.Models[:k])); err != nil {
				return nil, err
			}
		}

		// the first model repeated
		filename = fmt.Sprintf("n_syn%d_naive", nSyn)
		naive := lo.RepeatBy(len(syns), func(int) *dataset.Dataset { return reduced[0] })
		models := lo.RepeatBy(len(syns), func(int) model.Model { return dge.Models[0] })
		if grids[filename], err = opts.surface(ctx, gt, naive, t, filename, opts.ensemble(filename, models)); err != nil {
			return nil, err
		}

		// all data
		filename = fmt.Sprintf("n_syn%d_concat", nSyn)
		concat, err := dataset.ConcatHead(nSyn, syns...)
		if err != nil {
			return nil, err
		}
		members := lo.RepeatBy(len(syns), func(int) *dataset.Dataset { return concat })
		if grids[filename], err = opts.surface(ctx, gt, members, t, filename, opts.ensemble(filename, nil)); err != nil {
			return nil, err
		}
	}
	return grids, nil
}
