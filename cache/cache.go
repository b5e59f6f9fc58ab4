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

package cache

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/gorse-io/dge/common/encoding"
	"github.com/gorse-io/dge/common/log"
	"github.com/gorse-io/dge/model"
	"github.com/gorse-io/dge/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Key identifies a cached model. Fingerprint is the fingerprint of the training set
// and a zero fingerprint skips the staleness check.
type Key struct {
	Task        string
	TaskType    string
	Filename    string
	Index       int
	Fingerprint uint64
}

// Path returns the object name of the model, for example
// supervised_task_mlp/supervised_task_mlp_DGE_k20_3.gob.
func (k Key) Path() string {
	root := fmt.Sprintf("%s_%s", k.Task, k.TaskType)
	return fmt.Sprintf("%s/%s_%s_%d.gob", root, root, k.Filename, k.Index)
}

type header struct {
	Fingerprint uint64
}

// Cache stores fitted models in a blob store, optionally under a folder.
type Cache struct {
	store blob.Store
	dir   string
}

func New(store blob.Store) *Cache {
	return &Cache{store: store}
}

func (c *Cache) Store() blob.Store {
	return c.store
}

// Sub returns a cache sharing the store whose models are kept in a subfolder.
func (c *Cache) Sub(dir string) *Cache {
	return &Cache{store: c.store, dir: path.Join(c.dir, dir)}
}

func (c *Cache) name(key Key) string {
	return path.Join(c.dir, key.Path())
}

// Load returns the cached model. A missing model or a model fitted on another
// training set is a miss.
func (c *Cache) Load(ctx context.Context, key Key) (model.Model, bool, error) {
	name := c.name(key)
	r, err := c.store.Open(ctx, name)
	if errors.Is(err, errors.NotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Trace(err)
	}
	defer r.Close()
	var h header
	if err = encoding.ReadGob(r, &h); err != nil {
		return nil, false, errors.Annotatef(err, "read header of %s", name)
	}
	if key.Fingerprint != 0 && h.Fingerprint != key.Fingerprint {
		log.Logger().Debug("stale model in cache",
			zap.String("path", name),
			zap.Uint64("expect", key.Fingerprint),
			zap.Uint64("actual", h.Fingerprint))
		return nil, false, nil
	}
	m, err := model.UnmarshalModel(r)
	if err != nil {
		return nil, false, errors.Annotatef(err, "load %s", name)
	}
	return m, true, nil
}

// Save writes the model to the cache and overwrites the existing one.
func (c *Cache) Save(ctx context.Context, key Key, m model.Model) error {
	name := c.name(key)
	w, err := c.store.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = write(w, key, m); err != nil {
		_ = w.Abort()
		return errors.Annotatef(err, "save %s", name)
	}
	return errors.Trace(w.Close())
}

func write(w io.Writer, key Key, m model.Model) error {
	if err := encoding.WriteGob(w, header{Fingerprint: key.Fingerprint}); err != nil {
		return errors.Trace(err)
	}
	return model.MarshalModel(w, m)
}

// Remove deletes the cached model.
func (c *Cache) Remove(ctx context.Context, key Key) error {
	return c.store.Remove(ctx, c.name(key))
}

// List returns object names of models cached for a task.
func (c *Cache) List(ctx context.Context, task, taskType string) ([]string, error) {
	return c.store.List(ctx, path.Join(c.dir, fmt.Sprintf("%s_%s", task, taskType))+"/")
}
