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

package blob

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// Redis stores objects as string values. Keys are prefixed by the prefix query
// parameter of the URL, e.g. redis://localhost:6379/0?prefix=dge.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(rawURL string) (*Redis, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Trace(err)
	}
	query := u.Query()
	prefix := query.Get("prefix")
	query.Del("prefix")
	u.RawQuery = query.Encode()
	opt, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Redis{client: redis.NewClient(opt), prefix: prefix}, nil
}

func (r *Redis) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, err := r.client.Get(ctx, joinKey(r.prefix, name)).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFoundf("object %s", name)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *Redis) Create(ctx context.Context, name string) (Writer, error) {
	key := joinKey(r.prefix, name)
	return &bufferWriter{commit: func(data []byte) error {
		return errors.Trace(r.client.Set(ctx, key, data, 0).Err())
	}}, nil
}

func (r *Redis) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := r.client.Scan(ctx, 0, joinKey(r.prefix, prefix)+"*", 0).Iterator()
	for it.Next(ctx) {
		if name := trimKey(r.prefix, it.Val()); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	if err := it.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Redis) Remove(ctx context.Context, name string) error {
	return errors.Trace(r.client.Del(ctx, joinKey(r.prefix, name)).Err())
}

func (r *Redis) Close() error {
	return r.client.Close()
}
