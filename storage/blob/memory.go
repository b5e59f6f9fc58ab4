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
	"sort"
	"strings"
	"sync"

	"github.com/juju/errors"
)

// Memory keeps objects in memory.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, errors.NotFoundf("object %s", name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Create(_ context.Context, name string) (Writer, error) {
	return &bufferWriter{commit: func(data []byte) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.objects[name] = data
		return nil
	}}, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

// bufferWriter collects written bytes and commits them on Close.
type bufferWriter struct {
	bytes.Buffer
	commit func(data []byte) error
	closed bool
}

func (w *bufferWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.commit(bytes.Clone(w.Bytes()))
}

func (w *bufferWriter) Abort() error {
	w.closed = true
	w.Reset()
	return nil
}
