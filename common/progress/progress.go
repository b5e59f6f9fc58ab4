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

package progress

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Tracer owns root spans. When bars are enabled every span renders a progress bar.
type Tracer struct {
	name  string
	spans sync.Map
	bars  io.Writer
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// EnableBars renders progress bars of all spans to w.
func (t *Tracer) EnableBars(w io.Writer) {
	t.bars = w
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := newSpan(t, name, total)
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns progress of root spans and their children.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(_, value any) bool {
		progress = append(progress, value.(*Span).list()...)
		return true
	})
	return progress
}

type Span struct {
	tracer   *Tracer
	name     string
	mu       sync.Mutex
	status   Status
	total    int
	count    int
	err      error
	start    time.Time
	finish   time.Time
	children sync.Map
	bar      *progressbar.ProgressBar
}

func newSpan(tracer *Tracer, name string, total int) *Span {
	span := &Span{
		tracer: tracer,
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
	if tracer != nil && tracer.bars != nil {
		span.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(tracer.bars),
			progressbar.OptionSetDescription(name),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
	}
	return span
}

func (s *Span) Add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
	if s.bar != nil {
		_ = s.bar.Add(n)
	}
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count = s.total
	}
	s.finish = time.Now()
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}

func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err
	s.finish = time.Now()
	if s.bar != nil {
		_ = s.bar.Exit()
	}
}

func (s *Span) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Span) list() []Progress {
	s.mu.Lock()
	p := Progress{
		Name:       s.name,
		Status:     s.status,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if s.tracer != nil {
		p.Tracer = s.tracer.name
	}
	if s.err != nil {
		p.Error = s.err.Error()
	}
	s.mu.Unlock()
	progress := []Progress{p}
	s.children.Range(func(_, value any) bool {
		progress = append(progress, value.(*Span).list()...)
		return true
	})
	return progress
}

// Start creates a child span of the span carried by ctx. Without a parent span the
// returned span is detached and only counts.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	parent, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		return ctx, newSpan(nil, name, total)
	}
	child := newSpan(parent.tracer, name, total)
	parent.children.Store(name, child)
	return context.WithValue(ctx, spanKeyName, child), child
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
