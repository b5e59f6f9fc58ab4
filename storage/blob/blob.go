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
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/gorse-io/dge/config"
	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
)

// Store is a flat namespace of named objects. Names use forward slashes as
// separators. Open returns an error satisfying errors.Is(err, errors.NotFound) if
// the object does not exist.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create returns a writer for a new object. The object is visible after Close
	// returns without error. Existing objects are overwritten.
	Create(ctx context.Context, name string) (Writer, error)
	// List returns names of objects starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, name string) error
}

// Writer writes an object. Abort discards written bytes and leaves any existing
// object under the same name untouched.
type Writer interface {
	io.WriteCloser
	Abort() error
}

var errAborted = errors.New("write aborted")

const (
	memoryPrefix = "memory://"
	filePrefix   = "file://"
	s3Prefix     = "s3://"
	gcsPrefix    = "gcs://"
	azurePrefix  = "azblob://"
	redisPrefix  = "redis://"
)

// Open creates a store from a URL. Plain paths and file:// URLs are stored on the
// local file system, memory:// (or an empty URL) keeps objects in memory. Object
// stores take the bucket or container as host and an optional key prefix as path,
// e.g. s3://bucket/prefix. Credentials are read from cfg.
func Open(ctx context.Context, rawURL string, cfg *config.Config) (Store, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	switch {
	case rawURL == "" || strings.HasPrefix(rawURL, memoryPrefix):
		return NewMemory(), nil
	case strings.HasPrefix(rawURL, filePrefix):
		return NewPOSIX(strings.TrimPrefix(rawURL, filePrefix)), nil
	case strings.HasPrefix(rawURL, s3Prefix):
		bucket, prefix, err := parseBucketURL(rawURL)
		if err != nil {
			return nil, err
		}
		return NewS3(cfg.S3, bucket, prefix)
	case strings.HasPrefix(rawURL, gcsPrefix):
		bucket, prefix, err := parseBucketURL(rawURL)
		if err != nil {
			return nil, err
		}
		return NewGCS(ctx, cfg.GCS, bucket, prefix)
	case strings.HasPrefix(rawURL, azurePrefix):
		container, prefix, err := parseBucketURL(rawURL)
		if err != nil {
			return nil, err
		}
		return NewAzureBlob(cfg.Azure, container, prefix)
	case strings.HasPrefix(rawURL, redisPrefix):
		return NewRedis(rawURL)
	case strings.Contains(rawURL, "://"):
		return nil, errors.Annotatef(dataset.ErrInvalidConfiguration, "unsupported store %s", rawURL)
	default:
		return NewPOSIX(rawURL), nil
	}
}

func parseBucketURL(rawURL string) (bucket, prefix string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if u.Host == "" {
		return "", "", errors.Annotatef(dataset.ErrInvalidConfiguration, "missing bucket in %s", rawURL)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// joinKey joins a key prefix and an object name.
func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// trimKey strips the key prefix from an object key.
func trimKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
}

// pipeWriter streams written bytes to an upload running in another goroutine. Close
// waits for the upload and returns its error.
type pipeWriter struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = upload(pr)
		// unblock writers if the upload stopped early
		_ = pr.CloseWithError(w.err)
	}()
	return w
}

func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	<-w.done
	return errors.Trace(w.err)
}

func (w *pipeWriter) Abort() error {
	_ = w.PipeWriter.CloseWithError(errAborted)
	<-w.done
	return nil
}
