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
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/gorse-io/dge/config"
	"github.com/gorse-io/dge/dataset"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func writeObject(t *testing.T, store Store, name, content string) {
	w, err := store.Create(context.Background(), name)
	assert.NoError(t, err)
	_, err = w.Write([]byte(content))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
}

func readObject(t *testing.T, store Store, name string) string {
	r, err := store.Open(context.Background(), name)
	assert.NoError(t, err)
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.NoError(t, r.Close())
	return string(data)
}

// testStore runs the common contract against a store.
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	// missing object
	_, err := store.Open(ctx, "adult_supervised_task/missing.gob")
	assert.True(t, errors.Is(err, errors.NotFound), err)

	// create objects
	writeObject(t, store, "adult_supervised_task/a_0.gob", "hello")
	writeObject(t, store, "adult_supervised_task/a_1.gob", "world")
	writeObject(t, store, "moons_supervised_task/a_0.gob", "moons")
	assert.Equal(t, "hello", readObject(t, store, "adult_supervised_task/a_0.gob"))

	// overwrite
	writeObject(t, store, "adult_supervised_task/a_0.gob", "hello again")
	assert.Equal(t, "hello again", readObject(t, store, "adult_supervised_task/a_0.gob"))

	// abort
	for _, name := range []string{"adult_supervised_task/a_0.gob", "adult_supervised_task/a_2.gob"} {
		w, err := store.Create(ctx, name)
		assert.NoError(t, err)
		_, err = w.Write([]byte("partial"))
		assert.NoError(t, err)
		assert.NoError(t, w.Abort())
	}
	assert.Equal(t, "hello again", readObject(t, store, "adult_supervised_task/a_0.gob"))
	_, err = store.Open(ctx, "adult_supervised_task/a_2.gob")
	assert.True(t, errors.Is(err, errors.NotFound), err)

	// list objects
	names, err := store.List(ctx, "adult_")
	assert.NoError(t, err)
	assert.Equal(t, []string{"adult_supervised_task/a_0.gob", "adult_supervised_task/a_1.gob"}, names)
	names, err = store.List(ctx, "")
	assert.NoError(t, err)
	assert.Len(t, names, 3)

	// remove objects
	assert.NoError(t, store.Remove(ctx, "adult_supervised_task/a_1.gob"))
	assert.NoError(t, store.Remove(ctx, "adult_supervised_task/a_1.gob"))
	names, err = store.List(ctx, "adult_")
	assert.NoError(t, err)
	assert.Equal(t, []string{"adult_supervised_task/a_0.gob"}, names)
	for _, name := range []string{"adult_supervised_task/a_0.gob", "moons_supervised_task/a_0.gob"} {
		assert.NoError(t, store.Remove(ctx, name))
	}
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestPOSIX(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "workspace")
	store := NewPOSIX(dir)

	// list before the directory exists
	names, err := store.List(context.Background(), "")
	assert.NoError(t, err)
	assert.Empty(t, names)
	assert.NoError(t, store.Init())
	assert.DirExists(t, dir)

	testStore(t, store)

	// aborted writes leave no temporary files
	temps, err := filepath.Glob(filepath.Join(dir, "adult_supervised_task", "*.tmp"))
	assert.NoError(t, err)
	assert.Empty(t, temps)

	// objects are plain files
	writeObject(t, store, "tt_predict_performance/model.gob", "content")
	data, err := os.ReadFile(filepath.Join(dir, "tt_predict_performance", "model.gob"))
	assert.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "", nil)
	assert.NoError(t, err)
	assert.IsType(t, &Memory{}, store)
	store, err = Open(ctx, "memory://", nil)
	assert.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	dir := t.TempDir()
	store, err = Open(ctx, dir, nil)
	assert.NoError(t, err)
	assert.Equal(t, &POSIX{dir: dir}, store)
	store, err = Open(ctx, "file://"+dir, nil)
	assert.NoError(t, err)
	assert.Equal(t, &POSIX{dir: dir}, store)

	store, err = Open(ctx, "s3://dge/models", &config.Config{S3: config.S3Config{Endpoint: "localhost:9000"}})
	assert.NoError(t, err)
	assert.Equal(t, "dge", store.(*S3).bucket)
	assert.Equal(t, "models", store.(*S3).prefix)

	store, err = Open(ctx, "redis://localhost:6379/1?prefix=dge", nil)
	assert.NoError(t, err)
	assert.Equal(t, "dge", store.(*Redis).prefix)
	assert.NoError(t, store.(*Redis).Close())

	_, err = Open(ctx, "s3:///models", nil)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
	_, err = Open(ctx, "ftp://localhost/models", nil)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
	_, err = Open(ctx, "azblob://container/models", nil)
	assert.True(t, errors.Is(err, dataset.ErrInvalidConfiguration))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "a.gob", joinKey("", "a.gob"))
	assert.Equal(t, "blob/a.gob", joinKey("blob", "a.gob"))
	assert.Equal(t, "a.gob", trimKey("blob", "blob/a.gob"))
	assert.Equal(t, "a.gob", trimKey("", "a.gob"))
}

func TestS3(t *testing.T) {
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKeyID := os.Getenv("S3_ACCESS_KEY_ID")
	secretAccessKey := os.Getenv("S3_SECRET_ACCESS_KEY")
	if endpoint == "" || accessKeyID == "" || secretAccessKey == "" {
		t.Skip("S3 environment variables are not set, skipping S3 tests")
	}
	client, err := NewS3(config.S3Config{
		Endpoint:        endpoint,
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	}, "dge-test", "blob")
	assert.NoError(t, err)

	// create bucket if not exists
	exists, err := client.Client.BucketExists(context.Background(), client.bucket)
	assert.NoError(t, err)
	if !exists {
		err = client.Client.MakeBucket(context.Background(), client.bucket, minio.MakeBucketOptions{})
		assert.NoError(t, err)
	}
	testStore(t, client)
}

func TestGCS(t *testing.T) {
	server, err := fakestorage.NewServerWithOptions(fakestorage.Options{
		Scheme:     "http",
		Port:       5050,
		PublicHost: "localhost:5050",
	})
	assert.NoError(t, err)
	defer server.Stop()
	t.Setenv("GCS_EMULATOR_ENDPOINT", "http://localhost:5050/storage/v1/")

	client, err := NewGCS(context.Background(), config.GCSConfig{}, "dge-test", "blob")
	assert.NoError(t, err)

	// create bucket if not exists
	err = client.client.Bucket(client.bucket).Create(context.Background(), "test-project", nil)
	if err != nil {
		assert.ErrorContains(t, err, "already exists")
	}
	testStore(t, client)
}

func TestAzureBlob(t *testing.T) {
	connectionString := os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
	if connectionString == "" {
		t.Skip("AZURE_STORAGE_CONNECTION_STRING is not set, skipping Azure Blob tests")
	}
	client, err := NewAzureBlob(config.AzureConfig{ConnectionString: connectionString}, "dge-test", "blob")
	assert.NoError(t, err)

	_, err = client.client.CreateContainer(context.Background(), client.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		assert.NoError(t, err)
	}
	testStore(t, client)
}

func TestRedis(t *testing.T) {
	uri := os.Getenv("REDIS_URI")
	if uri == "" {
		t.Skip("REDIS_URI is not set, skipping Redis tests")
	}
	client, err := NewRedis(uri)
	assert.NoError(t, err)
	defer client.Close()
	client.prefix = "dge-test"
	testStore(t, client)
}
