package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoapi/apiserver/config"
)

type memoryBackend struct {
	bucket    string
	ensured   bool
	closed    bool
	objects   map[string]Object
	bodies    map[string][]byte
	ensureErr error
}

func newMemoryBackend(bucket string) *memoryBackend {
	return &memoryBackend{bucket: bucket, objects: map[string]Object{}, bodies: map[string][]byte{}}
}

func (m *memoryBackend) EnsureBucket(context.Context) error {
	m.ensured = true
	return m.ensureErr
}

func (m *memoryBackend) Put(_ context.Context, obj Object) error {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	m.objects[obj.Key] = obj
	m.bodies[obj.Key] = data
	return nil
}

func (m *memoryBackend) Bucket() string { return m.bucket }

func (m *memoryBackend) Close() error {
	m.closed = true
	return nil
}

func TestPutJSON(t *testing.T) {
	backend := newMemoryBackend("exports")
	s := NewStorage(backend)

	key := "exports/todos/20260301T120000Z-abc.json"
	err := s.PutJSON(context.Background(), key, []byte(`[]`), map[string]string{"todo-count": "0"})
	require.NoError(t, err)

	obj := backend.objects[key]
	assert.Equal(t, []byte(`[]`), backend.bodies[key])
	assert.Equal(t, int64(2), obj.Size)
	assert.Equal(t, "application/json", obj.ContentType)
	assert.Equal(t, "20260301T120000Z-abc.json", obj.Filename)
	assert.Equal(t, "no-store", obj.CacheControl)
	assert.Equal(t, map[string]string{"todo-count": "0"}, obj.Metadata)
	assert.Equal(t, "exports", s.Bucket())
}

func TestObjectContentDisposition(t *testing.T) {
	assert.Empty(t, Object{}.ContentDisposition())
	assert.Equal(t, "attachment; filename=todos.json", Object{Filename: "todos.json"}.ContentDisposition())
	assert.Equal(t, `attachment; filename="my todos.json"`, Object{Filename: "my todos.json"}.ContentDisposition())
}

func TestMinioPutOptions(t *testing.T) {
	opts := minioPutOptions(Object{
		ContentType:  "application/json",
		Filename:     "todos.json",
		CacheControl: "no-store",
		Metadata:     map[string]string{"exported-by": "3"},
	})

	assert.Equal(t, "application/json", opts.ContentType)
	assert.Equal(t, "attachment; filename=todos.json", opts.ContentDisposition)
	assert.Equal(t, "no-store", opts.CacheControl)
	assert.Equal(t, map[string]string{"exported-by": "3"}, opts.UserMetadata)
}

func TestGCSObjectAttrs(t *testing.T) {
	attrs := gcsObjectAttrs(Object{
		Key:          "exports/todos/a.json",
		ContentType:  "application/json",
		Filename:     "a.json",
		CacheControl: "no-store",
		Metadata:     map[string]string{"todo-count": "2"},
	})

	assert.Equal(t, "exports/todos/a.json", attrs.Name)
	assert.Equal(t, "application/json", attrs.ContentType)
	assert.Equal(t, "attachment; filename=a.json", attrs.ContentDisposition)
	assert.Equal(t, "no-store", attrs.CacheControl)
	assert.Equal(t, "2", attrs.Metadata["todo-count"])
}

func TestStorageClose(t *testing.T) {
	backend := newMemoryBackend("exports")

	require.NoError(t, NewStorage(backend).Close())

	assert.True(t, backend.closed)
}

func TestMinioClientCloseIsNoop(t *testing.T) {
	client, err := NewMinioClient(config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "todo-exports",
	})
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.Equal(t, "todo-exports", client.Bucket())
}

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenRejectsIncompleteConfig(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "minio"})
	assert.ErrorContains(t, err, "minio endpoint, access key and secret key, bucket required")

	_, err = Open(context.Background(), config.StorageConfig{Backend: "minio", Minio: config.MinioConfig{
		Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b",
	}})
	assert.ErrorContains(t, err, "minio bucket required")

	_, err = Open(context.Background(), config.StorageConfig{Backend: "gcs"})
	assert.ErrorContains(t, err, "gcs bucket is required")

	_, err = Open(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.ErrorContains(t, err, `unknown storage backend "s3"`)
}

func TestEnsureBucketFailureIsReported(t *testing.T) {
	backend := newMemoryBackend("exports")
	backend.ensureErr = errors.New("denied")
	s := NewStorage(backend)

	err := s.EnsureBucket(context.Background())

	assert.ErrorContains(t, err, "denied")
}
