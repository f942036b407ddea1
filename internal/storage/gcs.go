package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/todoapi/apiserver/config"
)

// GCSClient stores exports in a Google Cloud Storage bucket.
type GCSClient struct {
	client    *storage.Client
	bucket    string
	projectID string
}

func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSClient{client: client, bucket: cfg.Bucket, projectID: cfg.ProjectID}, nil
}

// EnsureBucket creates the bucket when missing, which needs a project id.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	bucket := g.client.Bucket(g.bucket)
	_, err := bucket.Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return err
	case strings.TrimSpace(g.projectID) == "":
		return errors.New("gcs project id is required to create bucket")
	default:
		return bucket.Create(ctx, g.projectID, nil)
	}
}

// Put writes obj in a single request. Export keys are unique, so the write
// is conditioned on the object not existing yet.
func (g *GCSClient) Put(ctx context.Context, obj Object) error {
	handle := g.client.Bucket(g.bucket).Object(obj.Key).If(storage.Conditions{DoesNotExist: true})

	writer := handle.NewWriter(ctx)
	attrs := gcsObjectAttrs(obj)
	writer.ContentType = attrs.ContentType
	writer.ContentDisposition = attrs.ContentDisposition
	writer.CacheControl = attrs.CacheControl
	writer.Metadata = attrs.Metadata
	writer.ChunkSize = 0

	if _, err := io.Copy(writer, obj.Body); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (g *GCSClient) Bucket() string {
	return g.bucket
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}

func gcsObjectAttrs(obj Object) storage.ObjectAttrs {
	return storage.ObjectAttrs{
		Name:               obj.Key,
		ContentType:        obj.ContentType,
		ContentDisposition: obj.ContentDisposition(),
		CacheControl:       obj.CacheControl,
		Metadata:           obj.Metadata,
	}
}
