// Package s3 fetches blocks from and uploads blocks to an S3-compatible object
// store through minio-go.
package s3

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client is the subset of the object store API used by the adapters.
type Client interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Config addresses an object store.
type Config struct {
	Endpoint  string `envconfig:"ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"ACCESS_KEY" default:"minioadmin"`
	SecretKey string `envconfig:"SECRET_KEY" default:"minioadmin"`
	Secure    bool   `envconfig:"SECURE"`
	Bucket    string `envconfig:"BUCKET" default:"kpipe"`
}

type minioClient struct {
	*minio.Client
}

func (c minioClient) GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucket, object, opts)
}

// Wrap adapts a minio client.
func Wrap(c *minio.Client) Client {
	return minioClient{Client: c}
}

// NewClient connects to the store and creates the bucket if it is missing.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	err = c.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := c.BucketExists(ctx, cfg.Bucket)
		if errBucketExists != nil || !exists {
			return nil, err
		}
	}

	return Wrap(c), nil
}
