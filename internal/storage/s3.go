package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// S3Options holds the connection settings for the object store.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// Client uploads snapshots to an S3 compatible bucket.
type Client struct {
	client *minio.Client
}

// NewS3Client creates a client for the given endpoint.
func NewS3Client(opts S3Options) (*Client, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	log.Infof("S3 client configured for endpoint %s (region %s)", opts.Endpoint, opts.Region)
	return &Client{client: client}, nil
}

// Upload writes r to bucket/objectName, replacing any existing object.
func (c *Client) Upload(ctx context.Context, bucket, objectName string, r io.Reader, size int64) error {
	info, err := c.client.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to bucket %s: %w", objectName, bucket, err)
	}

	log.Debugf("Uploaded %s/%s (%d bytes, etag %s)", bucket, objectName, info.Size, info.ETag)
	return nil
}
