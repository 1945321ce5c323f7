// Package minio stores point-in-time derivative snapshots in an
// S3-compatible bucket.
package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/insurance-derivatives/internal/config"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

const connectTimeout = 10 * time.Second

// ObjectAPI is the subset of the object store the snapshot store needs.
// GetObject must report a missing key from the call itself, not from the
// first read.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

// sdkAPI adapts *minio.Client to ObjectAPI.
type sdkAPI struct {
	*minio.Client
}

func (a sdkAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := a.Client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

var ErrClientClosed = errors.New(errors.ErrCodeInternal, "object store client is closed")

// Client owns the connection to the snapshot bucket.
type Client struct {
	api    ObjectAPI
	cfg    config.SnapshotConfig
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient connects to cfg.Endpoint and creates the bucket when missing.
func NewClient(cfg config.SnapshotConfig, log logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.NewValidation("snapshot endpoint and bucket are required")
	}
	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create object store client")
	}

	c := NewClientWithAPI(sdkAPI{sdk}, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("Object store connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI wraps an existing ObjectAPI. It does not touch the network.
func NewClientWithAPI(api ObjectAPI, cfg config.SnapshotConfig, log logging.Logger) *Client {
	if cfg.Region == "" {
		cfg.Region = config.DefaultSnapshotRegion
	}
	return &Client{api: api, cfg: cfg, logger: log}
}

// EnsureBucket creates the snapshot bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to check bucket existence")
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.cfg.Bucket, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
		// Another process may have won the race.
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create bucket "+c.cfg.Bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.cfg.Bucket))
	return nil
}

func (c *Client) Bucket() string { return c.cfg.Bucket }

func (c *Client) Prefix() string { return c.cfg.Prefix }

// API returns the underlying object API, or ErrClientClosed after Close.
func (c *Client) API() (ObjectAPI, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	return c.api, nil
}

// HealthCheck reports whether the bucket is reachable and how long it took.
func (c *Client) HealthCheck(ctx context.Context) (time.Duration, error) {
	api, err := c.API()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	exists, err := api.BucketExists(ctx, c.cfg.Bucket)
	latency := time.Since(start)
	if err != nil {
		return latency, errors.Wrap(err, errors.ErrCodeInternal, "object store unreachable")
	}
	if !exists {
		return latency, errors.NotFound("bucket " + c.cfg.Bucket + " missing")
	}
	return latency, nil
}

// Close marks the client closed. The SDK holds no connection to release.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// isNoSuchKey reports whether err is the store's missing-object response.
func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
