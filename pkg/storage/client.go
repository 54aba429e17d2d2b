// Package storage wraps the object store used for property media and
// brochures. The backend issues time-limited signed PUT URLs and later
// confirms object existence; both are fallible remote calls.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// Config holds object storage connection configuration
type Config struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	SignedURLTTL time.Duration
}

// Backend is the capability the upload service depends on.
type Backend interface {
	SignedPutURL(ctx context.Context, key string, contentType string) (string, time.Time, error)
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// Client wraps a minio client with logging and the laurel bucket.
type Client struct {
	mc     *minio.Client
	cfg    Config
	logger ectologger.Logger
}

// NewClient creates a new storage client and verifies the bucket exists.
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client for %s: %w", cfg.Endpoint, err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	logger.Infof("Connected to object storage at %s (bucket %s)", cfg.Endpoint, cfg.Bucket)

	return &Client{mc: mc, cfg: cfg, logger: logger}, nil
}

// SignedPutURL issues a time-limited signed write URL for the given key.
func (c *Client) SignedPutURL(ctx context.Context, key string, contentType string) (string, time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Client.SignedPutURL")
	defer span.End()

	expiresAt := time.Now().UTC().Add(c.cfg.SignedURLTTL)
	u, err := c.mc.PresignedPutObject(ctx, c.cfg.Bucket, key, c.cfg.SignedURLTTL)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to presign upload URL")
		return "", time.Time{}, err
	}

	return u.String(), expiresAt, nil
}

// ObjectExists confirms the client actually uploaded the object.
func (c *Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "storage.Client.ObjectExists")
	defer span.End()

	_, err := c.mc.StatObject(ctx, c.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		c.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to stat object")
		return false, err
	}

	return true, nil
}
