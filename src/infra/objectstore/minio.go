package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/music"
)

// Gateway stores and retrieves audio blobs in an S3-compatible bucket.
// It is safe for concurrent use by many item pipelines.
type Gateway struct {
	client *minio.Client
	core   *minio.Core
	config *config.Manager
}

// NewGateway creates the object store client and ensures the bucket exists.
func NewGateway(ctx context.Context, cfg *config.Manager) (*Gateway, error) {
	storage := cfg.Get().Storage
	client, err := minio.New(storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(storage.AccessKeyID, storage.SecretAccessKey, ""),
		Secure: storage.UseSSL,
		Region: storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, storage.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", storage.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, storage.Bucket, minio.MakeBucketOptions{Region: storage.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", storage.Bucket, err)
		}
		slog.Info("Created object store bucket", "bucket", storage.Bucket)
	}

	return &Gateway{
		client: client,
		core:   &minio.Core{Client: client},
		config: cfg,
	}, nil
}

// Put uploads a blob under key, overwriting any existing object. The
// replacement workflow relies on that overwrite. Inputs above the configured
// multipart threshold go through an explicit multipart upload so a failed
// upload can be aborted without leaving billable orphaned parts.
func (g *Gateway) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	storage := g.config.Get().Storage
	if size >= storage.MultipartThreshold {
		if err := g.putMultipart(ctx, key, contentType, r, size); err != nil {
			return "", err
		}
		return g.PublicURL(key), nil
	}

	_, err := g.client.PutObject(ctx, storage.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", g.mapError("objectstore.Put", key, err)
	}
	return g.PublicURL(key), nil
}

// PutFile uploads a local file under key.
func (g *Gateway) PutFile(ctx context.Context, key, contentType, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", music.E(music.KindValidation, "objectstore.PutFile", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", music.E(music.KindValidation, "objectstore.PutFile", err)
	}
	return g.Put(ctx, key, contentType, f, info.Size())
}

// putMultipart runs initiate -> upload parts -> complete, aborting the
// upload on any part failure.
func (g *Gateway) putMultipart(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	storage := g.config.Get().Storage
	partSize := storage.PartSize

	uploadID, err := g.core.NewMultipartUpload(ctx, storage.Bucket, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return g.mapError("objectstore.putMultipart", key, err)
	}

	var parts []minio.CompletePart
	var uploaded int64
	for partNumber := 1; uploaded < size; partNumber++ {
		chunk := partSize
		if remaining := size - uploaded; remaining < chunk {
			chunk = remaining
		}
		part, err := g.core.PutObjectPart(ctx, storage.Bucket, key, uploadID, partNumber,
			io.LimitReader(r, chunk), chunk, minio.PutObjectPartOptions{})
		if err != nil {
			if abortErr := g.core.AbortMultipartUpload(context.WithoutCancel(ctx), storage.Bucket, key, uploadID); abortErr != nil {
				slog.Error("Failed to abort multipart upload", "key", key, "uploadID", uploadID, "error", abortErr)
			}
			return g.mapError("objectstore.putMultipart", key, err)
		}
		parts = append(parts, minio.CompletePart{PartNumber: partNumber, ETag: part.ETag})
		uploaded += chunk
	}

	if _, err := g.core.CompleteMultipartUpload(ctx, storage.Bucket, key, uploadID, parts, minio.PutObjectOptions{}); err != nil {
		if abortErr := g.core.AbortMultipartUpload(context.WithoutCancel(ctx), storage.Bucket, key, uploadID); abortErr != nil {
			slog.Error("Failed to abort multipart upload", "key", key, "uploadID", uploadID, "error", abortErr)
		}
		return g.mapError("objectstore.putMultipart", key, err)
	}
	slog.Debug("Multipart upload completed", "key", key, "parts", len(parts), "size", size)
	return nil
}

// Get opens a stored blob for reading. The caller closes the reader.
func (g *Gateway) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	storage := g.config.Get().Storage
	obj, err := g.client.GetObject(ctx, storage.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, g.mapError("objectstore.Get", key, err)
	}
	// GetObject is lazy; surface missing keys now rather than at first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, g.mapError("objectstore.Get", key, err)
	}
	return obj, nil
}

// Exists reports whether an object is stored under key.
func (g *Gateway) Exists(ctx context.Context, key string) (bool, error) {
	storage := g.config.Get().Storage
	if _, err := g.client.StatObject(ctx, storage.Bucket, key, minio.StatObjectOptions{}); err != nil {
		mapped := g.mapError("objectstore.Exists", key, err)
		if music.IsNotFound(mapped) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

// Delete removes a stored blob. Deleting a missing key is not an error at
// the S3 layer and is treated as a no-op here too.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	storage := g.config.Get().Storage
	if err := g.client.RemoveObject(ctx, storage.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return g.mapError("objectstore.Delete", key, err)
	}
	return nil
}

// PublicURL builds the externally reachable URL for a key, preferring the
// configured public domain over the raw endpoint.
func (g *Gateway) PublicURL(key string) string {
	storage := g.config.Get().Storage
	if storage.PublicDomain != "" {
		return fmt.Sprintf("https://%s/%s", storage.PublicDomain, key)
	}
	scheme := "http"
	if storage.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, storage.Endpoint, storage.Bucket, url.PathEscape(key))
}

// mapError translates S3 error responses into the domain taxonomy so the
// orchestrator's retry policy can tell retryable network failures from
// permission or validation problems.
func (g *Gateway) mapError(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return music.Errorf(music.KindNotFound, op, "object %s: %v", key, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
		"EntityTooLarge", "EntityTooSmall", "InvalidArgument", "QuotaExceeded":
		return music.Errorf(music.KindValidation, op, "object %s: %v", key, err)
	}
	if errors.Is(err, context.Canceled) {
		return music.E(music.KindTransient, op, err)
	}
	// Network, timeout and unclassified server errors are retryable.
	return music.Errorf(music.KindTransient, op, "object %s: %v", key, err)
}
