package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveConfig points at an S3-compatible bucket for exported copies.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// LinkTTL bounds presigned download links. Zero means 24 hours.
	LinkTTL time.Duration
}

type objectStore interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Archive keeps exported review copies in object storage.
type Archive struct {
	objects objectStore
	bucket  string
	linkTTL time.Duration
	now     func() time.Time
	logger  *zap.SugaredLogger
}

// NewArchive connects to the bucket in cfg, creating it when missing.
func NewArchive(ctx context.Context, cfg ArchiveConfig, logger *zap.SugaredLogger) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("archive: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("archive: create bucket: %w", err)
		}
	}
	return newArchive(client, cfg.Bucket, cfg.LinkTTL, logger), nil
}

func newArchive(objects objectStore, bucket string, linkTTL time.Duration, logger *zap.SugaredLogger) *Archive {
	if linkTTL <= 0 {
		linkTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Archive{objects: objects, bucket: bucket, linkTTL: linkTTL, now: time.Now, logger: logger}
}

// Store uploads result under the document's prefix and returns a presigned
// download link.
func (a *Archive) Store(ctx context.Context, documentID string, result *Result) (string, error) {
	key := a.objectKey(documentID, result.Filename)
	_, err := a.objects.PutObject(ctx, a.bucket, key, bytes.NewReader(result.Data), int64(len(result.Data)), minio.PutObjectOptions{
		ContentType:        result.MimeType,
		ContentDisposition: "attachment; filename=\"" + result.Filename + "\"",
	})
	if err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", key, err)
	}
	link, err := a.objects.PresignedGetObject(ctx, a.bucket, key, a.linkTTL, nil)
	if err != nil {
		return "", fmt.Errorf("archive: presign %s: %w", key, err)
	}
	a.logger.Infow("export archived", "document_id", documentID, "object", key, "bytes", len(result.Data))
	return link.String(), nil
}

func (a *Archive) objectKey(documentID, filename string) string {
	id := strings.Trim(strings.ReplaceAll(documentID, "/", "_"), ".")
	if id == "" {
		id = "unknown"
	}
	return id + "/" + a.now().UTC().Format("20060102T150405Z") + "-" + filename
}
