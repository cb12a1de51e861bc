package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"xprexx/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3_ENDPOINTが未設定
var ErrNotConfigured = errors.New("report storage is not configured")

// CSVレポートの置き場所（MinIO / S3）
type MinioReportStore struct {
	client *minio.Client
	bucket string
	region string
}

func NewMinioReportStore(cfg config.Config) (*MinioReportStore, error) {
	if cfg.S3Endpoint == "" {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioReportStore{client: client, bucket: cfg.S3Bucket, region: cfg.S3Region}, nil
}

// 起動時に1回呼ぶ
func (s *MinioReportStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioReportStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, body, size, opts); err != nil {
		return fmt.Errorf("upload report %s: %w", key, err)
	}
	return nil
}

func (s *MinioReportStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf(`attachment; filename=%q`, path.Base(key)))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign report %s: %w", key, err)
	}
	return u.String(), nil
}
