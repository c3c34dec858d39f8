package infra

import (
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinioClient builds a MinIO client for the configured S3-compatible
// endpoint. Returns nil when no endpoint is configured so callers can fall
// back to filesystem storage in development.
func NewMinioClient(cfg *Config) (*minio.Client, error) {
	if cfg == nil || cfg.S3Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return client, nil
}
