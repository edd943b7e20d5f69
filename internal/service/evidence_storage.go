package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"quiz_engine_backend/internal/config"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// EvidenceStorage 违规证据（客户端截图）的对象存储
type EvidenceStorage interface {
	PutScreenshot(ctx context.Context, attemptID uint, b64 string) (string, error)
}

type MinioEvidenceStorage struct {
	client *minio.Client
	bucket string
}

func NewMinioEvidenceStorage(cfg *config.StorageConfig) (*MinioEvidenceStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioEvidenceStorage{client: client, bucket: cfg.MinioBucket}, nil
}

// PutScreenshot 保存 base64 截图，返回对象路径
func (s *MinioEvidenceStorage) PutScreenshot(ctx context.Context, attemptID uint, b64 string) (string, error) {
	// 允许 data URL 前缀
	if idx := strings.Index(b64, ","); idx != -1 && strings.HasPrefix(b64, "data:") {
		b64 = b64[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode evidence screenshot: %w", err)
	}

	objectName := fmt.Sprintf("evidence/%d/%s.png", attemptID, uuid.New().String())
	_, err = s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s", s.bucket, objectName), nil
}
