package minio

import (
	"context"
	"fmt"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage reads uploads from one bucket and writes optimized videos to
// another. Locations are object keys.
type Storage struct {
	client       *miniogo.Client
	uploadBucket string
	outputBucket string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UploadBucket string
	OutputBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:       client,
		uploadBucket: cfg.UploadBucket,
		outputBucket: cfg.OutputBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploadBucket, s.outputBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) Fetch(ctx context.Context, location, destPath string) (string, error) {
	if err := s.client.FGetObject(ctx, s.uploadBucket, location, destPath, miniogo.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download %s: %w", location, err)
	}
	return destPath, nil
}

func (s *Storage) Publish(ctx context.Context, localPath, location, contentType string) error {
	_, err := s.client.FPutObject(ctx, s.outputBucket, location, localPath, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", location, err)
	}
	return nil
}

// Remove deletes an optimized video. MinIO treats a missing key as success.
func (s *Storage) Remove(ctx context.Context, location string) error {
	if err := s.client.RemoveObject(ctx, s.outputBucket, location, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", location, err)
	}
	return nil
}
