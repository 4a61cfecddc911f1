// Package storage хранит скриншоты оплаты в S3-совместимом хранилище.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/config"
)

// ProofStore — куда кладутся скриншоты и откуда админ их смотрит.
type ProofStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	URL(ctx context.Context, key string) (string, error)
}

// ProofKey — ключ объекта для скриншота заявки.
func ProofKey(userID int64, txID, filename string) string {
	return fmt.Sprintf("proofs/%d/%s%s", userID, txID, path.Ext(filename))
}

// S3 — ProofStore поверх aws-sdk-go-v2.
type S3 struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	presignTTL time.Duration
}

// NewS3 собирает клиент со статическими ключами. S3_ENDPOINT задаёт
// совместимое хранилище (MinIO и т.п.), тогда используется path-style.
func NewS3(ctx context.Context, cfg *config.Config) (*S3, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET не задан")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("S3_ACCESS_KEY или S3_SECRET_KEY не заданы")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("конфигурация AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	log.WithField("bucket", cfg.S3Bucket).Info("Хранилище скриншотов S3 подключено")

	return &S3{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.S3Bucket,
		presignTTL: cfg.S3PresignTTL,
	}, nil
}

func (s *S3) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("загрузка %s в S3: %w", key, err)
	}
	return nil
}

// URL возвращает временную ссылку на объект.
func (s *S3) URL(ctx context.Context, key string) (string, error) {
	presigned, err := s.presigner.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		},
		func(po *s3.PresignOptions) {
			po.Expires = s.presignTTL
		},
	)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return presigned.URL, nil
}
