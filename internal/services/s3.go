package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"cms0/internal/config"
	"cms0/internal/models"
	"cms0/internal/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

var _ models.FileURLGenerator = (*S3Service)(nil)

type S3Service struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	endpoint string
	region   string
	provider string
	logger   *logger.Logger
}

// NewS3Service builds a client for AWS S3 or an S3-compatible endpoint and checks that
// the bucket is reachable with the given credentials.
func NewS3Service(ctx context.Context, cfg config.StorageConfig) (*S3Service, error) {
	log := logger.New("S3")

	if !cfg.S3.Enabled() {
		return nil, log.Error("S3 is not configured", fmt.Errorf("bucket, access key and secret key are required"))
	}

	region := cfg.S3.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, "")),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, log.Error("Unable to load SDK config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", cfg.S3.Endpoint))
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.S3.BucketName)}); err != nil {
		return nil, log.Error("Failed to verify S3 bucket %s", err, cfg.S3.BucketName)
	}

	log.Success("S3 storage ready for bucket %s", cfg.S3.BucketName)
	return &S3Service{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.S3.BucketName,
		endpoint: cfg.S3.Endpoint,
		region:   region,
		provider: cfg.Provider,
		logger:   log,
	}, nil
}

// ObjectKey places an upload under its affiliate with a random name that keeps the extension.
func ObjectKey(affiliateID, filename string) string {
	return path.Join("affiliates", affiliateID, uuid.NewString()+filepath.Ext(filename))
}

// UploadFile stores file under key and returns its public URL.
func (s *S3Service) UploadFile(ctx context.Context, file []byte, key string, contentType string) (string, error) {
	s.logger.Debug("Uploading %s (%d bytes)", key, len(file))

	acl := types.ObjectCannedACLPrivate
	if s.provider == "r2" {
		acl = types.ObjectCannedACLPublicRead
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ACL:         acl,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", s.logger.Error("Failed to upload %s", err, key)
	}

	return s.PublicURL(key), nil
}

// PublicURL is the unsigned URL of key.
func (s *S3Service) PublicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("https://%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *S3Service) GetSignedURL(ctx context.Context, key string, duration time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(duration))
	if err != nil {
		return "", s.logger.Error("Failed to presign %s", err, key)
	}
	return req.URL, nil
}
