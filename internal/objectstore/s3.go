package objectstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
)

// S3Config configures the S3-compatible backend.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // override for S3-compatible stores (e.g. MinIO)
	AccessKeyID     string
	SecretAccessKey string
	CredentialsPath string // shared credentials file, alternative to static keys
}

// S3 backs the object-store port with the AWS SDK's S3 client.
type S3 struct {
	client *s3.S3
	bucket string
}

// NewS3 constructs an S3-backed store from cfg.
func NewS3(cfg S3Config) (*S3, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	} else if cfg.CredentialsPath != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewSharedCredentials(cfg.CredentialsPath, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "objectstore.NewS3", "failed to create AWS session", err)
	}

	return &S3{client: s3.New(sess), bucket: cfg.Bucket}, nil
}

func (s *S3) Put(ctx context.Context, key, localPath, contentType string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f, err := os.Open(localPath)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "objectstore.Put", "failed to open local file", err)
	}
	defer f.Close()

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "objectstore.Put", fmt.Sprintf("PutObject failed for key %s", key), err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.KindStorage, "objectstore.Exists", fmt.Sprintf("HeadObject failed for key %s", key), err)
	}
	return true, nil
}

func (s *S3) Size(ctx context.Context, key string) (int64, bool, error) {
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, apperrors.Wrap(apperrors.KindStorage, "objectstore.Size", fmt.Sprintf("HeadObject failed for key %s", key), err)
	}
	if out.ContentLength == nil {
		return 0, true, nil
	}
	return *out.ContentLength, true, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "objectstore.Delete", fmt.Sprintf("DeleteObject failed for key %s", key), err)
	}
	return nil
}

func (s *S3) URL(ctx context.Context, key string, signed bool, ttl time.Duration) (string, error) {
	if !signed {
		return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
	}
	ttl = clampTTL(ttl)
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindStorage, "objectstore.URL", fmt.Sprintf("presign failed for key %s", key), err)
	}
	return url, nil
}

func isNotFound(err error) bool {
	type statusCoder interface{ StatusCode() int }
	if sc, ok := err.(statusCoder); ok {
		return sc.StatusCode() == 404
	}
	return false
}

var _ Store = (*S3)(nil)
