package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatauth/internal/common"
	sc "github.com/dmitrijs2005/chatauth/internal/server/config"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

const (
	opUpload  = "upload image"
	opDestroy = "destroy image"
)

// allowedTypes are the image formats accepted as avatars.
var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps avatars in an S3-compatible bucket. The asset id is the
// object key.
type S3Store struct {
	client    s3API
	bucket    string
	publicURL string
	maxBytes  int64
	now       func() time.Time
	newID     func() string
}

// NewS3Store builds a store from the server config.
func NewS3Store(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3Store(client, cfg.S3Bucket, cfg.S3PublicURL, cfg.AvatarMaxBytes), nil
}

func newS3Store(client s3API, bucket, publicURL string, maxBytes int64) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

func (s *S3Store) storageKey(ext string) string {
	d := s.now().UTC()
	return fmt.Sprintf("avatars/%d/%d/%d/%s%s", d.Year(), d.Month(), d.Day(), s.newID(), ext)
}

func (s *S3Store) url(key string) string {
	return s.publicURL + "/" + s.bucket + "/" + key
}

// detect returns the sniffed MIME type of data if it is an accepted image.
func (s *S3Store) detect(data []byte) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("file is %d bytes, limit is %d", len(data), s.maxBytes)
	}
	mt := mimetype.Detect(data)
	for _, allowed := range allowedTypes {
		if mt.Is(allowed) {
			return mt, nil
		}
	}
	return nil, fmt.Errorf("content type %s is not an accepted image", mt.String())
}

func (s *S3Store) UploadImage(ctx context.Context, data []byte) (models.AssetInfo, error) {
	mt, err := s.detect(data)
	if err != nil {
		return models.AssetInfo{}, common.NewAssetError(common.ErrInvalidFileType, opUpload, err)
	}

	key := s.storageKey(mt.Extension())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mt.String()),
	})
	if err != nil {
		return models.AssetInfo{}, common.NewAssetError(common.ErrUpstreamAssetFailure, opUpload, err)
	}

	return models.AssetInfo{AssetID: key, URL: s.url(key)}, nil
}

func (s *S3Store) DestroyImage(ctx context.Context, assetID string) error {
	if assetID == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(assetID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil
		}
		return common.NewAssetError(common.ErrUpstreamAssetFailure, opDestroy, err)
	}
	return nil
}
