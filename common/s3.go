package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config selects where rendered videos are stored. Empty values fall back
// to the standard AWS config/credential chain.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Profile selects a named shared config/credentials profile.
	Profile string
	// Endpoint points at an S3-compatible store (MinIO, R2).
	Endpoint string
	// UsePathStyle forces path-style addressing, needed by most S3-compatible stores.
	UsePathStyle bool
}

// S3ConfigFromEnv reads S3_BUCKET, S3_PREFIX, AWS_REGION, AWS_PROFILE,
// S3_ENDPOINT and S3_PATH_STYLE.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Bucket:       os.Getenv("S3_BUCKET"),
		Prefix:       os.Getenv("S3_PREFIX"),
		Region:       os.Getenv("AWS_REGION"),
		Profile:      os.Getenv("AWS_PROFILE"),
		Endpoint:     os.Getenv("S3_ENDPOINT"),
		UsePathStyle: os.Getenv("S3_PATH_STYLE") == "true",
	}
}

// S3 wraps the AWS SDK for Go v2 S3 client with the few calls the
// publisher needs.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 builds a client for cfg.Bucket.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket not configured")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: c, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key joins the configured prefix and name.
func (s *S3) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// URI is the s3:// location of key.
func (s *S3) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// Put uploads body to key. If contentType is non-empty, it is set on the object.
func (s *S3) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	_, err := s.client.PutObject(ctx, in)
	return err
}

// PutFile uploads a local file, guessing the content type from its extension.
func (s *S3) PutFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ext := filepath.Ext(path)
	contentType := mime.TypeByExtension(ext)
	switch {
	case contentType != "":
	case ext == ".mp4":
		// not in Go's builtin table; depends on the host mime.types otherwise
		contentType = "video/mp4"
	default:
		contentType = "application/octet-stream"
	}
	return s.Put(ctx, key, f, contentType)
}

// Exists returns true if the object exists (HTTP 200 from HeadObject); false if 404/NotFound.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var respErr *http.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}

	return false, err
}
