package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "equilake/config"
	"equilake/logger"
)

// S3Store is the durable Store implementation backed by an S3-compatible
// object store. S3 PutObject replaces the full object in a single request,
// which gives the atomic partition visibility the aggregator relies on.
type S3Store struct {
	client *s3.Client
	bucket string
	log    *logger.Log
}

// NewS3Store creates an S3Store from the storage configuration. Static
// credentials from config take precedence; otherwise the default AWS
// credential chain applies.
func NewS3Store(ctx context.Context, cfg appconfig.S3Config) (*S3Store, error) {
	log := logger.GetLogger()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_store").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	log.WithComponent("s3_store").WithFields(logger.Fields{
		"bucket":     cfg.Bucket,
		"region":     cfg.Region,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
	}).Info("s3 store initialized")

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		log:    log,
	}, nil
}

// Put uploads data under key, overwriting any existing object.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	log := s.log.WithComponent("s3_store").WithFields(logger.Fields{
		"operation": "put",
		"key":       key,
		"data_size": len(data),
	})

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeForKey(key)),
	})
	if err != nil {
		log.WithError(err).WithEnv("S3_BUCKET").Error("failed to upload to S3")
		return &StoreError{Op: "put", Key: key, Err: err}
	}

	log.Debug("uploaded to S3")
	return nil
}

// Get downloads the object stored under key. A missing object is reported
// as ErrNotFound so callers can distinguish it from I/O failures.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// List returns all object keys under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &StoreError{Op: "list", Key: prefix, Err: err}
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	return keys, nil
}

func contentTypeForKey(key string) string {
	if len(key) > 5 && key[len(key)-5:] == ".json" {
		return "application/json"
	}
	return "application/octet-stream"
}
