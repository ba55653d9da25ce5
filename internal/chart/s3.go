package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v5"
)

const (
	defaultS3MaxTries      = 3
	defaultS3RetryInterval = 500 * time.Millisecond
)

// S3Client is the subset of the S3 API used by S3Sink.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Logger *slog.Logger
	Client S3Client

	Bucket string
	Region string
	// Prefix is prepended to every object key.
	Prefix string
	// EndpointURL selects an S3 compatible service such as MinIO.
	EndpointURL string
	// PublicURL is the base URL objects are served from. When empty it is
	// derived from the endpoint or the bucket and region.
	PublicURL string

	AccessKeyID     string
	SecretAccessKey string

	MaxTries      uint
	RetryInterval time.Duration
}

func (c *S3Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Bucket == "" {
		return errors.New("s3 bucket is required")
	}
	if c.Client == nil && c.Region == "" && c.EndpointURL == "" {
		return errors.New("s3 region or endpoint is required")
	}
	if c.MaxTries == 0 {
		c.MaxTries = defaultS3MaxTries
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = defaultS3RetryInterval
	}
	c.Prefix = strings.Trim(c.Prefix, "/")
	return nil
}

// S3Sink uploads charts to an S3 bucket.
type S3Sink struct {
	cfg     *S3Config
	client  S3Client
	baseURL string
}

// NewS3Sink creates a sink. When cfg.Client is nil an S3 client is built from
// the static keys if both are set, otherwise from the default AWS chain.
func NewS3Sink(ctx context.Context, cfg *S3Config) (*S3Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := cfg.Client
	if client == nil {
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if cfg.EndpointURL != "" {
			client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
				o.UsePathStyle = true
			})
			cfg.Logger.Info("Using custom S3 endpoint", "endpoint", cfg.EndpointURL)
		} else {
			client = s3.NewFromConfig(awsCfg)
		}
	}

	return &S3Sink{
		cfg:     cfg,
		client:  client,
		baseURL: publicBaseURL(cfg),
	}, nil
}

func (s *S3Sink) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := name
	if s.cfg.Prefix != "" {
		key = s.cfg.Prefix + "/" + name
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (*s3.PutObjectOutput, error) {
		if attempt > 0 {
			s.cfg.Logger.Warn("Failed to upload chart, retrying", "key", key, "attempt", attempt)
		}
		attempt++
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("image/png"),
		})
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(s.cfg.MaxTries))
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return s.baseURL + "/" + key, nil
}

func publicBaseURL(cfg *S3Config) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/")
	case cfg.EndpointURL != "":
		return fmt.Sprintf("%s/%s", strings.TrimRight(cfg.EndpointURL, "/"), cfg.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}
