package mediaservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/sushihentaime/postboard/internal/common"
)

// S3Config options for the S3 gateway
type S3Config struct {
	Region          string        // AWS region, defaults to us-east-1
	Bucket          string        // bucket name
	AccessKeyID     string        // static credentials; default chain when empty
	SecretAccessKey string        // static credentials; default chain when empty
	Endpoint        string        // custom endpoint for S3-compatible services
	UsePathStyle    bool          // path-style addressing, needed by MinIO
	PublicBaseURL   string        // prefix of the URLs handed to clients
	Timeout         time.Duration // bound on every call to the store
}

type s3API interface {
	manager.UploadAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Gateway is a Gateway backed by an S3-compatible bucket.
type S3Gateway struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	baseURL  string
	timeout  time.Duration
}

// NewS3Gateway creates the S3 client from cfg.
func NewS3Gateway(ctx context.Context, cfg S3Config) (*S3Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return newS3Gateway(s3.NewFromConfig(awsCfg, s3Options...), cfg), nil
}

func newS3Gateway(client s3API, cfg S3Config) *S3Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &S3Gateway{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		baseURL:  strings.TrimSuffix(publicBaseURL(cfg), "/"),
		timeout:  cfg.Timeout,
	}
}

func publicBaseURL(cfg S3Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return cfg.PublicBaseURL
	case cfg.Endpoint != "":
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// Upload stores r under a fresh key and returns its public URL.
func (g *S3Gateway) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	key := newObjectKey(contentType)

	_, err := g.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", classify(ctx, "upload", err)
	}

	return g.baseURL + "/" + key, nil
}

// Delete removes the object behind url. S3 reports success for missing keys.
func (g *S3Gateway) Delete(ctx context.Context, url string) error {
	key, ok := g.key(url)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil
		}
		return classify(ctx, "delete", err)
	}

	return nil
}

func (g *S3Gateway) Owns(url string) bool {
	_, ok := g.key(url)
	return ok
}

func (g *S3Gateway) key(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, g.baseURL+"/")
	if !ok || !strings.HasPrefix(key, keyPrefix) {
		return "", false
	}
	return key, true
}

func newObjectKey(contentType string) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return keyPrefix + uuid.NewString() + ext
}

// classify maps a store failure onto the timeout or unavailable error kinds.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", common.ErrUpstreamTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", common.ErrStorageUnavailable, op, err)
}
