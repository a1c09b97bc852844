package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"clipstream/internal/models"
)

const defaultRequestTimeout = 30 * time.Second

// S3Config describes the bucket used for binary assets. Endpoint and
// PublicEndpoint are distinct so that uploads can target an internal address
// while stored URLs resolve through a CDN or public gateway.
type S3Config struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Prefix         string
	PublicEndpoint string
	UsePathStyle   bool
	RequestTimeout time.Duration
}

// Validate reports configuration errors that must fail startup.
func (cfg S3Config) Validate() error {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return fmt.Errorf("asset bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return fmt.Errorf("asset region is required")
	}
	return nil
}

func (cfg S3Config) requestTimeout() time.Duration {
	if cfg.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return cfg.RequestTimeout
}

// S3Client implements Client against an S3-compatible object store.
type S3Client struct {
	cfg    S3Config
	client *s3.Client
}

// NewS3Client builds the SDK client once at startup from explicit
// configuration; credentials are never read from ambient process state when
// AccessKey and SecretKey are supplied.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Client{cfg: cfg, client: client}, nil
}

// Upload stores the local file under a freshly generated key and returns the
// reference a record should embed. The caller keeps ownership of the local
// file.
func (c *S3Client) Upload(ctx context.Context, src FileSource, kind models.AssetKind) (models.AssetReference, error) {
	if strings.TrimSpace(src.Path) == "" {
		return models.AssetReference{}, ErrMissingAsset
	}
	file, err := os.Open(src.Path)
	if err != nil {
		return models.AssetReference{}, fmt.Errorf("open asset file: %w", err)
	}
	defer file.Close()

	key := c.storageKey(kind, src.OriginalName)
	ctx, cancel := context.WithTimeout(ctx, c.cfg.requestTimeout())
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if src.ContentType != "" {
		input.ContentType = aws.String(src.ContentType)
	}
	if _, err := c.client.PutObject(ctx, input); err != nil {
		return models.AssetReference{}, fmt.Errorf("%w: put object %s: %v", ErrUploadFailed, key, err)
	}
	return models.AssetReference{
		URL:       c.publicURL(key),
		StorageID: key,
		Kind:      kind,
	}, nil
}

// Delete removes the object named by the storage identifier.
func (c *S3Client) Delete(ctx context.Context, storageID string) error {
	key := strings.TrimSpace(storageID)
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.requestTimeout())
	defer cancel()
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (c *S3Client) storageKey(kind models.AssetKind, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	key := fmt.Sprintf("%s/%s%s", kind, uuid.New(), ext)
	prefix := strings.Trim(strings.TrimSpace(c.cfg.Prefix), "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func (c *S3Client) publicURL(key string) string {
	base := strings.TrimRight(strings.TrimSpace(c.cfg.PublicEndpoint), "/")
	if base != "" {
		return base + "/" + key
	}
	endpoint := strings.TrimRight(strings.TrimSpace(c.cfg.Endpoint), "/")
	if endpoint != "" {
		return endpoint + "/" + c.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.cfg.Bucket, c.cfg.Region, key)
}
