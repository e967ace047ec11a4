package upload

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zinc-sig/easysweep/internal/kvconfig"
)

// MinioProvider uploads to a MinIO or S3 bucket.
type MinioProvider struct {
	client       *minio.Client
	bucket       string
	prefix       string
	region       string
	createBucket bool
	bucketReady  bool
}

// NewMinioProvider returns an unconfigured provider.
func NewMinioProvider() *MinioProvider {
	return &MinioProvider{}
}

func (m *MinioProvider) Name() string {
	return "minio"
}

// Configure reads endpoint, access_key, secret_key and bucket, plus the
// optional secure, region, prefix and create_bucket keys. An http:// or
// https:// endpoint decides secure on its own. No request is made here.
func (m *MinioProvider) Configure(config map[string]any) error {
	endpoint, ok := kvconfig.String(config, "endpoint")
	if !ok {
		return fmt.Errorf("minio: endpoint is required")
	}
	accessKey, ok := kvconfig.String(config, "access_key")
	if !ok {
		return fmt.Errorf("minio: access_key is required")
	}
	secretKey, ok := kvconfig.String(config, "secret_key")
	if !ok {
		return fmt.Errorf("minio: secret_key is required")
	}
	bucket, ok := kvconfig.String(config, "bucket")
	if !ok {
		return fmt.Errorf("minio: bucket is required")
	}

	host, secure, err := parseEndpoint(endpoint, kvconfig.Bool(config, "secure", true))
	if err != nil {
		return err
	}
	region := kvconfig.StringOr(config, "region", "us-east-1")

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return fmt.Errorf("minio: failed to create client: %w", err)
	}

	m.client = client
	m.bucket = bucket
	m.prefix = kvconfig.StringOr(config, "prefix", "")
	m.region = region
	m.createBucket = kvconfig.Bool(config, "create_bucket", false)
	m.bucketReady = false
	return nil
}

func parseEndpoint(raw string, secure bool) (string, bool, error) {
	if !strings.Contains(raw, "://") {
		return raw, secure, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("minio: invalid endpoint URL %q", raw)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("minio: invalid endpoint URL %q: unsupported scheme %s", raw, u.Scheme)
	}
}

// ObjectName returns the key remotePath is stored under.
func (m *MinioProvider) ObjectName(remotePath string) string {
	if m.prefix == "" {
		return remotePath
	}
	return path.Join(m.prefix, remotePath)
}

func (m *MinioProvider) ensureBucket(ctx context.Context) error {
	if m.bucketReady {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("minio: failed to check bucket existence: %w", err)
	}
	if !exists {
		if !m.createBucket {
			return fmt.Errorf("minio: bucket %s does not exist", m.bucket)
		}
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return fmt.Errorf("minio: failed to create bucket %s: %w", m.bucket, err)
		}
	}
	m.bucketReady = true
	return nil
}

// Upload stores the content under the configured prefix.
func (m *MinioProvider) Upload(ctx context.Context, reader io.Reader, size int64, remotePath string) error {
	if m.client == nil {
		return fmt.Errorf("minio: provider not configured")
	}
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}

	objectName := m.ObjectName(remotePath)
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType(remotePath),
	})
	if err != nil {
		return fmt.Errorf("minio: failed to upload to %s: %w", objectName, err)
	}
	return nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".db", ".sqlite", ".sqlite3":
		return "application/vnd.sqlite3"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
