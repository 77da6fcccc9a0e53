package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/chirino/taskmate/internal/config"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/chirino/taskmate/internal/tempfiles"
)

func init() {
	registryupload.Register(registryupload.Plugin{
		Name:   "s3",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func load(ctx context.Context) (registryupload.FileStore, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 upload store: S3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("s3 upload store: load AWS config: %w", err)
	}
	usePathStyle := cfg.S3UsePathStyle
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return &BucketStore{
		client:  client,
		bucket:  cfg.S3Bucket,
		prefix:  strings.Trim(strings.TrimSpace(cfg.S3Prefix), "/"),
		tempDir: cfg.ResolvedTempDir(),
	}, nil
}

// BucketStore keeps uploaded files as objects in an S3 bucket.
type BucketStore struct {
	client  *s3.Client
	bucket  string
	prefix  string
	tempDir string
}

// key applies the configured prefix. Stored names never include it.
func (s *BucketStore) key(name string) string {
	if s.prefix != "" {
		return s.prefix + "/" + name
	}
	return name
}

func (s *BucketStore) Store(ctx context.Context, name string, data io.Reader, maxSize int64, contentType string) (*registryupload.StoreResult, error) {
	if !registryupload.ValidName(name) {
		return nil, fmt.Errorf("s3 upload store: invalid name %q", name)
	}
	key := s.key(name)

	// PutObject needs a seekable body with a known length.
	spool, err := tempfiles.NewSpool(s.tempDir, "taskmate-s3-upload-*", data, maxSize)
	if errors.Is(err, tempfiles.ErrLimit) {
		return nil, registryupload.ErrTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("s3 upload store: %w", err)
	}
	defer spool.Discard()
	if err := spool.Rewind(); err != nil {
		return nil, fmt.Errorf("s3 upload store: rewind spool: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          spool.File,
		ContentLength: aws.Int64(spool.Size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err = s.client.PutObject(ctx, input, func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware)
	})
	if err != nil {
		return nil, fmt.Errorf("s3 upload store: put object: %w", err)
	}

	return &registryupload.StoreResult{
		Name:   name,
		Size:   spool.Size,
		SHA256: spool.SHA256,
	}, nil
}

func (s *BucketStore) Open(ctx context.Context, name string) (io.ReadCloser, *registryupload.FileInfo, error) {
	if !registryupload.ValidName(name) {
		return nil, nil, registryupload.ErrNotFound
	}
	key := s.key(name)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil, registryupload.ErrNotFound
		}
		return nil, nil, fmt.Errorf("s3 upload store: get object: %w", err)
	}
	info := &registryupload.FileInfo{
		Size:        aws.ToInt64(resp.ContentLength),
		ContentType: aws.ToString(resp.ContentType),
	}
	return resp.Body, info, nil
}

func (s *BucketStore) Delete(ctx context.Context, name string) error {
	if !registryupload.ValidName(name) {
		return registryupload.ErrNotFound
	}
	key := s.key(name)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("s3 upload store: delete object: %w", err)
	}
	return nil
}
