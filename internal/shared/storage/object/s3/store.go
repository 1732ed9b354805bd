package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"findoc-gateway/internal/shared/storage/object"
)

// Options selects the bucket and how objects are written.
type Options struct {
	Region string
	Bucket string
	Prefix string
	// KMSKeyID switches server-side encryption from AES256 to SSE-KMS.
	KMSKeyID string
	// Endpoint targets an S3-compatible service with path-style addressing.
	Endpoint string
}

// Store implements object.Store on an S3 bucket.
type Store struct {
	client *s3.Client
	opts   Options
}

// New loads the default AWS configuration and returns a store for opts.Bucket.
func New(ctx context.Context, opts Options) (*Store, error) {
	opts.Bucket = strings.TrimSpace(opts.Bucket)
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	opts.Prefix = strings.Trim(strings.TrimSpace(opts.Prefix), "/")
	opts.KMSKeyID = strings.TrimSpace(opts.KMSKeyID)

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{client: client, opts: opts}, nil
}

func (s *Store) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	switch {
	case s.opts.Prefix == "":
		return key
	case key == "":
		return s.opts.Prefix
	default:
		return s.opts.Prefix + "/" + key
	}
}

// Get downloads the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	k := s.objectKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", object.ErrNotFound, k)
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", s.opts.Bucket, k, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s/%s: %w", s.opts.Bucket, k, err)
	}
	return data, nil
}

// Put uploads data to key with server-side encryption.
func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) error {
	k := s.objectKey(key)
	if _, err := s.client.PutObject(ctx, s.putInput(k, contentType, data)); err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", s.opts.Bucket, k, err)
	}
	return nil
}

func (s *Store) putInput(key, contentType string, data []byte) *s3.PutObjectInput {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if s.opts.KMSKeyID != "" {
		in.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		in.SSEKMSKeyId = aws.String(s.opts.KMSKeyID)
	} else {
		in.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}
	return in
}

// Delete removes the object. S3 treats a missing key as success.
func (s *Store) Delete(ctx context.Context, key string) error {
	k := s.objectKey(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", s.opts.Bucket, k, err)
	}
	return nil
}

var _ object.Store = (*Store)(nil)
