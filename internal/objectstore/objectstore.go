// Package objectstore uploads and retrieves replay binaries from an
// S3-compatible bucket (Supabase Storage), with a local-filesystem
// fallback when the bucket is unreachable or the upload fails. Keys
// follow "{match_id}/player_{player_id}.{ext}" with idempotent-overwrite
// semantics: on a 409 conflict it deletes the existing object and
// re-uploads.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// Store is the replay-binary object store collaborator.
type Store interface {
	// Put uploads data under key and returns either an object-store URL or
	// a local filesystem path, depending on which path succeeded.
	Put(ctx context.Context, key string, data []byte) (ref string, err error)

	// Get reads a previously stored replay back by its StorageRef.
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Options configures New.
type Options struct {
	Endpoint  string // empty disables the S3 client; local fallback only
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	LocalDir  string // fallback directory when the bucket is unreachable
	Logger    *zap.SugaredLogger
}

type store struct {
	client   *s3.Client
	bucket   string
	localDir string
	logger   *zap.SugaredLogger
}

// New constructs the object store collaborator. A Store is always
// returned: when Endpoint is empty the S3 client is nil and every Put
// falls straight to the local directory.
func New(opts Options) (Store, error) {
	s := &store{
		bucket:   opts.Bucket,
		localDir: opts.LocalDir,
		logger:   opts.Logger,
	}
	if opts.Endpoint == "" {
		return s, os.MkdirAll(opts.LocalDir, 0o755)
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading object store config: %w", err)
	}

	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true // Supabase Storage, like most S3-compatibles, requires path-style addressing
	})
	return s, os.MkdirAll(opts.LocalDir, 0o755)
}

// Put uploads data under key with idempotent-overwrite semantics: on a 409
// (object exists under a conflicting condition) it deletes then re-uploads
// once before giving up and falling back to disk.
func (s *store) Put(ctx context.Context, key string, data []byte) (string, error) {
	if s.client == nil {
		return s.putLocal(key, data)
	}

	url, err := s.putRemote(ctx, key, data)
	if err == nil {
		return url, nil
	}

	if s.logger != nil {
		s.logger.Warnw("object store upload failed, falling back to local path", "key", key, "error", err)
	}
	return s.putLocal(key, data)
}

func (s *store) putRemote(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err == nil {
		return fmt.Sprintf("%s/%s", s.bucket, key), nil
	}

	var apiErr *types.NoSuchBucket
	if errors.As(err, &apiErr) {
		return "", err
	}

	// Treat any put failure the same as a 409: delete then retry once
	// before surrendering to the local fallback.
	_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	_, retryErr := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if retryErr != nil {
		return "", retryErr
	}
	return fmt.Sprintf("%s/%s", s.bucket, key), nil
}

func (s *store) putLocal(key string, data []byte) (string, error) {
	path := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating local replay directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing local replay fallback: %w", err)
	}
	return path, nil
}

// Key builds the canonical object-store key for a match participant's
// replay upload.
func Key(matchID, playerID int64, ext string) string {
	return fmt.Sprintf("%d/player_%d%s", matchID, playerID, ext)
}

// Get reads a previously stored replay back, used by tooling (not the hot
// path) to re-verify an artifact's content hash.
func (s *store) Get(ctx context.Context, ref string) ([]byte, error) {
	if s.client != nil {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(strings.TrimPrefix(ref, s.bucket+"/")),
		})
		if err == nil {
			defer out.Body.Close()
			return io.ReadAll(out.Body)
		}
	}
	return os.ReadFile(ref)
}
