package runstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/FallenAngels520/math-multi-agent/internal/solve"
)

// ErrNotFound reports that no artifact exists under the requested key.
var ErrNotFound = errors.New("runstore: artifact not found")

// S3Config configures the artifact bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3ConfigFromEnv reads SOLVE_S3_* variables. The returned ok is false
// when no endpoint is configured; artifact upload is optional.
func S3ConfigFromEnv() (S3Config, bool) {
	cfg := S3Config{
		Endpoint:  strings.TrimSpace(os.Getenv("SOLVE_S3_ENDPOINT")),
		Region:    strings.TrimSpace(os.Getenv("SOLVE_S3_REGION")),
		AccessKey: strings.TrimSpace(os.Getenv("SOLVE_S3_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("SOLVE_S3_SECRET_KEY")),
		Bucket:    strings.TrimSpace(os.Getenv("SOLVE_S3_BUCKET")),
		UseSSL:    strings.EqualFold(strings.TrimSpace(os.Getenv("SOLVE_S3_USE_SSL")), "true"),
	}
	return cfg, cfg.Endpoint != ""
}

// ArtifactStore uploads solve artifacts (final answers, ledgers) to an
// S3-compatible bucket, keyed by run id.
type ArtifactStore struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewArtifactStore(cfg S3Config) (*ArtifactStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("runstore: s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("runstore: s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("runstore: s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("runstore: init s3 client: %w", err)
	}

	return &ArtifactStore{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (s *ArtifactStore) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("runstore: artifact store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// PutAnswer uploads the composed final answer as answer.json.
func (s *ArtifactStore) PutAnswer(ctx context.Context, runID string, fa *solve.FinalAnswer) error {
	if fa == nil {
		return fmt.Errorf("runstore: nil final answer")
	}
	b, err := json.MarshalIndent(fa, "", "  ")
	if err != nil {
		return err
	}
	return s.Put(ctx, runID, "answer.json", b)
}

func (s *ArtifactStore) Put(ctx context.Context, runID, path string, content []byte) error {
	if s == nil {
		return fmt.Errorf("runstore: artifact store is nil")
	}
	runID = strings.TrimSpace(runID)
	path = strings.TrimSpace(path)
	if runID == "" {
		return fmt.Errorf("runstore: run_id is required")
	}
	if path == "" {
		return fmt.Errorf("runstore: path is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("runstore: ensure bucket: %w", err)
	}
	if content == nil {
		content = []byte{}
	}

	key := objectKey(runID, path)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *ArtifactStore) Get(ctx context.Context, runID, path string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("runstore: artifact store is nil")
	}
	runID = strings.TrimSpace(runID)
	path = strings.TrimSpace(path)
	if runID == "" {
		return nil, fmt.Errorf("runstore: run_id is required")
	}
	if path == "" {
		return nil, fmt.Errorf("runstore: path is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("runstore: ensure bucket: %w", err)
	}

	key := objectKey(runID, path)
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *ArtifactStore) List(ctx context.Context, runID string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("runstore: artifact store is nil")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("runstore: run_id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("runstore: ensure bucket: %w", err)
	}

	prefix := strings.TrimSuffix(runID, "/") + "/"
	paths := make([]string, 0, 8)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" {
			continue
		}
		paths = append(paths, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(paths)
	return paths, nil
}

// GetURL returns a presigned link to an artifact, valid for one hour.
func (s *ArtifactStore) GetURL(ctx context.Context, runID, path string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("runstore: artifact store is nil")
	}
	key := objectKey(runID, path)
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, time.Hour, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func objectKey(runID, path string) string {
	normalized := strings.TrimLeft(strings.TrimSpace(path), "/")
	return strings.TrimSpace(runID) + "/" + normalized
}
