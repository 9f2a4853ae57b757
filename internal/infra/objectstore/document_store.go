package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"mcq-queue-service/internal/domain"
)

// DefaultObject is the object key used when none is configured.
const DefaultObject = "mcq-queue/document.json"

// Config describes an S3-compatible endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Object    string
	Region    string
	Secure    bool
}

// DocumentStore keeps the queue document as a single object. A PUT replaces the object whole,
// so readers see either the old or the new version.
type DocumentStore struct {
	client *minio.Client
	bucket string
	object string
}

func New(cfg Config) (*DocumentStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return NewDocumentStore(client, cfg.Bucket, cfg.Object), nil
}

func NewDocumentStore(client *minio.Client, bucket, object string) *DocumentStore {
	if object == "" {
		object = DefaultObject
	}
	return &DocumentStore{client: client, bucket: bucket, object: object}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *DocumentStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *DocumentStore) Load(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr("get", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapErr("read", err)
	}
	return data, nil
}

func (s *DocumentStore) Save(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", s.bucket, s.object, err)
	}
	return nil
}

func (s *DocumentStore) mapErr(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || (resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket") {
		return domain.ErrDocumentNotFound
	}
	return fmt.Errorf("%s object %s/%s: %w", op, s.bucket, s.object, err)
}
