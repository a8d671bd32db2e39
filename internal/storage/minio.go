package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"image-compress-go/internal/config"
)

// objectStore abstracts the MinIO client calls used here for testability.
type objectStore interface {
	PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucket, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, objectName string, opts minio.RemoveObjectOptions) error
}

// MinIOStorage keeps both areas in one bucket, using the area as key prefix.
type MinIOStorage struct {
	client objectStore
	bucket string
	logger *logrus.Logger
}

// NewMinIOStorage connects to MinIO and creates the bucket when missing.
func NewMinIOStorage(ctx context.Context, cfg config.MinIOConfig, log *logrus.Logger) (*MinIOStorage, error) {
	// The default transport keeps only 2 idle conns per host, which churns
	// connections when a batch stores many files at once.
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Infof("Created bucket %s", cfg.Bucket)
	}

	return newMinIOStorage(client, cfg.Bucket, log), nil
}

func newMinIOStorage(client objectStore, bucket string, log *logrus.Logger) *MinIOStorage {
	return &MinIOStorage{client: client, bucket: bucket, logger: log}
}

// Save uploads data under <area>/<name>.
func (s *MinIOStorage) Save(ctx context.Context, area Area, name string, data []byte) error {
	key, err := objectKey(area, name)
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Open streams the object. The object is stat'ed first so a missing key maps to ErrNotFound.
func (s *MinIOStorage) Open(ctx context.Context, area Area, name string) (io.ReadCloser, ObjectInfo, error) {
	key, err := objectKey(area, name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, ObjectInfo{}, fmt.Errorf("stat %q: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get %q: %w", key, err)
	}

	return obj, ObjectInfo{
		Name:        name,
		Size:        info.Size,
		ModTime:     info.LastModified,
		ContentType: info.ContentType,
	}, nil
}

// Cleanup removes objects under the area prefix last modified before now-maxAge.
func (s *MinIOStorage) Cleanup(ctx context.Context, area Area, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	prefix := string(area) + "/"

	// stops the listing goroutine when returning early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	count := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return count, fmt.Errorf("list objects: %w", obj.Err)
		}
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			if isNoSuchKey(err) {
				s.logger.Debugf("cleanup: %q already removed", obj.Key)
				continue
			}
			return count, fmt.Errorf("remove %q: %w", obj.Key, err)
		}
		count++
	}
	return count, nil
}

func objectKey(area Area, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return path.Join(string(area), name), nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
