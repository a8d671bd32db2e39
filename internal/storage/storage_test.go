package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/minio/minio-go/v7"

	"image-compress-go/internal/logger"
)

func TestLocalStorage_SaveOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(dir, "up"), filepath.Join(dir, "out"))
	gt.NoError(t, err)

	ctx := context.Background()
	gt.NoError(t, s.Save(ctx, AreaCompressed, "cat_1234abcd.png", []byte("png-bytes")))

	rc, info, err := s.Open(ctx, AreaCompressed, "cat_1234abcd.png")
	gt.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "png-bytes")
	gt.Equal(t, info.Size, int64(9))
	gt.Equal(t, info.ContentType, "image/png")

	_, _, err = s.Open(ctx, AreaUploads, "cat_1234abcd.png")
	gt.Equal(t, errors.Is(err, ErrNotFound), true)
}

func TestLocalStorage_RejectsPathNames(t *testing.T) {
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "up"), filepath.Join(t.TempDir(), "out"))
	gt.NoError(t, err)

	for _, name := range []string{"", "..", "../secret", "a/b.png", `a\b.png`} {
		err := s.Save(context.Background(), AreaUploads, name, []byte("x"))
		gt.Equal(t, errors.Is(err, ErrInvalidName), true)
	}
}

func TestLocalStorage_Cleanup(t *testing.T) {
	dir := t.TempDir()
	up := filepath.Join(dir, "up")
	out := filepath.Join(dir, "out")
	s, err := NewLocalStorage(up, out)
	gt.NoError(t, err)

	ctx := context.Background()
	gt.NoError(t, s.Save(ctx, AreaUploads, "old.png", []byte("old")))
	gt.NoError(t, s.Save(ctx, AreaUploads, "fresh.png", []byte("fresh")))
	gt.NoError(t, s.Save(ctx, AreaCompressed, "old_out.png", []byte("old")))
	gt.NoError(t, os.Mkdir(filepath.Join(up, "nested"), 0755))

	past := time.Now().Add(-10 * time.Minute)
	gt.NoError(t, os.Chtimes(filepath.Join(up, "old.png"), past, past))
	gt.NoError(t, os.Chtimes(filepath.Join(out, "old_out.png"), past, past))

	removed, err := CleanupAll(ctx, s, 5*time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, removed, 2)

	_, err = os.Stat(filepath.Join(up, "fresh.png"))
	gt.NoError(t, err)
	_, err = os.Stat(filepath.Join(up, "old.png"))
	gt.Equal(t, errors.Is(err, os.ErrNotExist), true)
	_, err = os.Stat(filepath.Join(up, "nested"))
	gt.NoError(t, err)
}

// mockObjectStore keeps objects in memory for MinIOStorage tests.
type mockObjectStore struct {
	mutex     sync.Mutex
	objects   map[string]minio.ObjectInfo
	removed   []string
	puts      []string
	listCtx   context.Context
	removeErr error
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: make(map[string]minio.ObjectInfo)}
}

func (m *mockObjectStore) PutObject(_ context.Context, _ string, objectName string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.objects[objectName] = minio.ObjectInfo{
		Key:          objectName,
		Size:         int64(len(data)),
		LastModified: time.Now(),
		ContentType:  opts.ContentType,
	}
	m.puts = append(m.puts, objectName)
	return minio.UploadInfo{Key: objectName, Size: int64(len(data))}, nil
}

func (m *mockObjectStore) GetObject(context.Context, string, string, minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("not implemented in mock")
}

func (m *mockObjectStore) StatObject(_ context.Context, _ string, objectName string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	obj, ok := m.objects[objectName]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return obj, nil
}

func (m *mockObjectStore) ListObjects(ctx context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.listCtx = ctx
	ch := make(chan minio.ObjectInfo, len(m.objects))
	for key, obj := range m.objects {
		if len(key) >= len(opts.Prefix) && key[:len(opts.Prefix)] == opts.Prefix {
			ch <- obj
		}
	}
	close(ch)
	return ch
}

func (m *mockObjectStore) RemoveObject(_ context.Context, _ string, objectName string, _ minio.RemoveObjectOptions) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	delete(m.objects, objectName)
	m.removed = append(m.removed, objectName)
	return nil
}

func TestMinIOStorage_SaveUsesAreaPrefix(t *testing.T) {
	mock := newMockObjectStore()
	s := newMinIOStorage(mock, "bucket", logger.Discard())

	gt.NoError(t, s.Save(context.Background(), AreaCompressed, "cat.jpeg", []byte("jpeg")))
	gt.Equal(t, mock.puts, []string{"compressed/cat.jpeg"})
	gt.Equal(t, mock.objects["compressed/cat.jpeg"].ContentType, "image/jpeg")

	err := s.Save(context.Background(), AreaCompressed, "../cat.jpeg", []byte("jpeg"))
	gt.Equal(t, errors.Is(err, ErrInvalidName), true)
}

func TestMinIOStorage_OpenMissing(t *testing.T) {
	s := newMinIOStorage(newMockObjectStore(), "bucket", logger.Discard())

	_, _, err := s.Open(context.Background(), AreaCompressed, "missing.png")
	gt.Equal(t, errors.Is(err, ErrNotFound), true)
}

func TestMinIOStorage_Cleanup(t *testing.T) {
	mock := newMockObjectStore()
	old := time.Now().Add(-time.Hour)
	mock.objects["uploads/old.png"] = minio.ObjectInfo{Key: "uploads/old.png", LastModified: old}
	mock.objects["uploads/new.png"] = minio.ObjectInfo{Key: "uploads/new.png", LastModified: time.Now()}
	mock.objects["compressed/old.png"] = minio.ObjectInfo{Key: "compressed/old.png", LastModified: old}

	s := newMinIOStorage(mock, "bucket", logger.Discard())

	removed, err := s.Cleanup(context.Background(), AreaUploads, 5*time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, removed, 1)
	gt.Equal(t, mock.removed, []string{"uploads/old.png"})

	_, stillThere := mock.objects["compressed/old.png"]
	gt.Equal(t, stillThere, true)
}

func TestMinIOStorage_CleanupErrorCancelsListing(t *testing.T) {
	mock := newMockObjectStore()
	old := time.Now().Add(-time.Hour)
	mock.objects["uploads/a.png"] = minio.ObjectInfo{Key: "uploads/a.png", LastModified: old}
	mock.objects["uploads/b.png"] = minio.ObjectInfo{Key: "uploads/b.png", LastModified: old}
	mock.removeErr = errors.New("access denied")

	s := newMinIOStorage(mock, "bucket", logger.Discard())

	removed, err := s.Cleanup(context.Background(), AreaUploads, time.Minute)
	gt.Error(t, err)
	gt.Equal(t, removed, 0)
	gt.V(t, mock.listCtx).NotNil()
	gt.Error(t, mock.listCtx.Err())
}
