package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	exists bool
	made   []string
	puts   map[string]string
	types  map[string]string
	putErr error
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, _, object, file string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	if f.puts == nil {
		f.puts, f.types = map[string]string{}, map[string]string{}
	}
	f.puts[object] = file
	f.types[object] = opts.ContentType
	return minio.UploadInfo{Key: object, Size: 1}, nil
}

func touch(t *testing.T, dir string, names ...string) {
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "density.tif", "low-density-pixels.shp", "low-density-pixels.shx", "low-density-pixels.dbf")
	store := &fakeStore{}
	u := NewUploaderWithStore(store, Options{Bucket: "qa", Prefix: "density"})

	objects, err := u.Upload(context.Background(), "run-1",
		filepath.Join(dir, "density.tif"),
		filepath.Join(dir, "low-density-pixels.shp"),
		filepath.Join(dir, "missing.png"),
		"",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"qa"}, store.made)
	assert.Equal(t, []string{
		"density/run-1/density.tif",
		"density/run-1/low-density-pixels.shp",
		"density/run-1/low-density-pixels.shx",
		"density/run-1/low-density-pixels.dbf",
	}, objects)
	assert.Equal(t, "image/tiff", store.types["density/run-1/density.tif"])
	assert.Equal(t, filepath.Join(dir, "low-density-pixels.dbf"), store.puts["density/run-1/low-density-pixels.dbf"])
}

func TestUploadExistingBucketAndFailure(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "density.tif")
	boom := errors.New("access denied")
	store := &fakeStore{exists: true, putErr: boom}
	u := NewUploaderWithStore(store, Options{Bucket: "qa"})
	_, err := u.Upload(context.Background(), "run-2", filepath.Join(dir, "density.tif"))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.made)
	assert.Equal(t, "run-2/density.tif", u.ObjectName("run-2", "/x/density.tif"))
}

func TestNewUploader(t *testing.T) {
	u, err := NewUploader(Options{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "qa"})
	require.NoError(t, err)
	assert.NotNil(t, u.store)
}
