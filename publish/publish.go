// Package publish 将检查成果上传至S3兼容的对象存储
package publish

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/wgdzlh/pcdensity/log"
	"github.com/wgdzlh/pcdensity/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// 上传所需的对象存储能力
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

var contentTypes = map[string]string{
	".tif":     "image/tiff",
	".gpkg":    "application/geopackage+sqlite3",
	".geojson": "application/geo+json",
	".json":    "application/json",
	".yaml":    "application/yaml",
	".png":     "image/png",
}

type Uploader struct {
	store  ObjectStore
	bucket string
	region string
	prefix string
	logTag string
}

func NewUploader(opts Options) (u *Uploader, err error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		err = fmt.Errorf("publish: create client for %s: %w", opts.Endpoint, err)
		return
	}
	u = NewUploaderWithStore(client, opts)
	return
}

func NewUploaderWithStore(store ObjectStore, opts Options) *Uploader {
	return &Uploader{
		store:  store,
		bucket: opts.Bucket,
		region: opts.Region,
		prefix: opts.Prefix,
		logTag: "Uploader:",
	}
}

// 对象名：{prefix}/{runID}/{文件名}
func (u *Uploader) ObjectName(runID, file string) string {
	return path.Join(u.prefix, runID, filepath.Base(file))
}

// 上传成果文件（shp连同附属文件），不存在的文件跳过
func (u *Uploader) Upload(ctx context.Context, runID string, files ...string) (objects []string, err error) {
	exists, err := u.store.BucketExists(ctx, u.bucket)
	if err != nil {
		err = fmt.Errorf("publish: check bucket %s: %w", u.bucket, err)
		return
	}
	if !exists {
		if err = u.store.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
			err = fmt.Errorf("publish: make bucket %s: %w", u.bucket, err)
			return
		}
		log.Info(u.logTag+"bucket created", zap.String("bucket", u.bucket))
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		for _, part := range utils.GetVectorFileSet(f) {
			if _, e := os.Stat(part); e != nil {
				log.Warn(u.logTag+"skip missing file", zap.String("file", part))
				continue
			}
			name := u.ObjectName(runID, part)
			info, e := u.store.FPutObject(ctx, u.bucket, name, part, minio.PutObjectOptions{ContentType: contentType(part)})
			if e != nil {
				err = fmt.Errorf("publish: upload %s: %w", part, e)
				return
			}
			log.Info(u.logTag+"uploaded", zap.String("object", name), zap.Int64("size", info.Size))
			objects = append(objects, name)
		}
	}
	return
}

func contentType(file string) string {
	ext := filepath.Ext(file)
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
