package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/s3/createbucketoptions"
	"github.com/adampresley/adamgokit/s3/listoptions"
	"github.com/adampresley/photogallery/pkg/uploader"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3ArchiverConfig struct {
	S3Client s3.S3Client
	Bucket   string
	Prefix   string
	Region   string
}

/*
S3Archiver keeps a copy of every uploaded original in an S3 compatible
bucket such as R2. Keys are Prefix/<file name>. A key that already exists
is never overwritten.
*/
type S3Archiver struct {
	s3Client s3.S3Client
	bucket   string
	prefix   string
	region   string
}

func NewS3Archiver(config S3ArchiverConfig) S3Archiver {
	return S3Archiver{
		s3Client: config.S3Client,
		bucket:   config.Bucket,
		prefix:   strings.Trim(config.Prefix, "/"),
		region:   config.Region,
	}
}

func (a S3Archiver) EnsureBucket() error {
	var (
		err    error
		exists bool
	)

	if exists, err = a.s3Client.BucketExists(a.bucket); err != nil {
		return fmt.Errorf("error ensuring bucket '%s' exists: %w", a.bucket, err)
	}

	if exists {
		return nil
	}

	slog.Info("creating bucket", "bucketName", a.bucket)

	if err = a.s3Client.CreateBucket(a.bucket, createbucketoptions.WithRegion(a.region)); err != nil {
		return fmt.Errorf("error creating bucket '%s': %w", a.bucket, err)
	}

	return nil
}

func (a S3Archiver) Key(filePath string) string {
	return path.Join(a.prefix, filepath.Base(filePath))
}

func (a S3Archiver) Mirror(ctx context.Context, filePath string) error {
	var (
		err  error
		stat *s3.ObjectMetadata
		f    *os.File
	)

	key := a.Key(filePath)

	if stat, err = a.s3Client.StatObject(a.bucket, key); err != nil {
		return fmt.Errorf("error checking archive key '%s': %w", key, err)
	}

	if stat != nil {
		slog.Debug("archive copy already exists", "key", key)
		return nil
	}

	if f, err = os.Open(filePath); err != nil {
		return fmt.Errorf("error opening '%s' for archive: %w", filePath, err)
	}

	defer f.Close()

	if _, err = a.s3Client.Put(a.bucket, key, f); err != nil {
		return fmt.Errorf("error uploading archive copy to '%s': %w", key, err)
	}

	slog.Info("archived original", "bucket", a.bucket, "key", key)
	return nil
}

// ArchivedKeys lists the image keys already present under the archive prefix.
func (a S3Archiver) ArchivedKeys() (map[string]struct{}, error) {
	var (
		err      error
		response s3.ListResponse
	)

	response, err = a.s3Client.List(
		a.bucket,
		a.prefix,
		listoptions.WithGetAll(),
		listoptions.WithFilter(func(obj types.Object) bool {
			return uploader.IsSupportedExtension(aws.ToString(obj.Key))
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("error listing archive bucket '%s': %w", a.bucket, err)
	}

	result := make(map[string]struct{}, len(response.Objects))

	for _, obj := range response.Objects {
		result[obj.Key] = struct{}{}
	}

	return result, nil
}
