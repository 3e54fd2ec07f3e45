package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Open selects a blob.Store implementation using environment variables.
//
//	BANKCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	BANKCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./auditarchive)
//	BANKCORE_BLOB_S3_BUCKET: bucket name, required when driver=s3
//	BANKCORE_BLOB_S3_REGION: region (default us-east-1)
//	BANKCORE_BLOB_S3_ENDPOINT: optional custom endpoint, e.g. MinIO
//	BANKCORE_BLOB_S3_PATH_STYLE: true|false (default false)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("BANKCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFSStore(os.Getenv("BANKCORE_BLOB_FS_ROOT"))
	case DriverS3:
		bucket := os.Getenv("BANKCORE_BLOB_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("BANKCORE_BLOB_S3_BUCKET required for s3 driver")
		}
		return NewS3Store(ctx, S3Config{
			Bucket:    bucket,
			Region:    os.Getenv("BANKCORE_BLOB_S3_REGION"),
			Endpoint:  os.Getenv("BANKCORE_BLOB_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("BANKCORE_BLOB_S3_PATH_STYLE"), "true"),
		})
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
