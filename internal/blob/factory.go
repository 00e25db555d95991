package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"ampcore/internal/infra/blob/fs"
	memorystore "ampcore/internal/infra/blob/memory"
	infraS3 "ampcore/internal/infra/blob/s3"
)

// Open selects a Store implementation using environment variables.
//
//	AMPCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	AMPCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	AMPCORE_BLOB_S3_*: see the s3 backend
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("AMPCORE_BLOB_DRIVER")))
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("AMPCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memorystore.New() }

// S3Config configures the S3 backend.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// OpenS3FromEnv constructs an S3 store from AMPCORE_BLOB_S3_* variables.
func OpenS3FromEnv(ctx context.Context) (Store, error) {
	return infraS3.OpenFromEnv(ctx)
}

// NewMockS3ForTests exposes the in-process S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
