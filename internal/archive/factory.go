package archive

import (
	"context"
	"fmt"
	"os"
)

// Open selects an archive Store using environment variables.
//
//	PUMPCORE_ARCHIVE_DRIVER:  fs|s3|memory (default fs)
//	PUMPCORE_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archivedata)
//	(s3 variables documented in s3.go)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("PUMPCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("PUMPCORE_ARCHIVE_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("archive: unknown driver %q", driver)
	}
}
