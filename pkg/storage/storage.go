// Package storage abstracts the backend holding the
// org/repo/platform/<index>_<hash>.json tree of CI timing records.
package storage

import "context"

// Reader provides read access to a tree of CI timing records stored in a
// backend (local filesystem or S3). Paths are slash-separated and relative
// to the backend root; "" denotes the root itself.
type Reader interface {
	// ListDirs returns the names of the immediate sub-directories of dir,
	// sorted. A missing dir yields an empty result.
	ListDirs(ctx context.Context, dir string) ([]string, error)

	// ListFiles returns the names of the regular files directly inside
	// dir, sorted. A missing dir yields an empty result.
	ListFiles(ctx context.Context, dir string) ([]string, error)

	// ReadFile returns the contents of the file at name. A missing file
	// yields an error wrapping fs.ErrNotExist.
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// Location describes the backend root for log output.
	Location() string
}
