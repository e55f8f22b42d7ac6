// Package upload publishes the generated dashboard directory.
package upload

import "context"

// Uploader uploads a local dashboard directory to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Upload uploads every regular file below localDir, keyed by its path
	// relative to localDir under the configured remote prefix.
	Upload(ctx context.Context, localDir string) (int, error)
}
