package ports

import "context"

// ArtifactStore reads and writes files below an artifact root URI.
type ArtifactStore interface {
	Supports(rootURI string) bool
	Upload(ctx context.Context, rootURI, relPath string, content []byte) error
	Download(ctx context.Context, rootURI, relPath string) ([]byte, error)
}
