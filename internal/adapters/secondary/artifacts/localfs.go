package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
)

// LocalStore keeps artifacts on the local filesystem. It serves file: URIs and plain paths,
// which is what a tracking server without an artifact proxy hands out.
type LocalStore struct{}

func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

var _ ports.ArtifactStore = (*LocalStore)(nil)

func (s *LocalStore) Supports(rootURI string) bool {
	if strings.HasPrefix(rootURI, "file:") {
		return true
	}
	// Plain paths carry no scheme. A Windows drive letter parses as a one letter scheme.
	u, err := url.Parse(rootURI)
	return err == nil && len(u.Scheme) <= 1
}

func localPath(rootURI, relPath string) (string, error) {
	root := rootURI
	if strings.HasPrefix(rootURI, "file:") {
		u, err := url.Parse(rootURI)
		if err != nil {
			return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedArtifactURI, rootURI)
		}
		root = u.Path
		if root == "" {
			root = u.Opaque
		}
	}
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path %q escapes root", relPath)
	}
	return filepath.Join(filepath.FromSlash(root), clean), nil
}

func (s *LocalStore) Upload(ctx context.Context, rootURI, relPath string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := localPath(rootURI, relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func (s *LocalStore) Download(ctx context.Context, rootURI, relPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := localPath(rootURI, relPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, p)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return b, nil
}
