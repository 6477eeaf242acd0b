package artifacts

import (
	"context"
	"fmt"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
)

// Router dispatches each call to the first store that supports the root URI.
type Router struct {
	stores []ports.ArtifactStore
}

func NewRouter(stores ...ports.ArtifactStore) *Router {
	return &Router{stores: stores}
}

var _ ports.ArtifactStore = (*Router)(nil)

func (r *Router) pick(rootURI string) (ports.ArtifactStore, error) {
	for _, s := range r.stores {
		if s.Supports(rootURI) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedArtifactURI, rootURI)
}

func (r *Router) Supports(rootURI string) bool {
	_, err := r.pick(rootURI)
	return err == nil
}

func (r *Router) Upload(ctx context.Context, rootURI, relPath string, content []byte) error {
	s, err := r.pick(rootURI)
	if err != nil {
		return err
	}
	return s.Upload(ctx, rootURI, relPath, content)
}

func (r *Router) Download(ctx context.Context, rootURI, relPath string) ([]byte, error) {
	s, err := r.pick(rootURI)
	if err != nil {
		return nil, err
	}
	return s.Download(ctx, rootURI, relPath)
}
