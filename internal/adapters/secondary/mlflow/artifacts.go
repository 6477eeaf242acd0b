package mlflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
)

const (
	artifactScheme = "mlflow-artifacts"
	artifactPrefix = "/api/2.0/mlflow-artifacts/artifacts"
)

// ArtifactStore moves artifacts through the tracking server's artifact proxy, which serves
// every mlflow-artifacts: URI.
type ArtifactStore struct {
	c *Client
}

func NewArtifactStore(c *Client) *ArtifactStore {
	return &ArtifactStore{c: c}
}

var _ ports.ArtifactStore = (*ArtifactStore)(nil)

func (s *ArtifactStore) Supports(rootURI string) bool {
	return strings.HasPrefix(rootURI, artifactScheme+":")
}

// proxyURL maps mlflow-artifacts:/<path> or mlflow-artifacts://<host>/<path> to the proxy
// endpoint of the configured server.
func (s *ArtifactStore) proxyURL(rootURI, relPath string) (string, error) {
	u, err := url.Parse(rootURI)
	if err != nil || u.Scheme != artifactScheme {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedArtifactURI, rootURI)
	}
	p := path.Join(strings.TrimPrefix(u.Path, "/"), relPath)
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.c.baseURL + artifactPrefix + "/" + strings.Join(segments, "/"), nil
}

func (s *ArtifactStore) Upload(ctx context.Context, rootURI, relPath string, content []byte) error {
	target, err := s.proxyURL(rootURI, relPath)
	if err != nil {
		return err
	}
	req, err := s.c.newRequest(ctx, http.MethodPut, target, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	log.WithFields(log.Fields{"url": target, "bytes": len(content)}).Debug("uploading artifact")

	resp, err := s.c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload artifact %s: %w", relPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload artifact %s: %w", relPath, decodeAPIError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *ArtifactStore) Download(ctx context.Context, rootURI, relPath string) ([]byte, error) {
	target, err := s.proxyURL(rootURI, relPath)
	if err != nil {
		return nil, err
	}
	req, err := s.c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download artifact %s: %w", relPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrArtifactNotFound, rootURI, relPath)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download artifact %s: %w", relPath, decodeAPIError(resp))
	}
	return io.ReadAll(resp.Body)
}
