package mlflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"iris-model-pipeline/internal/config"
	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
)

const apiPrefix = "/api/2.0/mlflow"

// MLflow error codes the client branches on.
const (
	codeResourceDoesNotExist  = "RESOURCE_DOES_NOT_EXIST"
	codeResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
)

// APIError is a non-2xx response from the tracking server.
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("mlflow: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mlflow: %s: %s", e.Code, e.Message)
}

func isCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func isNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeResourceDoesNotExist || apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL  string
	client   *http.Client
	token    string
	username string
	password string
}

// NewClient creates a tracking client for the server at cfg.URI.
func NewClient(cfg *config.TrackingConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.URI, "/"),
		client:   &http.Client{Timeout: timeout},
		token:    cfg.Token,
		username: cfg.Username,
		password: cfg.Password,
	}
}

var _ ports.TrackingClient = (*Client)(nil)

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, reqURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create mlflow request: %w", err)
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// do sends a JSON request to an MLflow endpoint and decodes the JSON response into out.
// Query carries GET parameters; in is the POST body.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, in, out interface{}) error {
	reqURL := c.baseURL + apiPrefix + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode mlflow request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.WithFields(log.Fields{
		"method": method,
		"url":    reqURL,
	}).Debug("mlflow request")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mlflow %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode mlflow %s response: %w", endpoint, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(b, apiErr); err != nil || (apiErr.Code == "" && apiErr.Message == "") {
		apiErr.Message = strings.TrimSpace(string(b))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

// ============================================================================
// Experiments
// ============================================================================

func (c *Client) GetExperimentByName(ctx context.Context, name string) (*domain.Experiment, error) {
	var resp struct {
		Experiment experimentJSON `json:"experiment"`
	}
	q := url.Values{"experiment_name": {name}}
	if err := c.do(ctx, http.MethodGet, "/experiments/get-by-name", q, nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrExperimentNotFound, name)
		}
		return nil, err
	}
	return resp.Experiment.toDomain(), nil
}

func (c *Client) CreateExperiment(ctx context.Context, name string) (string, error) {
	var resp struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/experiments/create", nil, map[string]string{"name": name}, &resp); err != nil {
		return "", err
	}
	return resp.ExperimentID, nil
}

// ============================================================================
// Runs
// ============================================================================

func (c *Client) CreateRun(ctx context.Context, experimentID, runName string, tags map[string]string) (*domain.Run, error) {
	req := struct {
		ExperimentID string     `json:"experiment_id"`
		RunName      string     `json:"run_name,omitempty"`
		StartTime    int64      `json:"start_time"`
		Tags         []keyValue `json:"tags,omitempty"`
	}{
		ExperimentID: experimentID,
		RunName:      runName,
		StartTime:    toMillis(time.Now()),
	}
	for k, v := range tags {
		req.Tags = append(req.Tags, keyValue{Key: k, Value: v})
	}

	var resp struct {
		Run runJSON `json:"run"`
	}
	if err := c.do(ctx, http.MethodPost, "/runs/create", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Run.toDomain(), nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var resp struct {
		Run runJSON `json:"run"`
	}
	if err := c.do(ctx, http.MethodGet, "/runs/get", url.Values{"run_id": {runID}}, nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, err
	}
	return resp.Run.toDomain(), nil
}

func (c *Client) LogBatch(ctx context.Context, runID string, params []domain.Param, metrics []domain.Metric) error {
	req := struct {
		RunID   string       `json:"run_id"`
		Params  []keyValue   `json:"params"`
		Metrics []metricJSON `json:"metrics"`
	}{
		RunID:   runID,
		Params:  make([]keyValue, 0, len(params)),
		Metrics: make([]metricJSON, 0, len(metrics)),
	}
	for _, p := range params {
		req.Params = append(req.Params, keyValue{Key: p.Key, Value: p.Value})
	}
	for _, m := range metrics {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		req.Metrics = append(req.Metrics, metricJSON{Key: m.Key, Value: m.Value, Timestamp: toMillis(ts), Step: m.Step})
	}
	return c.do(ctx, http.MethodPost, "/runs/log-batch", nil, req, nil)
}

func (c *Client) UpdateRun(ctx context.Context, runID string, status domain.RunStatus, endTime time.Time) error {
	req := struct {
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		EndTime int64  `json:"end_time"`
	}{runID, string(status), toMillis(endTime)}
	return c.do(ctx, http.MethodPost, "/runs/update", nil, req, nil)
}

// ============================================================================
// Model Registry
// ============================================================================

func (c *Client) CreateRegisteredModel(ctx context.Context, name string) (*domain.RegisteredModel, error) {
	if name == "" {
		return nil, domain.ErrInvalidModelName
	}
	var resp struct {
		RegisteredModel registeredModelJSON `json:"registered_model"`
	}
	if err := c.do(ctx, http.MethodPost, "/registered-models/create", nil, map[string]string{"name": name}, &resp); err != nil {
		if isCode(err, codeResourceAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelNameConflict, name)
		}
		return nil, err
	}
	return resp.RegisteredModel.toDomain(), nil
}

func (c *Client) CreateModelVersion(ctx context.Context, name, source, runID string) (*domain.ModelVersion, error) {
	req := map[string]string{"name": name, "source": source, "run_id": runID}
	var resp struct {
		ModelVersion modelVersionJSON `json:"model_version"`
	}
	if err := c.do(ctx, http.MethodPost, "/model-versions/create", nil, req, &resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, name)
		}
		return nil, err
	}
	return resp.ModelVersion.toDomain()
}

func (c *Client) SearchModelVersions(ctx context.Context, search ports.VersionSearch) ([]*domain.ModelVersion, error) {
	q := url.Values{}
	if search.ModelName != "" {
		q.Set("filter", fmt.Sprintf("name='%s'", strings.ReplaceAll(search.ModelName, "'", "\\'")))
	}
	for _, o := range search.OrderBy {
		q.Add("order_by", o)
	}
	if search.MaxResults > 0 {
		q.Set("max_results", strconv.Itoa(search.MaxResults))
	}

	var resp struct {
		ModelVersions []modelVersionJSON `json:"model_versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/model-versions/search", q, nil, &resp); err != nil {
		return nil, err
	}
	return versionsToDomain(resp.ModelVersions)
}

func (c *Client) GetModelVersion(ctx context.Context, name string, version int) (*domain.ModelVersion, error) {
	q := url.Values{"name": {name}, "version": {strconv.Itoa(version)}}
	var resp struct {
		ModelVersion modelVersionJSON `json:"model_version"`
	}
	if err := c.do(ctx, http.MethodGet, "/model-versions/get", q, nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s v%d", domain.ErrVersionNotFound, name, version)
		}
		return nil, err
	}
	return resp.ModelVersion.toDomain()
}

func (c *Client) TransitionModelVersionStage(ctx context.Context, name string, version int, stage domain.Stage, archiveExisting bool) (*domain.ModelVersion, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStage, stage)
	}
	req := struct {
		Name                    string `json:"name"`
		Version                 string `json:"version"`
		Stage                   string `json:"stage"`
		ArchiveExistingVersions bool   `json:"archive_existing_versions"`
	}{name, strconv.Itoa(version), string(stage), archiveExisting}

	var resp struct {
		ModelVersion modelVersionJSON `json:"model_version"`
	}
	if err := c.do(ctx, http.MethodPost, "/model-versions/transition-stage", nil, req, &resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s v%d", domain.ErrVersionNotFound, name, version)
		}
		return nil, err
	}
	return resp.ModelVersion.toDomain()
}

func (c *Client) GetLatestVersions(ctx context.Context, name string, stages []domain.Stage) ([]*domain.ModelVersion, error) {
	req := struct {
		Name   string   `json:"name"`
		Stages []string `json:"stages,omitempty"`
	}{Name: name}
	for _, s := range stages {
		req.Stages = append(req.Stages, string(s))
	}

	var resp struct {
		ModelVersions []modelVersionJSON `json:"model_versions"`
	}
	if err := c.do(ctx, http.MethodPost, "/registered-models/get-latest-versions", nil, req, &resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, name)
		}
		return nil, err
	}
	return versionsToDomain(resp.ModelVersions)
}
