package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iris-model-pipeline/internal/adapters/primary/http/dto"
	"iris-model-pipeline/internal/adapters/primary/http/middleware"
	"iris-model-pipeline/internal/core/domain"
	"iris-model-pipeline/internal/core/services"
	"iris-model-pipeline/internal/datasets/iris"
	"iris-model-pipeline/internal/ml/logreg"
)

type fakeLoader struct {
	model *services.LoadedModel
	err   error
}

func (f *fakeLoader) LoadModel(_ context.Context, _ domain.Stage) (*services.LoadedModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}

func irisModel(t *testing.T) *services.LoadedModel {
	t.Helper()
	ds, err := iris.Load()
	require.NoError(t, err)
	clf := logreg.New(logreg.DefaultParams())
	clf.FeatureNames = ds.FeatureNames
	require.NoError(t, clf.Fit(ds.Features, ds.Targets))
	return &services.LoadedModel{
		Name:       "IrisLogisticRegressionModel",
		Version:    2,
		Stage:      domain.StageProduction,
		Source:     "mlflow-artifacts:/0/abc/artifacts/iris_model",
		LoadedAt:   time.Now(),
		Classifier: clf,
	}
}

func setupRouter(loader services.ModelLoader, preload bool, t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := services.NewPredictionService(loader, domain.StageProduction)
	if preload {
		_, err := svc.Reload(context.Background())
		require.NoError(t, err)
	}
	h := New(svc)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())
	h.RegisterRoutes(r.Group("/api/v1"))
	r.GET("/healthz", h.Healthz)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPredict(t *testing.T) {
	r := setupRouter(&fakeLoader{model: irisModel(t)}, true, t)

	w := doJSON(r, http.MethodPost, "/api/v1/predict", dto.PredictRequest{
		Instances: [][]float64{{5.1, 3.5, 1.4, 0.2}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{0}, resp.Predictions)
	assert.Equal(t, []string{"setosa"}, resp.ClassNames)
	assert.Equal(t, "IrisLogisticRegressionModel", resp.ModelName)
	assert.Equal(t, 2, resp.ModelVersion)
	require.Len(t, resp.Probabilities, 1)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestPredict_WrongFeatureWidth(t *testing.T) {
	r := setupRouter(&fakeLoader{model: irisModel(t)}, true, t)

	w := doJSON(r, http.MethodPost, "/api/v1/predict", dto.PredictRequest{Instances: [][]float64{{1, 2, 3}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict_MissingInstances(t *testing.T) {
	r := setupRouter(&fakeLoader{model: irisModel(t)}, true, t)

	w := doJSON(r, http.MethodPost, "/api/v1/predict", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/predict", gin.H{"instances": [][]float64{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict_NoModelLoaded(t *testing.T) {
	r := setupRouter(&fakeLoader{err: domain.ErrNoProductionModel}, false, t)

	w := doJSON(r, http.MethodPost, "/api/v1/predict", dto.PredictRequest{Instances: [][]float64{{5.1, 3.5, 1.4, 0.2}}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetModel(t *testing.T) {
	r := setupRouter(&fakeLoader{model: irisModel(t)}, true, t)

	w := doJSON(r, http.MethodGet, "/api/v1/model", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ModelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Production", resp.Stage)
	assert.Equal(t, []int{0, 1, 2}, resp.Classes)
	assert.Len(t, resp.FeatureNames, 4)
	assert.Equal(t, logreg.ModelType, resp.ModelType)
}

func TestHealthz(t *testing.T) {
	r := setupRouter(&fakeLoader{err: domain.ErrNoProductionModel}, false, t)
	w := doJSON(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r = setupRouter(&fakeLoader{model: irisModel(t)}, true, t)
	w = doJSON(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReload(t *testing.T) {
	loader := &fakeLoader{err: domain.ErrNoProductionModel}
	r := setupRouter(loader, false, t)

	w := doJSON(r, http.MethodPost, "/api/v1/reload", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	loader.err = nil
	loader.model = irisModel(t)
	w = doJSON(r, http.MethodPost, "/api/v1/reload", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	loader.err = errors.New("connection refused")
	w = doJSON(r, http.MethodPost, "/api/v1/reload", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
