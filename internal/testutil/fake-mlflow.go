package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FakeMLflow is an in-memory stand-in for the MLflow tracking server REST API, covering the
// endpoints the pipeline calls.
type FakeMLflow struct {
	Server *httptest.Server

	mu          sync.Mutex
	experiments map[string]*FakeExperiment
	runs        map[string]*FakeRun
	models      map[string][]*FakeVersion
	artifacts   map[string][]byte
	calls       map[string]int
	staleReads  int
	pendingOld  map[string]string
}

type FakeExperiment struct {
	ID   string
	Name string
}

type FakeRun struct {
	ID           string
	ExperimentID string
	Name         string
	Status       string
	StartTime    int64
	EndTime      int64
	ArtifactURI  string
	Params       map[string]string
	Metrics      map[string]float64
	Tags         map[string]string
}

type FakeVersion struct {
	Name    string
	Version int
	Stage   string
	Source  string
	RunID   string
	Created int64
}

// NewFakeMLflow starts the fake server; it is closed when the test ends.
func NewFakeMLflow(t *testing.T) *FakeMLflow {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeMLflow{
		experiments: map[string]*FakeExperiment{"0": {ID: "0", Name: "Default"}},
		runs:        map[string]*FakeRun{},
		models:      map[string][]*FakeVersion{},
		artifacts:   map[string][]byte{},
		calls:       map[string]int{},
		pendingOld:  map[string]string{},
	}

	r := gin.New()
	r.Use(f.count())
	api := r.Group("/api/2.0/mlflow")
	api.GET("/experiments/get-by-name", f.getExperimentByName)
	api.POST("/experiments/create", f.createExperiment)
	api.POST("/runs/create", f.createRun)
	api.GET("/runs/get", f.getRun)
	api.POST("/runs/log-batch", f.logBatch)
	api.POST("/runs/update", f.updateRun)
	api.POST("/registered-models/create", f.createRegisteredModel)
	api.POST("/registered-models/get-latest-versions", f.getLatestVersions)
	api.POST("/model-versions/create", f.createModelVersion)
	api.GET("/model-versions/search", f.searchModelVersions)
	api.GET("/model-versions/get", f.getModelVersion)
	api.POST("/model-versions/transition-stage", f.transitionStage)
	r.PUT("/api/2.0/mlflow-artifacts/artifacts/*path", f.putArtifact)
	r.GET("/api/2.0/mlflow-artifacts/artifacts/*path", f.getArtifact)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeMLflow) URL() string {
	return f.Server.URL
}

// SetStaleReads makes the next n model-versions/get calls after each transition report the
// version's previous stage.
func (f *FakeMLflow) SetStaleReads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleReads = n
}

// Calls returns how many times an endpoint (path below /api/2.0/mlflow) was hit.
func (f *FakeMLflow) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *FakeMLflow) Runs() []FakeRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeRun, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (f *FakeMLflow) Versions(name string) []FakeVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeVersion, 0, len(f.models[name]))
	for _, v := range f.models[name] {
		out = append(out, *v)
	}
	return out
}

// SeedVersion registers a version directly, bypassing the API.
func (f *FakeMLflow) SeedVersion(name, stage, source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := &FakeVersion{Name: name, Version: len(f.models[name]) + 1, Stage: stage, Source: source, Created: time.Now().UnixMilli()}
	f.models[name] = append(f.models[name], v)
	return v.Version
}

func (f *FakeMLflow) Artifact(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.artifacts[strings.TrimPrefix(path, "/")]
	return b, ok
}

func (f *FakeMLflow) count() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Request.URL.Path, "/api/2.0/mlflow")
		f.mu.Lock()
		f.calls[key]++
		f.mu.Unlock()
		c.Next()
	}
}

func apiError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"error_code": code, "message": msg})
}

func (f *FakeMLflow) getExperimentByName(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := c.Query("experiment_name")
	for _, e := range f.experiments {
		if e.Name == name {
			c.JSON(http.StatusOK, gin.H{"experiment": gin.H{
				"experiment_id": e.ID, "name": e.Name, "lifecycle_stage": "active",
			}})
			return
		}
	}
	apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", fmt.Sprintf("Could not find experiment with name '%s'", name))
}

func (f *FakeMLflow) createExperiment(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := strconv.Itoa(len(f.experiments))
	f.experiments[id] = &FakeExperiment{ID: id, Name: req.Name}
	c.JSON(http.StatusOK, gin.H{"experiment_id": id})
}

func (f *FakeMLflow) runJSON(r *FakeRun) gin.H {
	params := []gin.H{}
	for k, v := range r.Params {
		params = append(params, gin.H{"key": k, "value": v})
	}
	metrics := []gin.H{}
	for k, v := range r.Metrics {
		metrics = append(metrics, gin.H{"key": k, "value": v})
	}
	tags := []gin.H{}
	for k, v := range r.Tags {
		tags = append(tags, gin.H{"key": k, "value": v})
	}
	info := gin.H{
		"run_id": r.ID, "run_uuid": r.ID, "experiment_id": r.ExperimentID, "run_name": r.Name,
		"status": r.Status, "start_time": r.StartTime, "artifact_uri": r.ArtifactURI,
	}
	if r.EndTime != 0 {
		info["end_time"] = r.EndTime
	}
	return gin.H{"info": info, "data": gin.H{"params": params, "metrics": metrics, "tags": tags}}
}

func (f *FakeMLflow) createRun(c *gin.Context) {
	var req struct {
		ExperimentID string `json:"experiment_id"`
		RunName      string `json:"run_name"`
		StartTime    int64  `json:"start_time"`
		Tags         []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.experiments[req.ExperimentID]; !ok {
		apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "no experiment "+req.ExperimentID)
		return
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	name := req.RunName
	if name == "" {
		name = "run-" + id[:8]
	}
	run := &FakeRun{
		ID: id, ExperimentID: req.ExperimentID, Name: name, Status: "RUNNING",
		StartTime:   req.StartTime + int64(len(f.runs)),
		ArtifactURI: fmt.Sprintf("mlflow-artifacts:/%s/%s/artifacts", req.ExperimentID, id),
		Params:      map[string]string{}, Metrics: map[string]float64{}, Tags: map[string]string{},
	}
	for _, t := range req.Tags {
		run.Tags[t.Key] = t.Value
	}
	f.runs[id] = run
	c.JSON(http.StatusOK, gin.H{"run": f.runJSON(run)})
}

func (f *FakeMLflow) getRun(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[c.Query("run_id")]
	if !ok {
		apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "run not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": f.runJSON(run)})
}

func (f *FakeMLflow) logBatch(c *gin.Context) {
	var req struct {
		RunID  string `json:"run_id"`
		Params []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"params"`
		Metrics []struct {
			Key   string  `json:"key"`
			Value float64 `json:"value"`
		} `json:"metrics"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[req.RunID]
	if !ok {
		apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "run not found")
		return
	}
	for _, p := range req.Params {
		run.Params[p.Key] = p.Value
	}
	for _, m := range req.Metrics {
		run.Metrics[m.Key] = m.Value
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (f *FakeMLflow) updateRun(c *gin.Context) {
	var req struct {
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		EndTime int64  `json:"end_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[req.RunID]
	if !ok {
		apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "run not found")
		return
	}
	run.Status = req.Status
	run.EndTime = req.EndTime
	c.JSON(http.StatusOK, gin.H{"run_info": f.runJSON(run)["info"]})
}

func (f *FakeMLflow) createRegisteredModel(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.models[req.Name]; ok {
		apiError(c, http.StatusBadRequest, "RESOURCE_ALREADY_EXISTS", fmt.Sprintf("Registered Model (name=%s) already exists.", req.Name))
		return
	}
	f.models[req.Name] = []*FakeVersion{}
	now := time.Now().UnixMilli()
	c.JSON(http.StatusOK, gin.H{"registered_model": gin.H{
		"name": req.Name, "creation_timestamp": now, "last_updated_timestamp": now,
	}})
}

func versionJSON(v *FakeVersion) gin.H {
	return gin.H{
		"name": v.Name, "version": strconv.Itoa(v.Version), "current_stage": v.Stage,
		"source": v.Source, "run_id": v.RunID, "status": "READY",
		"creation_timestamp": v.Created, "last_updated_timestamp": v.Created,
	}
}

func (f *FakeMLflow) createModelVersion(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Source string `json:"source"`
		RunID  string `json:"run_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	versions, ok := f.models[req.Name]
	if !ok {
		apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "Registered Model with name="+req.Name+" not found")
		return
	}
	v := &FakeVersion{
		Name: req.Name, Version: len(versions) + 1, Stage: "None",
		Source: req.Source, RunID: req.RunID, Created: time.Now().UnixMilli(),
	}
	f.models[req.Name] = append(versions, v)
	c.JSON(http.StatusOK, gin.H{"model_version": versionJSON(v)})
}

var nameFilter = regexp.MustCompile(`^name\s*=\s*'(.*)'$`)

func (f *FakeMLflow) searchModelVersions(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*FakeVersion
	if m := nameFilter.FindStringSubmatch(c.Query("filter")); m != nil {
		matched = append(matched, f.models[m[1]]...)
	} else {
		for _, vs := range f.models {
			matched = append(matched, vs...)
		}
	}

	desc := false
	for _, o := range c.QueryArray("order_by") {
		if strings.EqualFold(strings.TrimSpace(o), "version_number DESC") {
			desc = true
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return matched[i].Version > matched[j].Version
		}
		return matched[i].Version < matched[j].Version
	})

	out := make([]gin.H, 0, len(matched))
	for _, v := range matched {
		out = append(out, versionJSON(v))
	}
	c.JSON(http.StatusOK, gin.H{"model_versions": out})
}

func (f *FakeMLflow) findVersion(name, version string) *FakeVersion {
	n, err := strconv.Atoi(version)
	if err != nil {
		return nil
	}
	for _, v := range f.models[name] {
		if v.Version == n {
			return v
		}
	}
	return nil
}

func (f *FakeMLflow) getModelVersion(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.findVersion(c.Query("name"), c.Query("version"))
	if v == nil {
		apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "model version not found")
		return
	}
	key := fmt.Sprintf("%s/%d", v.Name, v.Version)
	if old, ok := f.pendingOld[key]; ok && f.staleReads > 0 {
		f.staleReads--
		stale := *v
		stale.Stage = old
		c.JSON(http.StatusOK, gin.H{"model_version": versionJSON(&stale)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model_version": versionJSON(v)})
}

func (f *FakeMLflow) transitionStage(c *gin.Context) {
	var req struct {
		Name                    string `json:"name"`
		Version                 string `json:"version"`
		Stage                   string `json:"stage"`
		ArchiveExistingVersions bool   `json:"archive_existing_versions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.findVersion(req.Name, req.Version)
	if v == nil {
		apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "model version not found")
		return
	}
	if req.ArchiveExistingVersions && (req.Stage == "Staging" || req.Stage == "Production") {
		for _, other := range f.models[req.Name] {
			if other != v && other.Stage == req.Stage {
				other.Stage = "Archived"
			}
		}
	}
	f.pendingOld[fmt.Sprintf("%s/%d", v.Name, v.Version)] = v.Stage
	v.Stage = req.Stage
	c.JSON(http.StatusOK, gin.H{"model_version": versionJSON(v)})
}

func (f *FakeMLflow) getLatestVersions(c *gin.Context) {
	var req struct {
		Name   string   `json:"name"`
		Stages []string `json:"stages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	versions, ok := f.models[req.Name]
	if !ok {
		apiError(c, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "Registered Model with name="+req.Name+" not found")
		return
	}
	latest := map[string]*FakeVersion{}
	for _, v := range versions {
		if cur, ok := latest[v.Stage]; !ok || v.Version > cur.Version {
			latest[v.Stage] = v
		}
	}
	out := []gin.H{}
	for stage, v := range latest {
		if len(req.Stages) == 0 || contains(req.Stages, stage) {
			out = append(out, versionJSON(v))
		}
	}
	c.JSON(http.StatusOK, gin.H{"model_versions": out})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (f *FakeMLflow) putArtifact(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	f.mu.Lock()
	f.artifacts[strings.TrimPrefix(c.Param("path"), "/")] = body
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{})
}

func (f *FakeMLflow) getArtifact(c *gin.Context) {
	f.mu.Lock()
	body, ok := f.artifacts[strings.TrimPrefix(c.Param("path"), "/")]
	f.mu.Unlock()
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", body)
}
