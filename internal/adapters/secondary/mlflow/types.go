package mlflow

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"iris-model-pipeline/internal/core/domain"
)

// millis is an epoch-milliseconds timestamp. The server encodes int64 fields either as JSON
// numbers or as strings depending on version.
type millis int64

func (m *millis) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*m = millis(n)
	return nil
}

func (m millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m))
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metricJSON struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type experimentJSON struct {
	ExperimentID     string `json:"experiment_id"`
	Name             string `json:"name"`
	ArtifactLocation string `json:"artifact_location"`
	LifecycleStage   string `json:"lifecycle_stage"`
}

func (e experimentJSON) toDomain() *domain.Experiment {
	return &domain.Experiment{
		ID:               e.ExperimentID,
		Name:             e.Name,
		ArtifactLocation: e.ArtifactLocation,
		LifecycleStage:   e.LifecycleStage,
	}
}

type runInfoJSON struct {
	RunID        string `json:"run_id"`
	RunUUID      string `json:"run_uuid"`
	ExperimentID string `json:"experiment_id"`
	RunName      string `json:"run_name"`
	Status       string `json:"status"`
	StartTime    millis `json:"start_time"`
	EndTime      millis `json:"end_time"`
	ArtifactURI  string `json:"artifact_uri"`
}

type runDataJSON struct {
	Metrics []struct {
		Key   string  `json:"key"`
		Value float64 `json:"value"`
	} `json:"metrics"`
	Params []keyValue `json:"params"`
	Tags   []keyValue `json:"tags"`
}

type runJSON struct {
	Info runInfoJSON `json:"info"`
	Data runDataJSON `json:"data"`
}

func (r runJSON) toDomain() *domain.Run {
	id := r.Info.RunID
	if id == "" {
		id = r.Info.RunUUID
	}
	run := &domain.Run{
		ID:           id,
		ExperimentID: r.Info.ExperimentID,
		Name:         r.Info.RunName,
		Status:       domain.RunStatus(r.Info.Status),
		ArtifactURI:  r.Info.ArtifactURI,
		StartTime:    r.Info.StartTime.Time(),
		Params:       make(map[string]string, len(r.Data.Params)),
		Metrics:      make(map[string]float64, len(r.Data.Metrics)),
		Tags:         make(map[string]string, len(r.Data.Tags)),
	}
	if r.Info.EndTime != 0 {
		end := r.Info.EndTime.Time()
		run.EndTime = &end
	}
	for _, p := range r.Data.Params {
		run.Params[p.Key] = p.Value
	}
	for _, m := range r.Data.Metrics {
		run.Metrics[m.Key] = m.Value
	}
	for _, t := range r.Data.Tags {
		run.Tags[t.Key] = t.Value
	}
	return run
}

type registeredModelJSON struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	CreationTimestamp    millis `json:"creation_timestamp"`
	LastUpdatedTimestamp millis `json:"last_updated_timestamp"`
}

func (m registeredModelJSON) toDomain() *domain.RegisteredModel {
	return &domain.RegisteredModel{
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreationTimestamp.Time(),
		UpdatedAt:   m.LastUpdatedTimestamp.Time(),
	}
}

type modelVersionJSON struct {
	Name                 string      `json:"name"`
	Version              json.Number `json:"version"`
	CreationTimestamp    millis      `json:"creation_timestamp"`
	LastUpdatedTimestamp millis      `json:"last_updated_timestamp"`
	CurrentStage         string      `json:"current_stage"`
	Description          string      `json:"description"`
	Source               string      `json:"source"`
	RunID                string      `json:"run_id"`
	Status               string      `json:"status"`
}

func (v modelVersionJSON) toDomain() (*domain.ModelVersion, error) {
	n, err := strconv.Atoi(v.Version.String())
	if err != nil {
		return nil, domain.ErrInvalidVersion
	}
	stage := domain.Stage(v.CurrentStage)
	if parsed, err := domain.ParseStage(v.CurrentStage); err == nil {
		stage = parsed
	}
	return &domain.ModelVersion{
		Name:         v.Name,
		Version:      n,
		CurrentStage: stage,
		Source:       v.Source,
		RunID:        v.RunID,
		Status:       domain.VersionStatus(v.Status),
		Description:  v.Description,
		CreatedAt:    v.CreationTimestamp.Time(),
		UpdatedAt:    v.LastUpdatedTimestamp.Time(),
	}, nil
}

func versionsToDomain(in []modelVersionJSON) ([]*domain.ModelVersion, error) {
	out := make([]*domain.ModelVersion, 0, len(in))
	for _, v := range in {
		mv, err := v.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, nil
}
