package dto

import (
	"time"

	"iris-model-pipeline/internal/core/services"
	"iris-model-pipeline/internal/datasets/iris"
	"iris-model-pipeline/internal/ml/logreg"
)

type PredictRequest struct {
	Instances [][]float64 `json:"instances" binding:"required"`
}

type PredictResponse struct {
	Predictions   []int       `json:"predictions"`
	ClassNames    []string    `json:"class_names"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
	ModelName     string      `json:"model_name"`
	ModelVersion  int         `json:"model_version"`
}

func ToPredictResponse(p *services.Prediction) PredictResponse {
	names := make([]string, len(p.Labels))
	for i, label := range p.Labels {
		names[i] = iris.TargetName(label)
	}
	return PredictResponse{
		Predictions:   p.Labels,
		ClassNames:    names,
		Probabilities: p.Probabilities,
		ModelName:     p.Model.Name,
		ModelVersion:  p.Model.Version,
	}
}

type ModelResponse struct {
	Name         string   `json:"name"`
	Version      int      `json:"version"`
	Stage        string   `json:"stage"`
	Source       string   `json:"source"`
	ModelType    string   `json:"model_type"`
	Classes      []int    `json:"classes"`
	FeatureNames []string `json:"feature_names"`
	LoadedAt     string   `json:"loaded_at"`
}

func ToModelResponse(m *services.LoadedModel) ModelResponse {
	resp := ModelResponse{
		Name:     m.Name,
		Version:  m.Version,
		Stage:    string(m.Stage),
		Source:   m.Source,
		LoadedAt: m.LoadedAt.Format(time.RFC3339),
	}
	if m.Classifier != nil {
		resp.ModelType = logreg.ModelType
		resp.Classes = m.Classifier.Classes
		resp.FeatureNames = m.Classifier.FeatureNames
	}
	return resp
}
