package services

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"iris-model-pipeline/internal/core/domain"
)

// ModelLoader loads the classifier registered in a stage.
type ModelLoader interface {
	LoadModel(ctx context.Context, stage domain.Stage) (*LoadedModel, error)
}

// PredictionService serves predictions from the model currently in a registry stage.
type PredictionService struct {
	loader ModelLoader
	stage  domain.Stage

	mu      sync.RWMutex
	current *LoadedModel
}

func NewPredictionService(loader ModelLoader, stage domain.Stage) *PredictionService {
	return &PredictionService{loader: loader, stage: stage}
}

// Reload swaps in the newest model in the service's stage. On failure the previous model
// stays in place.
func (s *PredictionService) Reload(ctx context.Context) (*LoadedModel, error) {
	m, err := s.loader.LoadModel(ctx, s.stage)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = m
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"model":   m.Name,
		"version": m.Version,
		"stage":   m.Stage,
	}).Info("model loaded")
	return m, nil
}

func (s *PredictionService) Current() *LoadedModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

type Prediction struct {
	Labels        []int
	Probabilities [][]float64
	Model         *LoadedModel
}

func (s *PredictionService) Predict(instances [][]float64) (*Prediction, error) {
	m := s.Current()
	if m == nil {
		return nil, domain.ErrNoProductionModel
	}
	if len(instances) == 0 {
		return nil, domain.ErrNoInstances
	}

	labels, err := m.Classifier.Predict(instances)
	if err != nil {
		return nil, err
	}
	probs, err := m.Classifier.PredictProba(instances)
	if err != nil {
		return nil, fmt.Errorf("predict probabilities: %w", err)
	}
	return &Prediction{Labels: labels, Probabilities: probs, Model: m}, nil
}
