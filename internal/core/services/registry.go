package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
	"iris-model-pipeline/internal/ml/logreg"
)

type RegistryOptions struct {
	ModelName        string
	StageWaitTimeout time.Duration
	SampleInput      []float64
}

// LoadedModel is a decoded classifier together with the registry version it came from.
type LoadedModel struct {
	Name       string
	Version    int
	Stage      domain.Stage
	Source     string
	LoadedAt   time.Time
	Classifier *logreg.Classifier
}

type StageCheckpoint struct {
	Requested domain.Stage
	Observed  domain.Stage
}

type LifecycleResult struct {
	Version     int
	Checkpoints []StageCheckpoint
	ModelURI    string
	Prediction  *int
	// LoadError is set when the Production model could not be loaded or run. It is reported,
	// not returned.
	LoadError error
}

type RegistryService struct {
	tracking  ports.TrackingClient
	artifacts ports.ArtifactStore
	opts      RegistryOptions
}

func NewRegistryService(tracking ports.TrackingClient, artifacts ports.ArtifactStore, opts RegistryOptions) *RegistryService {
	if opts.StageWaitTimeout <= 0 {
		opts.StageWaitTimeout = 10 * time.Second
	}
	return &RegistryService{tracking: tracking, artifacts: artifacts, opts: opts}
}

// LatestVersion returns the most recently created version of the configured model, or
// domain.ErrNoModelVersions.
func (s *RegistryService) LatestVersion(ctx context.Context) (*domain.ModelVersion, error) {
	versions, err := s.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoModelVersions, s.opts.ModelName)
	}
	return versions[0], nil
}

// ListVersions returns every version of the configured model, newest first.
func (s *RegistryService) ListVersions(ctx context.Context) ([]*domain.ModelVersion, error) {
	versions, err := s.tracking.SearchModelVersions(ctx, ports.VersionSearch{
		ModelName: s.opts.ModelName,
		OrderBy:   []string{"version_number DESC"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVersionSearchFailed, err)
	}
	return versions, nil
}

// ManageLifecycle moves the latest version through Staging into Production, then loads the
// Production model and runs the sample input through it.
func (s *RegistryService) ManageLifecycle(ctx context.Context) (*LifecycleResult, error) {
	name := s.opts.ModelName
	log.Infof("--- Managing Model: %s ---", name)

	latest, err := s.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("Found latest registered version: %d", latest.Version)

	result := &LifecycleResult{Version: latest.Version}
	for _, stage := range []domain.Stage{domain.StageStaging, domain.StageProduction} {
		mv, err := s.Promote(ctx, latest.Version, stage)
		if err != nil {
			return nil, err
		}
		result.Checkpoints = append(result.Checkpoints, StageCheckpoint{Requested: stage, Observed: mv.CurrentStage})
	}

	result.ModelURI = domain.ModelURI(name, domain.StageProduction)
	log.Info("--- Loading Model from Production Stage ---")
	loaded, err := s.LoadModel(ctx, domain.StageProduction)
	if err != nil {
		result.LoadError = err
		log.WithError(err).Errorf("Error loading model from production: %s", result.ModelURI)
		return result, nil
	}
	log.WithField("version", loaded.Version).Infof("Successfully loaded model from production: %s", result.ModelURI)

	pred, err := loaded.Classifier.Predict([][]float64{s.opts.SampleInput})
	if err != nil {
		result.LoadError = err
		log.WithError(err).Error("Error running sample prediction")
		return result, nil
	}
	result.Prediction = &pred[0]
	log.Infof("Prediction for sample input %v: %d", s.opts.SampleInput, pred[0])
	return result, nil
}

// Promote transitions a version to stage, archiving other versions in that stage, and waits
// until the registry reports the new stage.
func (s *RegistryService) Promote(ctx context.Context, version int, stage domain.Stage) (*domain.ModelVersion, error) {
	name := s.opts.ModelName
	if !stage.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStage, stage)
	}

	log.Infof("Transitioning model '%s' (Version %d) to '%s'...", name, version, stage)
	if _, err := s.tracking.TransitionModelVersionStage(ctx, name, version, stage, true); err != nil {
		return nil, fmt.Errorf("transition version %d to %s: %w", version, stage, err)
	}
	log.Infof("Model '%s' (Version %d) transitioned to '%s'.", name, version, stage)

	mv, err := s.waitForStage(ctx, version, stage)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"model":   name,
		"version": version,
		"stage":   mv.CurrentStage,
	}).Infof("Current stage of Version %d: %s", version, mv.CurrentStage)
	return mv, nil
}

// waitForStage polls the version until it reports target. Running out of time is not an
// error: the last observed version is returned with a warning.
func (s *RegistryService) waitForStage(ctx context.Context, version int, target domain.Stage) (*domain.ModelVersion, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = s.opts.StageWaitTimeout

	var last *domain.ModelVersion
	op := func() error {
		mv, err := s.tracking.GetModelVersion(ctx, s.opts.ModelName, version)
		if err != nil {
			if errors.Is(err, domain.ErrVersionNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		last = mv
		if mv.CurrentStage != target {
			return fmt.Errorf("version %d is in %s, want %s", version, mv.CurrentStage, target)
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err == nil {
		return last, nil
	}
	if last == nil || ctx.Err() != nil {
		return nil, fmt.Errorf("get version %d: %w", version, err)
	}
	log.WithError(err).Warnf("registry did not report stage %s within %s", target, s.opts.StageWaitTimeout)
	return last, nil
}

// LoadModel fetches the newest version in stage and decodes its classifier.
func (s *RegistryService) LoadModel(ctx context.Context, stage domain.Stage) (*LoadedModel, error) {
	name := s.opts.ModelName
	versions, err := s.tracking.GetLatestVersions(ctx, name, []domain.Stage{stage})
	if err != nil {
		return nil, fmt.Errorf("get latest %s versions: %w", stage, err)
	}
	var chosen *domain.ModelVersion
	for _, v := range versions {
		if v.CurrentStage == stage && (chosen == nil || v.Version > chosen.Version) {
			chosen = v
		}
	}
	if chosen == nil {
		if stage == domain.StageProduction {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoProductionModel, name)
		}
		return nil, fmt.Errorf("%w: no %s version of %s", domain.ErrVersionNotFound, stage, name)
	}

	clf, err := loadModel(ctx, s.tracking, s.artifacts, chosen.Source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", domain.ModelURI(name, stage), err)
	}
	return &LoadedModel{
		Name:       name,
		Version:    chosen.Version,
		Stage:      stage,
		Source:     chosen.Source,
		LoadedAt:   time.Now(),
		Classifier: clf,
	}, nil
}
