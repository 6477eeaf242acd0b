package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
	"iris-model-pipeline/internal/ml/logreg"
	"iris-model-pipeline/internal/ml/metrics"
	"iris-model-pipeline/internal/ml/split"
)

type TrainingOptions struct {
	ExperimentName string
	ModelName      string
	ArtifactPath   string
	TestSize       float64
	RandomState    int64
	Model          logreg.Params
	// RegistrationWait bounds how long a PENDING_REGISTRATION version is polled.
	RegistrationWait time.Duration
}

type TrainResult struct {
	Run          *domain.Run
	ModelVersion *domain.ModelVersion
	Params       []domain.Param
	Report       metrics.Report
	Model        *logreg.Classifier
	TrainRows    int
	TestRows     int
}

type TrainingService struct {
	repo      ports.DatasetRepository
	tracking  ports.TrackingClient
	artifacts ports.ArtifactStore
	opts      TrainingOptions
}

func NewTrainingService(repo ports.DatasetRepository, tracking ports.TrackingClient, artifacts ports.ArtifactStore, opts TrainingOptions) *TrainingService {
	if opts.ArtifactPath == "" {
		opts.ArtifactPath = "model"
	}
	if opts.RegistrationWait <= 0 {
		opts.RegistrationWait = 10 * time.Second
	}
	return &TrainingService{repo: repo, tracking: tracking, artifacts: artifacts, opts: opts}
}

// Train fits a classifier on the CSV at dataPath and records it as a new run and a new
// registered model version. A missing file returns domain.ErrDataFileNotFound before any run
// is created.
func (s *TrainingService) Train(ctx context.Context, dataPath string) (*TrainResult, error) {
	if s.opts.ModelName == "" {
		return nil, domain.ErrInvalidModelName
	}

	ds, err := s.repo.Read(ctx, dataPath)
	if err != nil {
		return nil, err
	}
	log.WithField("rows", ds.Len()).Infof("Data loaded from %s", dataPath)

	experimentID, err := s.experimentID(ctx)
	if err != nil {
		return nil, err
	}

	run, err := s.tracking.CreateRun(ctx, experimentID, "", map[string]string{
		"mlflow.source.type": "LOCAL",
		"mlflow.source.name": "mlpipeline train",
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	logger := log.WithField("run_id", run.ID)
	logger.Debug("run started")

	result, trainErr := s.trainInRun(ctx, run, ds)

	status := domain.RunStatusFinished
	switch {
	case trainErr != nil && ctx.Err() != nil:
		status = domain.RunStatusKilled
	case trainErr != nil:
		status = domain.RunStatusFailed
	}
	end := time.Now()
	// The run must be closed even when ctx was cancelled mid-training.
	if err := s.tracking.UpdateRun(context.WithoutCancel(ctx), run.ID, status, end); err != nil {
		if trainErr != nil {
			logger.WithError(err).Warn("mark run failed")
			return nil, trainErr
		}
		return nil, fmt.Errorf("finish run: %w", err)
	}
	if trainErr != nil {
		return nil, trainErr
	}

	run.Status = status
	run.EndTime = &end
	return result, nil
}

func (s *TrainingService) experimentID(ctx context.Context) (string, error) {
	name := s.opts.ExperimentName
	if name == "" {
		name = "Default"
	}
	exp, err := s.tracking.GetExperimentByName(ctx, name)
	if err == nil {
		return exp.ID, nil
	}
	if !errors.Is(err, domain.ErrExperimentNotFound) {
		return "", fmt.Errorf("get experiment %q: %w", name, err)
	}
	id, err := s.tracking.CreateExperiment(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create experiment %q: %w", name, err)
	}
	log.WithField("experiment_id", id).Infof("Created experiment %q", name)
	return id, nil
}

func (s *TrainingService) trainInRun(ctx context.Context, run *domain.Run, ds *domain.Dataset) (*TrainResult, error) {
	trainIdx, testIdx, err := split.TrainTest(ds.Len(), s.opts.TestSize, s.opts.RandomState)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	train, test := ds.Subset(trainIdx), ds.Subset(testIdx)

	params := []domain.Param{
		{Key: "model_type", Value: logreg.ModelType},
		{Key: "test_size", Value: strconv.FormatFloat(s.opts.TestSize, 'f', -1, 64)},
		{Key: "random_state", Value: strconv.FormatInt(s.opts.RandomState, 10)},
		{Key: "solver", Value: logreg.Solver},
		{Key: "max_iter", Value: strconv.Itoa(s.opts.Model.MaxIter)},
	}

	clf := logreg.New(s.opts.Model)
	clf.FeatureNames = ds.FeatureNames
	if err := clf.Fit(train.Features, train.Targets); err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	log.WithField("n_iter", clf.NIter).Info("Model trained.")

	pred, err := clf.Predict(test.Features)
	if err != nil {
		return nil, fmt.Errorf("predict test split: %w", err)
	}
	report, err := metrics.Evaluate(test.Targets, pred)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	now := time.Now()
	logged := []domain.Metric{
		{Key: metrics.Accuracy, Value: report.Accuracy, Timestamp: now},
		{Key: metrics.Precision, Value: report.Precision, Timestamp: now},
		{Key: metrics.Recall, Value: report.Recall, Timestamp: now},
		{Key: metrics.F1Score, Value: report.F1, Timestamp: now},
	}
	if err := s.tracking.LogBatch(ctx, run.ID, params, logged); err != nil {
		return nil, fmt.Errorf("log params and metrics: %w", err)
	}
	log.Infof("Accuracy: %.4f", report.Accuracy)
	log.Infof("F1-score: %.4f", report.F1)

	if err := logModel(ctx, s.artifacts, run, s.opts.ArtifactPath, clf); err != nil {
		return nil, fmt.Errorf("log model: %w", err)
	}

	mv, err := s.register(ctx, run)
	if err != nil {
		return nil, err
	}
	log.Info("Model logged to MLflow.")

	run.Params = make(map[string]string, len(params))
	for _, p := range params {
		run.Params[p.Key] = p.Value
	}
	run.Metrics = report.Map()

	return &TrainResult{
		Run:          run,
		ModelVersion: mv,
		Params:       params,
		Report:       report,
		Model:        clf,
		TrainRows:    train.Len(),
		TestRows:     test.Len(),
	}, nil
}

// register creates the registered model on first use and adds a version pointing at the
// run's model artifact.
func (s *TrainingService) register(ctx context.Context, run *domain.Run) (*domain.ModelVersion, error) {
	name := s.opts.ModelName
	if _, err := s.tracking.CreateRegisteredModel(ctx, name); err != nil {
		if !errors.Is(err, domain.ErrModelNameConflict) {
			return nil, fmt.Errorf("register model %q: %w", name, err)
		}
	} else {
		log.Infof("Successfully registered model '%s'.", name)
	}

	source := strings.TrimRight(run.ArtifactURI, "/") + "/" + s.opts.ArtifactPath
	mv, err := s.tracking.CreateModelVersion(ctx, name, source, run.ID)
	if err != nil {
		return nil, fmt.Errorf("create model version: %w", err)
	}
	if mv, err = s.awaitRegistration(ctx, mv); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"model":   name,
		"version": mv.Version,
	}).Infof("Created version '%d' of model '%s'.", mv.Version, name)
	return mv, nil
}

// awaitRegistration polls a version the registry still reports as PENDING_REGISTRATION until
// it settles. A version that is still pending when the wait runs out is returned as is.
func (s *TrainingService) awaitRegistration(ctx context.Context, mv *domain.ModelVersion) (*domain.ModelVersion, error) {
	if mv.Status == domain.VersionStatusPendingRegistration {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 200 * time.Millisecond
		bo.MaxInterval = time.Second
		bo.MaxElapsedTime = s.opts.RegistrationWait

		op := func() error {
			got, err := s.tracking.GetModelVersion(ctx, mv.Name, mv.Version)
			if err != nil {
				return err
			}
			mv = got
			if got.Status == domain.VersionStatusPendingRegistration {
				return fmt.Errorf("version %d is still pending registration", got.Version)
			}
			return nil
		}
		if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
			log.WithError(err).Warnf("Model version %d not ready after %s", mv.Version, s.opts.RegistrationWait)
		}
	}
	if mv.Status == domain.VersionStatusFailedRegistration {
		return nil, fmt.Errorf("%w: version %d of %s", domain.ErrRegistrationFailed, mv.Version, mv.Name)
	}
	return mv, nil
}
