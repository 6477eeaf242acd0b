package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
	"iris-model-pipeline/internal/ml/logreg"
)

// Files written below a model's artifact path.
const (
	ModelDataFile   = "model.json"
	ModelDescriptor = "MLmodel"
	FlavorName      = "go_logreg"
)

type mlModel struct {
	ArtifactPath   string                    `yaml:"artifact_path"`
	Flavors        map[string]flavorSpec     `yaml:"flavors"`
	ModelUUID      string                    `yaml:"model_uuid"`
	RunID          string                    `yaml:"run_id"`
	UTCTimeCreated string                    `yaml:"utc_time_created"`
	Signature      map[string]signatureSpecs `yaml:"signature,omitempty"`
}

type flavorSpec struct {
	Data      string `yaml:"data"`
	ModelType string `yaml:"model_type"`
	Solver    string `yaml:"solver"`
	Classes   []int  `yaml:"classes,flow"`
}

type signatureSpecs []map[string]string

// buildDescriptor renders the MLmodel YAML that sits next to model.json.
func buildDescriptor(artifactPath, runID string, clf *logreg.Classifier, created time.Time) ([]byte, error) {
	inputs := make(signatureSpecs, 0, len(clf.FeatureNames))
	for _, name := range clf.FeatureNames {
		inputs = append(inputs, map[string]string{"name": name, "type": "double"})
	}

	doc := mlModel{
		ArtifactPath: artifactPath,
		Flavors: map[string]flavorSpec{
			FlavorName: {
				Data:      ModelDataFile,
				ModelType: logreg.ModelType,
				Solver:    logreg.Solver,
				Classes:   clf.Classes,
			},
		},
		ModelUUID:      uuid.New().String(),
		RunID:          runID,
		UTCTimeCreated: created.UTC().Format("2006-01-02 15:04:05.000000"),
		Signature: map[string]signatureSpecs{
			"inputs":  inputs,
			"outputs": {{"type": "long"}},
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ModelDescriptor, err)
	}
	return out, nil
}

// parseDescriptor reads back an MLmodel file and checks it declares the flavor we can load.
func parseDescriptor(data []byte) (*mlModel, error) {
	var doc mlModel
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ModelDescriptor, err)
	}
	if _, ok := doc.Flavors[FlavorName]; !ok {
		return nil, fmt.Errorf("%s has no %s flavor", ModelDescriptor, FlavorName)
	}
	return &doc, nil
}

// logModel uploads the classifier and its descriptor below <artifactURI>/<artifactPath>.
func logModel(ctx context.Context, store ports.ArtifactStore, run *domain.Run, artifactPath string, clf *logreg.Classifier) error {
	data, err := clf.MarshalArtifact()
	if err != nil {
		return err
	}
	desc, err := buildDescriptor(artifactPath, run.ID, clf, time.Now())
	if err != nil {
		return err
	}
	if err := store.Upload(ctx, run.ArtifactURI, artifactPath+"/"+ModelDataFile, data); err != nil {
		return err
	}
	return store.Upload(ctx, run.ArtifactURI, artifactPath+"/"+ModelDescriptor, desc)
}

// resolveSource turns a model version source into an artifact root URI. runs:/<id>/<path>
// sources are resolved against the run's artifact URI.
func resolveSource(ctx context.Context, tracking ports.TrackingClient, source string) (string, error) {
	rest, ok := strings.CutPrefix(source, "runs:/")
	if !ok {
		return source, nil
	}
	runID, relPath, _ := strings.Cut(strings.TrimPrefix(rest, "/"), "/")
	run, err := tracking.GetRun(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", source, err)
	}
	if relPath == "" {
		return run.ArtifactURI, nil
	}
	return strings.TrimRight(run.ArtifactURI, "/") + "/" + relPath, nil
}

// loadModel downloads and decodes the classifier stored at a model version's source.
func loadModel(ctx context.Context, tracking ports.TrackingClient, store ports.ArtifactStore, source string) (*logreg.Classifier, error) {
	root, err := resolveSource(ctx, tracking, source)
	if err != nil {
		return nil, err
	}

	// The descriptor is optional; without one the data file has its default name.
	dataFile := ModelDataFile
	desc, err := store.Download(ctx, root, ModelDescriptor)
	switch {
	case err == nil:
		doc, err := parseDescriptor(desc)
		if err != nil {
			return nil, err
		}
		if f := doc.Flavors[FlavorName].Data; f != "" {
			dataFile = f
		}
	case !errors.Is(err, domain.ErrArtifactNotFound):
		return nil, fmt.Errorf("read %s: %w", ModelDescriptor, err)
	}

	data, err := store.Download(ctx, root, dataFile)
	if err != nil {
		return nil, err
	}
	return logreg.UnmarshalArtifact(data)
}
