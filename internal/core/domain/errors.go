package domain

import "errors"

// ============================================================================
// Dataset Errors
// ============================================================================

var (
	ErrDataFileNotFound = errors.New("data file not found")
	ErrMalformedDataset = errors.New("malformed dataset")
	ErrEmptyDataset     = errors.New("dataset has no rows")
)

// ============================================================================
// Tracking Errors
// ============================================================================

var (
	ErrExperimentNotFound     = errors.New("experiment not found")
	ErrRunNotFound            = errors.New("run not found")
	ErrArtifactNotFound       = errors.New("artifact not found")
	ErrUnsupportedArtifactURI = errors.New("unsupported artifact uri")
)

// ============================================================================
// Model Registry Errors
// ============================================================================

// Not found errors
var (
	ErrModelNotFound     = errors.New("registered model not found")
	ErrVersionNotFound   = errors.New("model version not found")
	ErrNoModelVersions   = errors.New("no versions registered for model")
	ErrNoProductionModel = errors.New("no model version in Production stage")
)

// Registry availability errors
var (
	ErrVersionSearchFailed = errors.New("model version search failed")
	ErrRegistrationFailed  = errors.New("model version registration failed")
)

// Conflict errors
var (
	ErrModelNameConflict = errors.New("registered model with this name already exists")
)

// Validation errors
var (
	ErrInvalidModelName = errors.New("model name is required")
	ErrInvalidStage     = errors.New("invalid stage")
	ErrInvalidVersion   = errors.New("invalid model version")
)

// ============================================================================
// Model Errors
// ============================================================================

var (
	ErrModelNotFitted  = errors.New("model is not fitted")
	ErrFeatureMismatch = errors.New("feature count does not match model")
	ErrNoInstances     = errors.New("no instances to predict")
)
