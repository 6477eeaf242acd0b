package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a registry lifecycle position. The registry owns transitions between stages.
type Stage string

const (
	StageNone       Stage = "None"
	StageStaging    Stage = "Staging"
	StageProduction Stage = "Production"
	StageArchived   Stage = "Archived"
)

// ParseStage accepts any casing of a known stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range []Stage{StageNone, StageStaging, StageProduction, StageArchived} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

func (s Stage) IsValid() bool {
	_, err := ParseStage(string(s))
	return err == nil
}

type VersionStatus string

const (
	VersionStatusPendingRegistration VersionStatus = "PENDING_REGISTRATION"
	VersionStatusFailedRegistration  VersionStatus = "FAILED_REGISTRATION"
	VersionStatusReady               VersionStatus = "READY"
)

type RegisteredModel struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ModelVersion is a numbered registration of a run's model artifact.
type ModelVersion struct {
	Name         string        `json:"name"`
	Version      int           `json:"version"`
	CurrentStage Stage         `json:"current_stage"`
	Source       string        `json:"source"`
	RunID        string        `json:"run_id"`
	Status       VersionStatus `json:"status"`
	Description  string        `json:"description"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ModelURI returns the registry URI that addresses a model by name and stage.
func ModelURI(name string, stage Stage) string {
	return fmt.Sprintf("models:/%s/%s", name, stage)
}
