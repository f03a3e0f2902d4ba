package config

import (
	"github.com/google/uuid"
)

// OutputConfig is the per-output artifact configuration. Materializer
// sources are identifiers resolvable through the materializer registry, in
// resolution order.
type OutputConfig struct {
	MaterializerSources []string `json:"materializer_source,omitempty"`
}

// PartialStepConfig is the mutable-by-merge configuration a step template
// accumulates before finalization. Every merge produces a new snapshot, the
// receiver is never modified in place.
type PartialStepConfig struct {
	Name                        string                    `json:"name"`
	EnableCache                 *bool                     `json:"enable_cache,omitempty"`
	EnableArtifactMetadata      *bool                     `json:"enable_artifact_metadata,omitempty"`
	EnableArtifactVisualization *bool                     `json:"enable_artifact_visualization,omitempty"`
	ExperimentTracker           *string                   `json:"experiment_tracker,omitempty"`
	StepOperator                *string                   `json:"step_operator,omitempty"`
	Parameters                  map[string]any            `json:"parameters,omitempty"`
	Settings                    map[string]map[string]any `json:"settings,omitempty"`
	Outputs                     map[string]OutputConfig   `json:"outputs,omitempty"`
	Extra                       map[string]any            `json:"extra,omitempty"`
	FailureHookSource           *string                   `json:"failure_hook_source,omitempty"`
	SuccessHookSource           *string                   `json:"success_hook_source,omitempty"`
}

// StepConfig is the finalized, immutable configuration snapshot for one
// invocation. Created exactly once at finalization time and safe for
// concurrent reads afterwards.
type StepConfig struct {
	PartialStepConfig

	CachingParameters      map[string]string    `json:"caching_parameters,omitempty"`
	ExternalInputArtifacts map[string]uuid.UUID `json:"external_input_artifacts,omitempty"`
}

func NewPartialStepConfig(name string) *PartialStepConfig {
	return &PartialStepConfig{
		Name: name,
	}
}

// Clone returns a deep copy, so callers can hand out snapshots without
// sharing map storage.
func (c *PartialStepConfig) Clone() *PartialStepConfig {
	if c == nil {
		return nil
	}

	clone := &PartialStepConfig{
		Name:                        c.Name,
		EnableCache:                 clonePtr(c.EnableCache),
		EnableArtifactMetadata:      clonePtr(c.EnableArtifactMetadata),
		EnableArtifactVisualization: clonePtr(c.EnableArtifactVisualization),
		ExperimentTracker:           clonePtr(c.ExperimentTracker),
		StepOperator:                clonePtr(c.StepOperator),
		Parameters:                  cloneMap(c.Parameters),
		Extra:                       cloneMap(c.Extra),
		FailureHookSource:           clonePtr(c.FailureHookSource),
		SuccessHookSource:           clonePtr(c.SuccessHookSource),
	}

	if c.Settings != nil {
		clone.Settings = make(map[string]map[string]any, len(c.Settings))
		for key, value := range c.Settings {
			clone.Settings[key] = cloneMap(value)
		}
	}
	if c.Outputs != nil {
		clone.Outputs = make(map[string]OutputConfig, len(c.Outputs))
		for name, output := range c.Outputs {
			clone.Outputs[name] = output.clone()
		}
	}
	return clone
}

func (o OutputConfig) clone() OutputConfig {
	if o.MaterializerSources == nil {
		return OutputConfig{}
	}
	sources := make([]string, len(o.MaterializerSources))
	copy(sources, o.MaterializerSources)
	return OutputConfig{MaterializerSources: sources}
}

func clonePtr[T any](ptr *T) *T {
	if ptr == nil {
		return nil
	}
	value := *ptr
	return &value
}

func cloneMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	clone := make(map[string]V, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
