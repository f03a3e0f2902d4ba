package config

// StepConfigUpdate is a patch applied to a step configuration. Nil fields
// are left untouched by the merge; consumed immediately and never stored.
type StepConfigUpdate struct {
	EnableCache                 *bool                     `json:"enable_cache,omitempty"`
	EnableArtifactMetadata      *bool                     `json:"enable_artifact_metadata,omitempty"`
	EnableArtifactVisualization *bool                     `json:"enable_artifact_visualization,omitempty"`
	ExperimentTracker           *string                   `json:"experiment_tracker,omitempty" validate:"omitempty,min=1"`
	StepOperator                *string                   `json:"step_operator,omitempty" validate:"omitempty,min=1"`
	Parameters                  map[string]any            `json:"parameters,omitempty"`
	Settings                    map[string]map[string]any `json:"settings,omitempty"`
	Outputs                     map[string]OutputConfig   `json:"outputs,omitempty"`
	Extra                       map[string]any            `json:"extra,omitempty"`
	FailureHookSource           *string                   `json:"failure_hook_source,omitempty" validate:"omitempty,min=1"`
	SuccessHookSource           *string                   `json:"success_hook_source,omitempty" validate:"omitempty,min=1"`
}

// IsEmpty reports whether the update would leave any merge target unchanged.
func (u *StepConfigUpdate) IsEmpty() bool {
	if u == nil {
		return true
	}
	return u.EnableCache == nil &&
		u.EnableArtifactMetadata == nil &&
		u.EnableArtifactVisualization == nil &&
		u.ExperimentTracker == nil &&
		u.StepOperator == nil &&
		u.Parameters == nil &&
		u.Settings == nil &&
		u.Outputs == nil &&
		u.Extra == nil &&
		u.FailureHookSource == nil &&
		u.SuccessHookSource == nil
}
