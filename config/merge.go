package config

// Merge applies an update to a base configuration and returns a new
// snapshot. The base is never mutated.
//
// When deep is false every non-nil field in the update fully replaces the
// corresponding base field; mapping fields are replaced wholesale. When deep
// is true scalar fields are still replaced, but mapping fields are merged
// key by key with the update winning on collision. Nested mappings recurse
// one level: settings merge per namespace then per key, outputs merge per
// output name then per entry within the output.
func Merge(base *PartialStepConfig, update *StepConfigUpdate, deep bool) *PartialStepConfig {
	merged := base.Clone()
	if merged == nil {
		merged = &PartialStepConfig{}
	}
	if update == nil {
		return merged
	}

	if update.EnableCache != nil {
		merged.EnableCache = clonePtr(update.EnableCache)
	}
	if update.EnableArtifactMetadata != nil {
		merged.EnableArtifactMetadata = clonePtr(update.EnableArtifactMetadata)
	}
	if update.EnableArtifactVisualization != nil {
		merged.EnableArtifactVisualization = clonePtr(update.EnableArtifactVisualization)
	}
	if update.ExperimentTracker != nil {
		merged.ExperimentTracker = clonePtr(update.ExperimentTracker)
	}
	if update.StepOperator != nil {
		merged.StepOperator = clonePtr(update.StepOperator)
	}
	if update.FailureHookSource != nil {
		merged.FailureHookSource = clonePtr(update.FailureHookSource)
	}
	if update.SuccessHookSource != nil {
		merged.SuccessHookSource = clonePtr(update.SuccessHookSource)
	}

	if update.Parameters != nil {
		merged.Parameters = mergeMap(merged.Parameters, update.Parameters, deep)
	}
	if update.Extra != nil {
		merged.Extra = mergeMap(merged.Extra, update.Extra, deep)
	}
	if update.Settings != nil {
		merged.Settings = mergeSettings(merged.Settings, update.Settings, deep)
	}
	if update.Outputs != nil {
		merged.Outputs = mergeOutputs(merged.Outputs, update.Outputs, deep)
	}

	return merged
}

func mergeMap[V any](base, update map[string]V, deep bool) map[string]V {
	if !deep || base == nil {
		return cloneMap(update)
	}
	merged := cloneMap(base)
	for key, value := range update {
		merged[key] = value
	}
	return merged
}

func mergeSettings(base, update map[string]map[string]any, deep bool) map[string]map[string]any {
	if !deep || base == nil {
		merged := make(map[string]map[string]any, len(update))
		for key, value := range update {
			merged[key] = cloneMap(value)
		}
		return merged
	}

	merged := make(map[string]map[string]any, len(base)+len(update))
	for key, value := range base {
		merged[key] = cloneMap(value)
	}
	for key, value := range update {
		merged[key] = mergeMap(merged[key], value, deep)
	}
	return merged
}

func mergeOutputs(base, update map[string]OutputConfig, deep bool) map[string]OutputConfig {
	if !deep || base == nil {
		merged := make(map[string]OutputConfig, len(update))
		for name, output := range update {
			merged[name] = output.clone()
		}
		return merged
	}

	merged := make(map[string]OutputConfig, len(base)+len(update))
	for name, output := range base {
		merged[name] = output.clone()
	}
	for name, output := range update {
		existing := merged[name]
		if output.MaterializerSources != nil {
			existing.MaterializerSources = output.clone().MaterializerSources
		}
		merged[name] = existing
	}
	return merged
}
