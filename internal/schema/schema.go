package schema

import "strings"

// Configuration attribute names, used in merge validation and error messages.
const (
	AttributeTypeName                        = "name"
	AttributeTypeEnableCache                 = "enable_cache"
	AttributeTypeEnableArtifactMetadata      = "enable_artifact_metadata"
	AttributeTypeEnableArtifactVisualization = "enable_artifact_visualization"
	AttributeTypeExperimentTracker           = "experiment_tracker"
	AttributeTypeStepOperator                = "step_operator"
	AttributeTypeParameters                  = "parameters"
	AttributeTypeSettings                    = "settings"
	AttributeTypeOutputs                     = "outputs"
	AttributeTypeExtra                       = "extra"
	AttributeTypeFailureHook                 = "failure_hook_source"
	AttributeTypeSuccessHook                 = "success_hook_source"
	AttributeTypeMaterializerSource          = "materializer_source"
)

// General setting namespaces recognized for every step.
const (
	SettingKeyResources = "resources"
	SettingKeyDocker    = "docker"
)

// Component-scoped settings are keyed "<component>.<flavor>".
var validSettingComponents = []string{
	AttributeTypeStepOperator,
	AttributeTypeExperimentTracker,
	"orchestrator",
}

var validGeneralSettingKeys = []string{
	SettingKeyResources,
	SettingKeyDocker,
}

// IsValidSettingKey reports whether a settings key belongs to the recognized
// namespace.
func IsValidSettingKey(key string) bool {
	for _, valid := range validGeneralSettingKeys {
		if key == valid {
			return true
		}
	}

	component, flavor, found := strings.Cut(key, ".")
	if !found || flavor == "" {
		return false
	}
	for _, valid := range validSettingComponents {
		if component == valid {
			return true
		}
	}
	return false
}
