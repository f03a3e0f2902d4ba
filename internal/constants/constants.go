package constants

const (
	// Name is the name of the application.
	Name = "stepflow"

	// Version is the current version of the application.
	Version = "0.0.1"
)

// Viper keys for process-level defaults.
const (
	ArgDefaultEnableCache          = "default.enable_cache"
	ArgExternalArtifactPathPrefix  = "artifact.external_path_prefix"
	ArgMaterializerCacheMaxCost    = "materializer.cache_max_cost"
	ArgMaterializerCacheNumCounter = "materializer.cache_num_counters"
)

const (
	// StepSourceParameterName keys the content hash of a step's
	// implementation source inside the caching fingerprint.
	StepSourceParameterName = "step_source"

	// MaterializerSourceParameterSuffix is appended to an output name to key
	// the hash of that output's materializer sources in the fingerprint.
	MaterializerSourceParameterSuffix = "_materializer_source"

	// SingleReturnOutputName is the output name used when a step declares a
	// single unnamed return.
	SingleReturnOutputName = "output"

	// ExternalArtifactDir is the directory under the artifact store root
	// where uploaded external artifacts are placed.
	ExternalArtifactDir = "external_artifacts"
)
