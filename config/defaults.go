package config

import (
	"github.com/spf13/viper"
	"github.com/stepflow-io/stepflow/internal/constants"
)

// SetDefaults registers the process-level configuration defaults. Call once
// at startup, before any pipeline build.
func SetDefaults() {
	viper.SetDefault(constants.ArgDefaultEnableCache, true)
	viper.SetDefault(constants.ArgExternalArtifactPathPrefix, constants.ExternalArtifactDir)
	viper.SetDefault(constants.ArgMaterializerCacheMaxCost, 67108864)
	viper.SetDefault(constants.ArgMaterializerCacheNumCounter, 100000)
}

// DefaultEnableCache returns the process-wide cache default used when a step
// does not configure caching explicitly.
func DefaultEnableCache() bool {
	if !viper.IsSet(constants.ArgDefaultEnableCache) {
		return true
	}
	return viper.GetBool(constants.ArgDefaultEnableCache)
}

// ExternalArtifactPathPrefix is the directory prefix for uploaded external
// artifacts inside the artifact store.
func ExternalArtifactPathPrefix() string {
	prefix := viper.GetString(constants.ArgExternalArtifactPathPrefix)
	if prefix == "" {
		return constants.ExternalArtifactDir
	}
	return prefix
}
