package step

import (
	"strings"

	"github.com/stepflow-io/stepflow/config"
	"github.com/stepflow-io/stepflow/internal/constants"
	"github.com/stepflow-io/stepflow/internal/util"
)

// CachingParameters computes the code-identity portion of the cache key for
// an invocation with the given resolved outputs.
//
// The mapping always contains the step source hash. Every output with at
// least one resolved materializer contributes one entry hashing the
// concatenated materializer source hashes in resolution order, so identical
// code yields an identical fingerprint and a change to any materializer
// source only moves its own entry.
//
// Artifact values and parameters are deliberately absent: the orchestrator
// combines this fingerprint with parameter values and upstream artifact
// identities.
func (s *Step) CachingParameters(outputs map[string]config.OutputConfig) (map[string]string, error) {
	parameters := make(map[string]string, len(outputs)+1)

	sourceHash, err := util.CalculateHash(s.sourceCode)
	if err != nil {
		return nil, err
	}
	parameters[constants.StepSourceParameterName] = sourceHash

	for _, output := range s.definition.Outputs() {
		resolved, ok := outputs[output.Name]
		if !ok || len(resolved.MaterializerSources) == 0 {
			continue
		}

		var combined strings.Builder
		for _, source := range resolved.MaterializerSources {
			hash, err := s.registry.SourceHash(source)
			if err != nil {
				return nil, err
			}
			combined.WriteString(hash)
		}

		materializerHash, err := util.CalculateHash(combined.String())
		if err != nil {
			return nil, err
		}
		parameters[output.Name+constants.MaterializerSourceParameterSuffix] = materializerHash
	}

	return parameters, nil
}
