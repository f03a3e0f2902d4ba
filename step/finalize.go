package step

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/stepflow-io/stepflow/artifact"
	"github.com/stepflow-io/stepflow/config"
	"github.com/stepflow-io/stepflow/internal/util"
	"github.com/stepflow-io/stepflow/materializer"
	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/typespec"
)

// FinalizeConfiguration produces the immutable configuration snapshot for
// one invocation of this template. The template itself is not modified, so
// the same template can finalize any number of invocations.
//
// Invocation-supplied parameters take precedence over configured ones and
// the resulting parameter set replaces the parameters field wholesale.
// Output materializers are resolved, every interface input is checked for a
// bound value, and the caching fingerprint is computed last.
func (s *Step) FinalizeConfiguration(
	inputArtifacts map[string]*artifact.StepArtifact,
	externalArtifacts map[string]uuid.UUID,
	invocationParams map[string]any,
) (*config.StepConfig, error) {
	working := config.Merge(s.configuration, &config.StepConfigUpdate{Parameters: invocationParams}, true)

	parameters, err := s.finalizeParameters(working)
	if err != nil {
		return nil, err
	}
	working = config.Merge(working, &config.StepConfigUpdate{Parameters: parameters}, false)

	outputs := make(map[string]config.OutputConfig, len(s.definition.outputs))
	for _, output := range s.definition.Outputs() {
		explicit := working.Outputs[output.Name].MaterializerSources
		resolved, err := materializer.Resolve(s.registry, s.Name(), output.Name, output.Type, explicit)
		if err != nil {
			return nil, err
		}
		outputs[output.Name] = config.OutputConfig{MaterializerSources: resolved}
	}
	working = config.Merge(working, &config.StepConfigUpdate{Outputs: outputs}, true)

	if err := s.validateInputs(inputArtifacts, externalArtifacts, working.Parameters); err != nil {
		return nil, err
	}

	cachingParameters, err := s.CachingParameters(working.Outputs)
	if err != nil {
		return nil, err
	}

	if working.EnableCache == nil {
		working.EnableCache = util.Ptr(config.DefaultEnableCache())
	}

	external := make(map[string]uuid.UUID, len(externalArtifacts))
	for key, id := range externalArtifacts {
		external[key] = id
	}

	return &config.StepConfig{
		PartialStepConfig:      *working,
		CachingParameters:      cachingParameters,
		ExternalInputArtifacts: external,
	}, nil
}

// finalizeParameters narrows the merged parameter set to the entrypoint
// interface and fills in the legacy parameter object.
func (s *Step) finalizeParameters(working *config.PartialStepConfig) (map[string]any, error) {
	parameters := make(map[string]any)

	for key, value := range working.Parameters {
		if _, ok := s.definition.InputType(key); !ok {
			continue
		}
		if err := s.definition.ValidateInput(key, value); err != nil {
			return nil, err
		}
		parameters[key] = value
	}

	if spec := s.definition.Params(); spec != nil {
		legacy, err := s.finalizeLegacyParameters(working)
		if err != nil {
			return nil, err
		}
		parameters[spec.Name] = legacy
	}

	return parameters, nil
}

// finalizeLegacyParameters assembles the legacy parameter object from
// configured values and field defaults. Required fields without a value fail
// the finalization.
func (s *Step) finalizeLegacyParameters(working *config.PartialStepConfig) (map[string]any, error) {
	spec := s.definition.Params()
	if spec == nil {
		return nil, nil
	}

	// values may have been configured under the parameter object's own name
	newWay := map[string]any{}
	switch configured := working.Parameters[spec.Name].(type) {
	case map[string]any:
		newWay = configured
	case Parameters:
		newWay = configured
	}

	values := make(map[string]any, len(spec.Fields))
	var missing []string
	for _, field := range spec.Fields {
		if value, ok := working.Parameters[field.Name]; ok {
			values[field.Name] = value
		} else if value, ok := newWay[field.Name]; ok {
			values[field.Name] = value
		} else if field.Required {
			missing = append(missing, field.Name)
		} else {
			values[field.Name] = field.Default
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, perr.BadRequestWithTypeAndMessage(ErrorCodeMissingStepParameter,
			fmt.Sprintf("step '%s' is missing required parameter(s): %s", s.Name(), strings.Join(missing, ", ")))
	}

	for _, field := range spec.Fields {
		if err := typespec.ValidateValue(field.Name, values[field.Name], field.Type); err != nil {
			return nil, err
		}
	}

	return values, nil
}

// validateInputs ensures every interface input has a bound value: an
// artifact, an external artifact, or a parameter.
func (s *Step) validateInputs(
	inputArtifacts map[string]*artifact.StepArtifact,
	externalArtifacts map[string]uuid.UUID,
	parameters map[string]any,
) error {
	for _, input := range s.definition.Inputs() {
		if _, ok := inputArtifacts[input.Name]; ok {
			continue
		}
		if _, ok := externalArtifacts[input.Name]; ok {
			continue
		}
		if _, ok := parameters[input.Name]; ok {
			continue
		}
		return perr.BadRequestWithTypeAndMessage(ErrorCodeMissingInput,
			fmt.Sprintf("missing input '%s' for step '%s'", input.Name, s.Name()))
	}
	return nil
}
