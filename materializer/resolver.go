package materializer

import (
	"fmt"

	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/typespec"
)

const (
	ErrorCodeMaterializerRequired = "error_materializer_required"
	ErrorCodeMaterializerNotFound = "error_materializer_not_found"
)

// Resolve maps a declared output type to an ordered list of materializer
// identifiers.
//
// Explicit sources win: each one is checked against the registry and the
// list is returned as given, no inference. Otherwise the declared type is
// resolved against the registry, with unions decomposed into their members
// in declaration order.
func Resolve(registry *Registry, stepName, outputName string, declared typespec.Spec, explicitSources []string) ([]string, error) {
	if len(explicitSources) > 0 {
		resolved := make([]string, 0, len(explicitSources))
		for _, source := range explicitSources {
			if _, ok := registry.LookupID(source); !ok {
				return nil, perr.BadRequestWithTypeAndMessage(ErrorCodeMaterializerNotFound,
					fmt.Sprintf("materializer source '%s' for output '%s' of step '%s' does not resolve to a registered materializer", source, outputName, stepName))
			}
			resolved = append(resolved, source)
		}
		return resolved, nil
	}

	if declared.IsAny() {
		return nil, perr.BadRequestWithTypeAndMessage(ErrorCodeMaterializerRequired,
			fmt.Sprintf("an explicit materializer needs to be specified for output '%s' of step '%s' with an unconstrained type", outputName, stepName))
	}

	var resolved []string
	for _, member := range declared.Members() {
		m, ok := registry.Lookup(member)
		if !ok {
			return nil, perr.BadRequestWithTypeAndMessage(ErrorCodeMaterializerNotFound,
				fmt.Sprintf("unable to find materializer for output '%s' of type %s in step '%s', set an explicit materializer or register a default one for the type", outputName, member.String(), stepName))
		}
		resolved = append(resolved, m.ID())
	}
	return resolved, nil
}
