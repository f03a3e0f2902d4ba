package step

import (
	"fmt"
	"reflect"

	"github.com/stepflow-io/stepflow/config"
	"github.com/stepflow-io/stepflow/perr"
)

// CallEntrypoint invokes the step logic directly with validated arguments.
// This is the path taken when a step is called outside any active pipeline
// build; no graph state is touched.
func (s *Step) CallEntrypoint(args map[string]any) (map[string]any, error) {
	for key, value := range args {
		if err := s.definition.ValidateInput(key, value); err != nil {
			return nil, err
		}
	}

	working := config.Merge(s.configuration, &config.StepConfigUpdate{Parameters: args}, true)

	var legacy map[string]any
	if s.definition.Params() != nil {
		var err error
		legacy, err = s.finalizeLegacyParameters(working)
		if err != nil {
			return nil, err
		}
	}

	callArgs := make([]reflect.Value, len(s.definition.bindings))
	for i, binding := range s.definition.bindings {
		argType := s.definition.entrypointType.In(i)
		switch binding.role {
		case roleContext:
			callArgs[i] = reflect.ValueOf(&Context{StepName: s.Name()})
		case roleParams:
			callArgs[i] = reflect.ValueOf(Parameters(legacy))
		case roleInput:
			input := s.definition.inputs[binding.inputIndex]
			value, ok := working.Parameters[input.Name]
			if !ok {
				return nil, perr.BadRequestWithTypeAndMessage(ErrorCodeMissingInput,
					fmt.Sprintf("missing input '%s' for step '%s'", input.Name, s.Name()))
			}
			converted, err := convertArg(input.Name, value, argType)
			if err != nil {
				return nil, err
			}
			callArgs[i] = converted
		}
	}

	results := s.definition.entrypoint.Call(callArgs)

	if s.definition.returnErr {
		errValue := results[len(results)-1]
		if !errValue.IsNil() {
			return nil, errValue.Interface().(error)
		}
		results = results[:len(results)-1]
	}

	outputs := make(map[string]any, len(results))
	for i, output := range s.definition.Outputs() {
		outputs[output.Name] = results[i].Interface()
	}
	return outputs, nil
}

func convertArg(name string, value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch target.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, perr.BadRequestWithMessage(fmt.Sprintf("argument '%s' must not be null", name))
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if v.Type().ConvertibleTo(target) {
		return v.Convert(target), nil
	}
	return reflect.Value{}, perr.BadRequestWithMessage(
		fmt.Sprintf("argument '%s' of type %s cannot be passed as %s", name, v.Type(), target))
}
