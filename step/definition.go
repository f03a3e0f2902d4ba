package step

import (
	"fmt"
	"reflect"

	"github.com/stepflow-io/stepflow/internal/constants"
	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/typespec"
)

const (
	ErrorCodeStepInterface        = "error_step_interface"
	ErrorCodeMissingInput         = "error_missing_input"
	ErrorCodeMissingStepParameter = "error_missing_step_parameter"
)

// Context is the optional step context argument. A step declaring it gets
// access to run-scoped information when executed; its presence also disables
// caching by default since context access may reach external resources.
type Context struct {
	StepName string
}

// Parameters is the legacy parameter object. An entrypoint may declare at
// most one argument of this type.
type Parameters map[string]any

// ParamField describes one field of a legacy parameter object.
type ParamField struct {
	Name     string
	Type     typespec.Spec
	Default  any
	Required bool
}

// ParamSpec is the declared legacy parameter object: the entrypoint argument
// name it binds to plus its field set.
type ParamSpec struct {
	Name   string
	Fields []ParamField
}

// InputSpec is a named, typed entrypoint input.
type InputSpec struct {
	Name string
	Type typespec.Spec
}

// OutputSpec is a named, typed entrypoint output.
type OutputSpec struct {
	Name string
	Type typespec.Spec
}

type paramRole int

const (
	roleInput paramRole = iota
	roleContext
	roleParams
)

type boundParam struct {
	role       paramRole
	inputIndex int // valid for roleInput
}

// Definition is the typed interface descriptor of a step entrypoint,
// derived once per step template and immutable afterwards.
type Definition struct {
	entrypoint     reflect.Value
	entrypointType reflect.Type
	entrypointName string

	inputs     []InputSpec
	inputIndex map[string]int
	outputs    []OutputSpec
	hasContext bool
	params     *ParamSpec

	bindings  []boundParam
	returnErr bool
}

type definitionOptions struct {
	inputs  []InputSpec
	outputs []OutputSpec
	params  *ParamSpec
}

type DefinitionOption func(*definitionOptions)

// Input declares the next positional entrypoint argument as a typed input.
func Input(name string, spec typespec.Spec) DefinitionOption {
	return func(o *definitionOptions) {
		o.inputs = append(o.inputs, InputSpec{Name: name, Type: spec})
	}
}

// Output declares a named output. Declaration order must match the
// entrypoint's return values.
func Output(name string, spec typespec.Spec) DefinitionOption {
	return func(o *definitionOptions) {
		o.outputs = append(o.outputs, OutputSpec{Name: name, Type: spec})
	}
}

// Returns declares a single unnamed output under the default output name.
func Returns(spec typespec.Spec) DefinitionOption {
	return Output(constants.SingleReturnOutputName, spec)
}

// LegacyParams declares the parameter-object argument of the entrypoint.
func LegacyParams(name string, fields ...ParamField) DefinitionOption {
	return func(o *definitionOptions) {
		o.params = &ParamSpec{Name: name, Fields: fields}
	}
}

var (
	contextType    = reflect.TypeOf((*Context)(nil))
	parametersType = reflect.TypeOf(Parameters(nil))
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

// NewDefinition inspects an entrypoint function against its declared
// annotations and produces the step's typed interface descriptor.
func NewDefinition(entrypoint any, opts ...DefinitionOption) (*Definition, error) {
	options := &definitionOptions{}
	for _, opt := range opts {
		opt(options)
	}

	fnValue := reflect.ValueOf(entrypoint)
	if !fnValue.IsValid() || fnValue.Kind() != reflect.Func {
		return nil, interfaceErr("step entrypoint must be a function")
	}
	fnType := fnValue.Type()

	if fnType.IsVariadic() {
		return nil, interfaceErr(fmt.Sprintf("variadic arguments are not allowed for function %s", funcName(fnValue)))
	}

	def := &Definition{
		entrypoint:     fnValue,
		entrypointType: fnType,
		entrypointName: funcName(fnValue),
		inputIndex:     make(map[string]int),
		params:         options.params,
	}

	nextInput := 0
	for i := 0; i < fnType.NumIn(); i++ {
		argType := fnType.In(i)
		switch {
		case argType == contextType:
			if def.hasContext {
				return nil, interfaceErr(fmt.Sprintf("found multiple context arguments for function %s", def.entrypointName))
			}
			def.hasContext = true
			def.bindings = append(def.bindings, boundParam{role: roleContext})
		case argType == parametersType:
			if options.params == nil {
				return nil, interfaceErr(fmt.Sprintf("missing parameter object declaration for function %s", def.entrypointName))
			}
			if len(def.bindings) > 0 && hasRole(def.bindings, roleParams) {
				return nil, interfaceErr(fmt.Sprintf("found multiple parameter arguments for function %s", def.entrypointName))
			}
			def.bindings = append(def.bindings, boundParam{role: roleParams})
		default:
			if nextInput >= len(options.inputs) {
				return nil, interfaceErr(fmt.Sprintf("missing type annotation for argument %d of function %s, all step inputs and outputs need annotations", i, def.entrypointName))
			}
			spec := options.inputs[nextInput]
			if _, exists := def.inputIndex[spec.Name]; exists {
				return nil, interfaceErr(fmt.Sprintf("duplicate input name '%s' for function %s", spec.Name, def.entrypointName))
			}
			def.inputIndex[spec.Name] = nextInput
			def.inputs = append(def.inputs, spec)
			def.bindings = append(def.bindings, boundParam{role: roleInput, inputIndex: nextInput})
			nextInput++
		}
	}
	if nextInput < len(options.inputs) {
		return nil, interfaceErr(fmt.Sprintf("input annotation '%s' has no matching argument in function %s", options.inputs[nextInput].Name, def.entrypointName))
	}
	if options.params != nil && !hasRole(def.bindings, roleParams) {
		return nil, interfaceErr(fmt.Sprintf("parameter object '%s' declared but function %s has no Parameters argument", options.params.Name, def.entrypointName))
	}

	numOut := fnType.NumOut()
	if numOut > 0 && fnType.Out(numOut-1) == errorType {
		def.returnErr = true
		numOut--
	}
	if numOut > 0 && len(options.outputs) == 0 {
		return nil, interfaceErr(fmt.Sprintf("missing return type annotation for function %s", def.entrypointName))
	}
	if numOut != len(options.outputs) {
		return nil, interfaceErr(fmt.Sprintf("function %s returns %d value(s) but %d output annotation(s) were declared", def.entrypointName, numOut, len(options.outputs)))
	}
	seenOutputs := make(map[string]bool, len(options.outputs))
	for _, output := range options.outputs {
		if seenOutputs[output.Name] {
			return nil, interfaceErr(fmt.Sprintf("duplicate output name '%s' for function %s", output.Name, def.entrypointName))
		}
		seenOutputs[output.Name] = true
	}
	def.outputs = options.outputs

	return def, nil
}

func hasRole(bindings []boundParam, role paramRole) bool {
	for _, b := range bindings {
		if b.role == role {
			return true
		}
	}
	return false
}

func funcName(fn reflect.Value) string {
	if f := runtimeFunc(fn); f != nil {
		return f.Name()
	}
	return "anonymous"
}

func interfaceErr(msg string) error {
	return perr.BadRequestWithTypeAndMessage(ErrorCodeStepInterface, msg)
}

// Inputs returns the declared inputs in entrypoint order.
func (d *Definition) Inputs() []InputSpec {
	inputs := make([]InputSpec, len(d.inputs))
	copy(inputs, d.inputs)
	return inputs
}

// Outputs returns the declared outputs in declaration order.
func (d *Definition) Outputs() []OutputSpec {
	outputs := make([]OutputSpec, len(d.outputs))
	copy(outputs, d.outputs)
	return outputs
}

func (d *Definition) HasContext() bool {
	return d.hasContext
}

func (d *Definition) Params() *ParamSpec {
	return d.params
}

// InputType returns the declared type of an input.
func (d *Definition) InputType(name string) (typespec.Spec, bool) {
	idx, ok := d.inputIndex[name]
	if !ok {
		return typespec.Spec{}, false
	}
	return d.inputs[idx].Type, true
}

// OutputType returns the declared type of an output.
func (d *Definition) OutputType(name string) (typespec.Spec, bool) {
	for _, output := range d.outputs {
		if output.Name == name {
			return output.Type, true
		}
	}
	return typespec.Spec{}, false
}

// ValidateInput checks a raw parameter value bound to an input.
func (d *Definition) ValidateInput(name string, value any) error {
	spec, ok := d.InputType(name)
	if !ok {
		return perr.BadRequestWithMessage(fmt.Sprintf("unknown argument '%s' for function %s", name, d.entrypointName))
	}
	return typespec.ValidateValue(name, value, spec)
}
