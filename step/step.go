package step

import (
	"fmt"
	"log/slog"

	"github.com/stepflow-io/stepflow/config"
	"github.com/stepflow-io/stepflow/internal/util"
	"github.com/stepflow-io/stepflow/materializer"
	"github.com/stepflow-io/stepflow/perr"
)

// Step is a named, reusable unit of computation: a typed interface plus the
// base configuration accumulated through Configure calls. Templates are
// long-lived, they are created once at declaration time and never destroyed.
type Step struct {
	definition    *Definition
	configuration *config.PartialStepConfig
	registry      *materializer.Registry
	sourceCode    string

	// ordering hints declared via After; these attach to the template
	// itself and are resolved per invocation
	upstream []*Step
}

type StepOption func(*Step)

// WithSourceCode overrides the implementation source used for the caching
// fingerprint.
func WithSourceCode(source string) StepOption {
	return func(s *Step) {
		s.sourceCode = source
	}
}

// WithRegistry overrides the materializer registry, mainly for tests.
func WithRegistry(registry *materializer.Registry) StepOption {
	return func(s *Step) {
		s.registry = registry
	}
}

// New creates a step template for the given entrypoint definition.
func New(name string, definition *Definition, opts ...StepOption) (*Step, error) {
	if name == "" {
		return nil, perr.BadRequestWithMessage("step name must not be empty")
	}
	if definition == nil {
		return nil, perr.BadRequestWithMessage(fmt.Sprintf("step '%s' requires an entrypoint definition", name))
	}

	s := &Step{
		definition:    definition,
		configuration: config.NewPartialStepConfig(name),
		registry:      materializer.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sourceCode == "" {
		s.sourceCode = funcSourceCode(definition.entrypoint)
	}

	if definition.HasContext() {
		// Using the step context provides access to external resources which
		// might influence the step execution, so caching is off unless it is
		// explicitly enabled.
		s.configuration.EnableCache = util.Ptr(false)
		slog.Debug("step context required and caching not explicitly enabled", "step", name)
	}

	return s, nil
}

func (s *Step) Name() string {
	return s.configuration.Name
}

func (s *Step) Definition() *Definition {
	return s.definition
}

func (s *Step) Registry() *materializer.Registry {
	return s.registry
}

// Configuration returns a snapshot of the template's current configuration.
func (s *Step) Configuration() *config.PartialStepConfig {
	return s.configuration.Clone()
}

// SourceCode is the implementation source text hashed into the caching
// fingerprint.
func (s *Step) SourceCode() string {
	return s.sourceCode
}

// After adds an upstream ordering hint: any invocation of this template only
// starts once the given template has finished. Hints attach to the template
// and are only valid while the template appears in a single invocation.
func (s *Step) After(other *Step) {
	for _, existing := range s.upstream {
		if existing == other {
			return
		}
	}
	s.upstream = append(s.upstream, other)
}

// UpstreamSteps returns the templates this step was ordered after.
func (s *Step) UpstreamSteps() []*Step {
	upstream := make([]*Step, len(s.upstream))
	copy(upstream, s.upstream)
	return upstream
}

// Configure merges a configuration update into the template, map fields
// merging key by key.
func (s *Step) Configure(update *config.StepConfigUpdate) error {
	return s.ApplyConfiguration(update, true)
}

// ApplyConfiguration validates an update against the step's interface and
// merges it into the template configuration. With merge false, map fields
// are replaced rather than merged.
func (s *Step) ApplyConfiguration(update *config.StepConfigUpdate, merge bool) error {
	if update.IsEmpty() {
		return nil
	}
	if err := s.validateConfiguration(update); err != nil {
		return err
	}

	s.configuration = config.Merge(s.configuration, update, merge)

	slog.Debug("updated step configuration", "step", s.Name())
	return nil
}

func (s *Step) validateConfiguration(update *config.StepConfigUpdate) error {
	if err := config.ValidateUpdate(update); err != nil {
		return err
	}
	if err := s.validateParameters(update.Parameters); err != nil {
		return err
	}
	return s.validateOutputs(update.Outputs)
}

// validateParameters checks configured parameter values against the step
// interface. Keys must name an entrypoint input, the parameter object, or a
// parameter object field.
func (s *Step) validateParameters(parameters map[string]any) error {
	if len(parameters) == 0 {
		return nil
	}

	params := s.definition.Params()
	for key, value := range parameters {
		if _, ok := s.definition.InputType(key); ok {
			if err := s.definition.ValidateInput(key, value); err != nil {
				return err
			}
			continue
		}
		if params == nil {
			return interfaceErr(fmt.Sprintf("can't set parameter '%s' for step '%s' without a declared parameter object", key, s.Name()))
		}
		if key != params.Name && !params.hasField(key) {
			return interfaceErr(fmt.Sprintf("unknown parameter '%s' for step '%s'", key, s.Name()))
		}
	}
	return nil
}

func (p *ParamSpec) hasField(name string) bool {
	for _, field := range p.Fields {
		if field.Name == name {
			return true
		}
	}
	return false
}

func (p *ParamSpec) field(name string) *ParamField {
	for i := range p.Fields {
		if p.Fields[i].Name == name {
			return &p.Fields[i]
		}
	}
	return nil
}

// validateOutputs checks that configured outputs exist and that explicit
// materializer sources resolve through the registry.
func (s *Step) validateOutputs(outputs map[string]config.OutputConfig) error {
	for outputName, output := range outputs {
		if _, ok := s.definition.OutputType(outputName); !ok {
			return interfaceErr(fmt.Sprintf("got unexpected materializers for non-existent output '%s' in step '%s'", outputName, s.Name()))
		}
		for _, source := range output.MaterializerSources {
			if _, ok := s.registry.LookupID(source); !ok {
				return interfaceErr(fmt.Sprintf("materializer source '%s' for output '%s' of step '%s' does not resolve to a registered materializer", source, outputName, s.Name()))
			}
		}
	}
	return nil
}
