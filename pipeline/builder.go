package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/stepflow-io/stepflow/artifact"
	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/step"
)

// Builder is the handle threaded through graph-building calls while a
// pipeline build is active.
type Builder struct {
	pipeline *Pipeline
}

func (b *Builder) Pipeline() *Pipeline {
	return b.pipeline
}

// Args are the values bound to a step call: step artifacts, external
// artifacts, or raw parameter values.
type Args map[string]any

// Outputs maps output names to the artifact handles a call produced.
type Outputs map[string]*artifact.StepArtifact

// Single returns the only output of a single-output step.
func (o Outputs) Single() *artifact.StepArtifact {
	if len(o) != 1 {
		return nil
	}
	for _, out := range o {
		return out
	}
	return nil
}

type callOptions struct {
	customId string
	after    []string
}

type CallOption func(*callOptions)

// WithId sets a custom invocation id. Custom ids must be unique, no suffix
// is appended on collision.
func WithId(id string) CallOption {
	return func(o *callOptions) {
		o.customId = id
	}
}

// After adds explicit upstream invocation ids for this call.
func After(ids ...string) CallOption {
	return func(o *callOptions) {
		o.after = append(o.after, ids...)
	}
}

// Call invokes a step template without holding a Builder. While a build is
// active the call registers a graph invocation and returns artifact handles;
// otherwise the entrypoint runs directly and its raw outputs are returned in
// values. Mirrors the two behaviors of calling a step in and outside a
// pipeline definition.
func Call(s *step.Step, args Args, opts ...CallOption) (outputs Outputs, values map[string]any, err error) {
	if p := ActiveBuild(); p != nil {
		outputs, err = (&Builder{pipeline: p}).Call(s, args, opts...)
		return outputs, nil, err
	}

	raw := make(map[string]any, len(args))
	for key, value := range args {
		raw[key] = value
	}
	values, err = s.CallEntrypoint(raw)
	return nil, values, err
}

// Call registers an invocation of the given step template and returns one
// artifact handle per declared output for downstream wiring.
func (b *Builder) Call(s *step.Step, args Args, opts ...CallOption) (Outputs, error) {
	options := &callOptions{}
	for _, opt := range opts {
		opt(options)
	}

	inputArtifacts := map[string]*artifact.StepArtifact{}
	externalArtifacts := map[string]*artifact.ExternalArtifact{}
	parameters := map[string]any{}

	configured := s.Configuration().Parameters
	for key, value := range args {
		if _, ok := s.Definition().InputType(key); !ok {
			return nil, perr.BadRequestWithMessage(fmt.Sprintf("unknown argument '%s' when calling step '%s'", key, s.Name()))
		}

		switch v := value.(type) {
		case *artifact.StepArtifact:
			inputArtifacts[key] = v
			if _, ok := configured[key]; ok {
				slog.Warn("got duplicate value for step input, using value provided as artifact", "step", s.Name(), "input", key)
			}
		case *artifact.ExternalArtifact:
			externalArtifacts[key] = v
			if !v.IsResolved() {
				slog.Warn("using an external artifact value as step input invalidates caching for the step and all downstream steps", "step", s.Name(), "input", key)
			}
		default:
			if err := s.Definition().ValidateInput(key, value); err != nil {
				return nil, err
			}
			parameters[key] = value
		}
	}

	upstream := make([]string, 0, len(inputArtifacts)+len(options.after))
	for _, in := range inputArtifacts {
		upstream = append(upstream, in.InvocationID)
	}
	upstream = append(upstream, options.after...)

	invocationId, err := b.AddInvocation(s, inputArtifacts, externalArtifacts, parameters,
		upstream, options.customId, options.customId == "")
	if err != nil {
		return nil, err
	}

	outputs := make(Outputs, len(s.Definition().Outputs()))
	for _, output := range s.Definition().Outputs() {
		outputs[output.Name] = artifact.NewStepArtifact(invocationId, output.Name, output.Type)
	}
	return outputs, nil
}

// AddInvocation registers a graph node. With an empty customId the base
// identifier derives from the template name; on collision a numeric suffix
// is appended when allowSuffix is set, otherwise the registration fails.
func (b *Builder) AddInvocation(
	s *step.Step,
	inputArtifacts map[string]*artifact.StepArtifact,
	externalArtifacts map[string]*artifact.ExternalArtifact,
	parameters map[string]any,
	explicitUpstream []string,
	customId string,
	allowSuffix bool,
) (string, error) {
	p := b.pipeline

	invocationId := customId
	if invocationId == "" {
		invocationId = s.Name()
	}
	if _, exists := p.invocations[invocationId]; exists {
		if !allowSuffix {
			return "", perr.ConflictWithTypeAndMessage(ErrorCodeDuplicateInvocation,
				fmt.Sprintf("invocation id '%s' already exists in pipeline '%s'", invocationId, p.name))
		}
		base := invocationId
		for suffix := 2; ; suffix++ {
			invocationId = fmt.Sprintf("%s_%d", base, suffix)
			if _, exists := p.invocations[invocationId]; !exists {
				break
			}
		}
	}

	for _, upstreamId := range explicitUpstream {
		if _, ok := p.invocations[upstreamId]; !ok {
			return "", perr.NotFoundWithMessage(
				fmt.Sprintf("upstream invocation '%s' for step '%s' does not exist in pipeline '%s'", upstreamId, s.Name(), p.name))
		}
	}

	invocation := &Invocation{
		ID:                 invocationId,
		Step:               s,
		InputArtifacts:     inputArtifacts,
		ExternalArtifacts:  externalArtifacts,
		Parameters:         parameters,
		invocationUpstream: make(map[string]bool, len(explicitUpstream)),
		pipeline:           p,
	}
	for _, upstreamId := range explicitUpstream {
		invocation.invocationUpstream[upstreamId] = true
	}

	p.invocations[invocationId] = invocation
	p.order = append(p.order, invocationId)

	slog.Debug("registered invocation", "pipeline", p.name, "invocation", invocationId, "step", s.Name())
	return invocationId, nil
}
