package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/stepflow-io/stepflow/artifact"
	"github.com/stepflow-io/stepflow/config"
	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/step"
)

// Invocation is one use of a step template as a node in the graph.
type Invocation struct {
	ID                string
	Step              *step.Step
	InputArtifacts    map[string]*artifact.StepArtifact
	ExternalArtifacts map[string]*artifact.ExternalArtifact
	Parameters        map[string]any

	// upstream ids passed explicitly or derived from input artifacts;
	// template-level ordering hints are resolved on demand
	invocationUpstream map[string]bool

	pipeline *Pipeline
	config   *config.StepConfig
}

// Config returns the finalized configuration, nil before finalization.
func (inv *Invocation) Config() *config.StepConfig {
	return inv.config
}

// UpstreamSteps resolves the full upstream invocation id set: input artifact
// owners, explicit upstream ids, and the template's ordering hints.
func (inv *Invocation) UpstreamSteps() ([]string, error) {
	upstream := make(map[string]bool, len(inv.invocationUpstream))
	for id := range inv.invocationUpstream {
		upstream[id] = true
	}

	hinted, err := inv.templateUpstream()
	if err != nil {
		return nil, err
	}
	for id := range hinted {
		upstream[id] = true
	}

	ids := make([]string, 0, len(upstream))
	for id := range upstream {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// templateUpstream resolves ordering hints attached to the template. Hints
// are only meaningful while the template appears in a single invocation;
// the conflict is detectable only once all invocations are known, so it is
// checked here rather than at declaration time.
func (inv *Invocation) templateUpstream() (map[string]bool, error) {
	hints := inv.Step.UpstreamSteps()
	if len(hints) == 0 {
		return nil, nil
	}

	if len(inv.pipeline.invocationsOf(inv.Step)) > 1 {
		return nil, perr.ConflictWithTypeAndMessage(ErrorCodeAmbiguousOrdering,
			fmt.Sprintf("step '%s' declares upstream ordering but is used in multiple invocations, the ordering is ambiguous", inv.Step.Name()))
	}

	upstream := make(map[string]bool, len(hints))
	for _, hintedStep := range hints {
		hintedInvocations := inv.pipeline.invocationsOf(hintedStep)
		switch len(hintedInvocations) {
		case 0:
			// the hinted template was never invoked in this graph
		case 1:
			upstream[hintedInvocations[0]] = true
		default:
			return nil, perr.ConflictWithTypeAndMessage(ErrorCodeAmbiguousOrdering,
				fmt.Sprintf("step '%s' is ordered after step '%s' which is used in multiple invocations, the ordering is ambiguous", inv.Step.Name(), hintedStep.Name()))
		}
	}
	return upstream, nil
}

// Finalize produces the invocation's immutable configuration: upstream
// resolution is re-validated, pending external artifacts are uploaded, and
// the template finalizes materializers, parameters and the caching
// fingerprint.
func (inv *Invocation) Finalize(ctx context.Context, rc *artifact.RunContext) (*config.StepConfig, error) {
	if inv.config != nil {
		return inv.config, nil
	}

	if _, err := inv.UpstreamSteps(); err != nil {
		return nil, err
	}

	externalIds := make(map[string]uuid.UUID, len(inv.ExternalArtifacts))
	for key, external := range inv.ExternalArtifacts {
		id, err := external.Resolve(ctx, rc)
		if err != nil {
			return nil, err
		}
		externalIds[key] = id
	}

	cfg, err := inv.Step.FinalizeConfiguration(inv.InputArtifacts, externalIds, inv.Parameters)
	if err != nil {
		return nil, err
	}

	inv.config = cfg
	return cfg, nil
}

func (p *Pipeline) invocationsOf(s *step.Step) []string {
	var ids []string
	for _, id := range p.order {
		if p.invocations[id].Step == s {
			ids = append(ids, id)
		}
	}
	return ids
}
