package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stepflow-io/stepflow/artifact"
	"github.com/stepflow-io/stepflow/config"
	"github.com/stepflow-io/stepflow/perr"
)

// InvocationSpec is the finalized form of one graph node: everything a
// scheduler needs to compute a topological order and dispatch the step.
type InvocationSpec struct {
	ID                  string                            `json:"id"`
	StepName            string                            `json:"step_name"`
	Config              *config.StepConfig                `json:"config"`
	Upstream            []string                          `json:"upstream,omitempty"`
	InputArtifacts      map[string]*artifact.StepArtifact `json:"input_artifacts,omitempty"`
	ExternalArtifactIds map[string]uuid.UUID              `json:"external_artifact_ids,omitempty"`
}

// Deployment is the finalized invocation graph handed to the orchestrator.
// Immutable once produced; safe for concurrent reads.
type Deployment struct {
	PipelineName string            `json:"pipeline_name"`
	BuildId      string            `json:"build_id"`
	EnableCache  *bool             `json:"enable_cache,omitempty"`
	Invocations  []*InvocationSpec `json:"invocations"`
}

// Orchestrator executes a finalized deployment. Implementations live
// outside this core.
type Orchestrator interface {
	Run(ctx context.Context, deployment *Deployment) error
}

// Finalize finalizes every invocation in registration order and assembles
// the deployment. Upstream sets are resolved and checked for cycles before
// any invocation is finalized, so no external artifact gets uploaded for a
// graph that can never run. Any failure aborts the whole build; the caller
// must discard the partially finalized graph.
func (p *Pipeline) Finalize(ctx context.Context, rc *artifact.RunContext) (*Deployment, error) {
	upstream := make(map[string][]string, len(p.order))
	for _, id := range p.order {
		ids, err := p.invocations[id].UpstreamSteps()
		if err != nil {
			return nil, err
		}
		upstream[id] = ids
	}
	if err := p.validateAcyclic(upstream); err != nil {
		return nil, err
	}

	deployment := &Deployment{
		PipelineName: p.name,
		BuildId:      p.buildId,
		EnableCache:  p.enableCache,
		Invocations:  make([]*InvocationSpec, 0, len(p.order)),
	}

	for _, id := range p.order {
		invocation := p.invocations[id]

		cfg, err := invocation.Finalize(ctx, rc)
		if err != nil {
			return nil, err
		}

		deployment.Invocations = append(deployment.Invocations, &InvocationSpec{
			ID:                  invocation.ID,
			StepName:            invocation.Step.Name(),
			Config:              cfg,
			Upstream:            upstream[id],
			InputArtifacts:      invocation.InputArtifacts,
			ExternalArtifactIds: cfg.ExternalInputArtifacts,
		})
	}

	return deployment, nil
}

const (
	nodeUnvisited = iota
	nodeInProgress
	nodeDone
)

// validateAcyclic rejects graphs whose resolved upstream sets form a cycle.
// Explicit upstream ids can only name already registered invocations, but
// template ordering hints resolve against the finished graph and can close
// a loop with them.
func (p *Pipeline) validateAcyclic(upstream map[string][]string) error {
	state := make(map[string]int, len(upstream))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case nodeDone:
			return nil
		case nodeInProgress:
			return perr.ConflictWithTypeAndMessage(ErrorCodeCyclicGraph,
				fmt.Sprintf("invocation '%s' in pipeline '%s' is part of an upstream cycle", id, p.name))
		}
		state[id] = nodeInProgress
		for _, upstreamId := range upstream[id] {
			if err := visit(upstreamId); err != nil {
				return err
			}
		}
		state[id] = nodeDone
		return nil
	}

	for _, id := range p.order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// Deploy finalizes the graph and hands it to the orchestrator.
func (p *Pipeline) Deploy(ctx context.Context, rc *artifact.RunContext, orchestrator Orchestrator) error {
	deployment, err := p.Finalize(ctx, rc)
	if err != nil {
		return err
	}
	return orchestrator.Run(ctx, deployment)
}
