package pipeline

import (
	"sync"

	"github.com/stepflow-io/stepflow/internal/util"
	"github.com/stepflow-io/stepflow/perr"
)

const (
	ErrorCodeDuplicateInvocation = "error_duplicate_invocation"
	ErrorCodeAmbiguousOrdering   = "error_ambiguous_ordering"
	ErrorCodeCyclicGraph         = "error_cyclic_graph"
)

// Pipeline is one pipeline build: the invocation graph assembled while the
// build is active, finalized into a Deployment afterwards.
type Pipeline struct {
	name        string
	buildId     string
	enableCache *bool

	invocations map[string]*Invocation
	order       []string
}

type PipelineOption func(*Pipeline)

// WithEnableCache sets the pipeline-level cache default carried into the
// deployment.
func WithEnableCache(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.enableCache = util.Ptr(enabled)
	}
}

func New(name string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		name:        name,
		buildId:     util.NewPipelineBuildId(),
		invocations: make(map[string]*Invocation),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) BuildId() string {
	return p.buildId
}

// Invocations returns the graph nodes in registration order.
func (p *Pipeline) Invocations() []*Invocation {
	invocations := make([]*Invocation, 0, len(p.order))
	for _, id := range p.order {
		invocations = append(invocations, p.invocations[id])
	}
	return invocations
}

func (p *Pipeline) Invocation(id string) (*Invocation, bool) {
	inv, ok := p.invocations[id]
	return inv, ok
}

// At most one pipeline build may be active within a process. The builder
// entry point enforces this; graph construction itself assumes single-writer
// access.
var (
	activeMu    sync.Mutex
	activeBuild *Pipeline
)

// Build runs fn with this pipeline as the active build. The active-build
// state is cleared on every exit path, including failures, so a failed build
// never blocks the next one.
func (p *Pipeline) Build(fn func(*Builder) error) error {
	activeMu.Lock()
	if activeBuild != nil {
		active := activeBuild.name
		activeMu.Unlock()
		return perr.ConflictWithMessage("pipeline build for '" + active + "' is already active, nested builds are not supported")
	}
	activeBuild = p
	activeMu.Unlock()

	defer func() {
		activeMu.Lock()
		activeBuild = nil
		activeMu.Unlock()
	}()

	return fn(&Builder{pipeline: p})
}

// ActiveBuild returns the pipeline currently being built, if any. Steps use
// this to decide between graph registration and direct invocation.
func ActiveBuild() *Pipeline {
	activeMu.Lock()
	defer activeMu.Unlock()
	return activeBuild
}
