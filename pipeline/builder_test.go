package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stepflow-io/stepflow/artifact"
	"github.com/stepflow-io/stepflow/materializer"
	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/step"
	"github.com/stepflow-io/stepflow/typespec"
	"github.com/stretchr/testify/assert"
	"github.com/zclconf/go-cty/cty"
)

type fakeMaterializer struct {
	id string
}

func (m *fakeMaterializer) ID() string           { return m.id }
func (m *fakeMaterializer) Source() string       { return "func save() {}" }
func (m *fakeMaterializer) ArtifactType() string { return "DataArtifact" }
func (m *fakeMaterializer) Save(ctx context.Context, uri string, value any) error {
	return nil
}

func testRegistry(t *testing.T) *materializer.Registry {
	t.Helper()
	registry := materializer.NewRegistry()
	if err := registry.Register(&fakeMaterializer{id: "string_materializer"}, typespec.Scalar(cty.String)); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(&fakeMaterializer{id: "number_materializer"}, typespec.Scalar(cty.Number)); err != nil {
		t.Fatal(err)
	}
	return registry
}

func loadEntrypoint(source string) string { return source }

func trainEntrypoint(data string, lr float64) string { return "model" }

func loadStep(t *testing.T, registry *materializer.Registry) *step.Step {
	t.Helper()
	def, err := step.NewDefinition(loadEntrypoint,
		step.Input("source", typespec.Scalar(cty.String)),
		step.Returns(typespec.Scalar(cty.String)))
	if err != nil {
		t.Fatal(err)
	}
	s, err := step.New("load", def, step.WithRegistry(registry))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func trainStep(t *testing.T, registry *materializer.Registry) *step.Step {
	t.Helper()
	def, err := step.NewDefinition(trainEntrypoint,
		step.Input("data", typespec.Scalar(cty.String)),
		step.Input("lr", typespec.Scalar(cty.Number)),
		step.Returns(typespec.Scalar(cty.String)))
	if err != nil {
		t.Fatal(err)
	}
	s, err := step.New("train", def, step.WithRegistry(registry))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testRunContext(registry *materializer.Registry) *artifact.RunContext {
	return &artifact.RunContext{Registry: registry}
}

func TestBuildWiresUpstreamThroughArtifacts(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)
	train := trainStep(t, registry)

	p := New("training_pipeline")
	err := p.Build(func(b *Builder) error {
		loaded, err := b.Call(load, Args{"source": "s3://data"})
		if err != nil {
			return err
		}
		_, err = b.Call(train, Args{"data": loaded.Single(), "lr": 0.01})
		return err
	})
	assert.Nil(err)

	deployment, err := p.Finalize(context.Background(), testRunContext(registry))
	assert.Nil(err)
	assert.Equal("training_pipeline", deployment.PipelineName)
	assert.NotEmpty(deployment.BuildId)

	if assert.Len(deployment.Invocations, 2) {
		assert.Equal("load", deployment.Invocations[0].ID)
		assert.Empty(deployment.Invocations[0].Upstream)

		trained := deployment.Invocations[1]
		assert.Equal("train", trained.ID)
		assert.Equal([]string{"load"}, trained.Upstream)
		assert.Equal(0.01, trained.Config.Parameters["lr"])
		assert.NotContains(trained.Config.Parameters, "data")
		if assert.Contains(trained.InputArtifacts, "data") {
			assert.Equal("load", trained.InputArtifacts["data"].InvocationID)
			assert.Equal("output", trained.InputArtifacts["data"].OutputName)
		}
	}
}

func TestBuildSuffixesDuplicateInvocationIds(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("fan_out")
	err := p.Build(func(b *Builder) error {
		for _, source := range []string{"a", "b", "c"} {
			if _, err := b.Call(load, Args{"source": source}); err != nil {
				return err
			}
		}
		return nil
	})
	assert.Nil(err)

	invocations := p.Invocations()
	if assert.Len(invocations, 3) {
		assert.Equal("load", invocations[0].ID)
		assert.Equal("load_2", invocations[1].ID)
		assert.Equal("load_3", invocations[2].ID)
	}
}

func TestBuildRejectsDuplicateCustomId(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("custom_ids")
	err := p.Build(func(b *Builder) error {
		if _, err := b.Call(load, Args{"source": "a"}, WithId("loader")); err != nil {
			return err
		}
		_, err := b.Call(load, Args{"source": "b"}, WithId("loader"))
		return err
	})
	assert.True(perr.IsType(err, ErrorCodeDuplicateInvocation))
}

func TestBuildRejectsUnknownArgument(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("bad_args")
	err := p.Build(func(b *Builder) error {
		_, err := b.Call(load, Args{"sauce": "s3://data"})
		return err
	})
	if assert.NotNil(err) {
		assert.Contains(err.Error(), "unknown argument 'sauce'")
	}
}

func TestBuildRejectsMistypedArgument(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("bad_args")
	err := p.Build(func(b *Builder) error {
		_, err := b.Call(load, Args{"source": 42})
		return err
	})
	assert.NotNil(err)
}

func TestBuildExplicitUpstreamMustExist(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("dangling_upstream")
	err := p.Build(func(b *Builder) error {
		_, err := b.Call(load, Args{"source": "a"}, After("never_registered"))
		return err
	})
	assert.True(perr.IsNotFound(err))
}

func TestBuildExplicitUpstreamOrdering(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("explicit_order")
	err := p.Build(func(b *Builder) error {
		if _, err := b.Call(load, Args{"source": "a"}, WithId("first")); err != nil {
			return err
		}
		_, err := b.Call(load, Args{"source": "b"}, WithId("second"), After("first"))
		return err
	})
	assert.Nil(err)

	second, ok := p.Invocation("second")
	assert.True(ok)
	upstream, err := second.UpstreamSteps()
	assert.Nil(err)
	assert.Equal([]string{"first"}, upstream)
}

func TestMissingInputDetectedAtFinalization(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	train := trainStep(t, registry)

	p := New("incomplete")
	err := p.Build(func(b *Builder) error {
		_, err := b.Call(train, Args{"lr": 0.01})
		return err
	})
	assert.Nil(err)

	_, err = p.Finalize(context.Background(), testRunContext(registry))
	assert.True(perr.IsType(err, step.ErrorCodeMissingInput))
}

func TestTemplateOrderingHints(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)
	train := trainStep(t, registry)
	train.After(load)

	p := New("hinted")
	err := p.Build(func(b *Builder) error {
		if _, err := b.Call(load, Args{"source": "a"}); err != nil {
			return err
		}
		_, err := b.Call(train, Args{"data": "inline", "lr": 0.01})
		return err
	})
	assert.Nil(err)

	trained, ok := p.Invocation("train")
	assert.True(ok)
	upstream, err := trained.UpstreamSteps()
	assert.Nil(err)
	assert.Equal([]string{"load"}, upstream)
}

func TestTemplateOrderingHintIgnoredWhenNotInvoked(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)
	train := trainStep(t, registry)
	train.After(load)

	p := New("hint_unused")
	err := p.Build(func(b *Builder) error {
		_, err := b.Call(train, Args{"data": "inline", "lr": 0.01})
		return err
	})
	assert.Nil(err)

	trained, ok := p.Invocation("train")
	assert.True(ok)
	upstream, err := trained.UpstreamSteps()
	assert.Nil(err)
	assert.Empty(upstream)
}

func TestTemplateOrderingAmbiguousWithMultipleInvocations(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)
	train := trainStep(t, registry)
	train.After(load)

	p := New("ambiguous_self")
	err := p.Build(func(b *Builder) error {
		if _, err := b.Call(load, Args{"source": "a"}); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if _, err := b.Call(train, Args{"data": "inline", "lr": 0.01}); err != nil {
				return err
			}
		}
		return nil
	})
	assert.Nil(err)

	// the conflict surfaces once the graph is finalized, not at call time
	_, err = p.Finalize(context.Background(), testRunContext(registry))
	assert.True(perr.IsType(err, ErrorCodeAmbiguousOrdering))
}

func TestTemplateOrderingAmbiguousHintedStep(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)
	train := trainStep(t, registry)
	train.After(load)

	p := New("ambiguous_hint")
	err := p.Build(func(b *Builder) error {
		for _, source := range []string{"a", "b"} {
			if _, err := b.Call(load, Args{"source": source}); err != nil {
				return err
			}
		}
		_, err := b.Call(train, Args{"data": "inline", "lr": 0.01})
		return err
	})
	assert.Nil(err)

	trained, _ := p.Invocation("train")
	_, err = trained.UpstreamSteps()
	assert.True(perr.IsType(err, ErrorCodeAmbiguousOrdering))
}

func TestFinalizeRejectsHintClosedCycle(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)
	train := trainStep(t, registry)
	train.After(load)

	// the template hint adds train -> load while the explicit upstream adds
	// load -> train; each edge is valid on its own
	p := New("cyclic")
	err := p.Build(func(b *Builder) error {
		if _, err := b.Call(train, Args{"data": "inline", "lr": 0.01}); err != nil {
			return err
		}
		_, err := b.Call(load, Args{"source": "a"}, After("train"))
		return err
	})
	assert.Nil(err)

	_, err = p.Finalize(context.Background(), testRunContext(registry))
	assert.True(perr.IsType(err, ErrorCodeCyclicGraph))
}

func TestFinalizeRejectsSelfOrderedTemplate(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)
	load.After(load)

	p := New("self_cycle")
	err := p.Build(func(b *Builder) error {
		_, err := b.Call(load, Args{"source": "a"})
		return err
	})
	assert.Nil(err)

	_, err = p.Finalize(context.Background(), testRunContext(registry))
	assert.True(perr.IsType(err, ErrorCodeCyclicGraph))
}

func TestNestedBuildsRejected(t *testing.T) {
	assert := assert.New(t)

	outer := New("outer")
	inner := New("inner")

	err := outer.Build(func(b *Builder) error {
		return inner.Build(func(b *Builder) error { return nil })
	})
	assert.True(perr.IsConflict(err))

	// the failed build does not leave an active build behind
	assert.Nil(ActiveBuild())
	assert.Nil(inner.Build(func(b *Builder) error { return nil }))
}

func TestCallRegistersOnActiveBuild(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("dispatched")
	err := p.Build(func(b *Builder) error {
		outputs, values, err := Call(load, Args{"source": "a"})
		if err != nil {
			return err
		}
		assert.Nil(values)
		assert.NotNil(outputs.Single())
		return nil
	})
	assert.Nil(err)
	assert.Len(p.Invocations(), 1)
}

func TestCallRunsEntrypointWithoutActiveBuild(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	outputs, values, err := Call(load, Args{"source": "s3://data"})
	assert.Nil(err)
	assert.Nil(outputs)
	assert.Equal("s3://data", values["output"])
}

func TestFinalizeIsIdempotentPerInvocation(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("stable")
	err := p.Build(func(b *Builder) error {
		_, err := b.Call(load, Args{"source": "a"})
		return err
	})
	assert.Nil(err)

	rc := testRunContext(registry)
	first, err := p.Finalize(context.Background(), rc)
	assert.Nil(err)
	second, err := p.Finalize(context.Background(), rc)
	assert.Nil(err)
	assert.Same(first.Invocations[0].Config, second.Invocations[0].Config)
}

type recordingOrchestrator struct {
	deployments []*Deployment
}

func (o *recordingOrchestrator) Run(ctx context.Context, deployment *Deployment) error {
	o.deployments = append(o.deployments, deployment)
	return nil
}

func TestDeployHandsFinalizedGraphToOrchestrator(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	load := loadStep(t, registry)

	p := New("deployable", WithEnableCache(false))
	err := p.Build(func(b *Builder) error {
		_, err := b.Call(load, Args{"source": "a"})
		return err
	})
	assert.Nil(err)

	orchestrator := &recordingOrchestrator{}
	assert.Nil(p.Deploy(context.Background(), testRunContext(registry), orchestrator))

	if assert.Len(orchestrator.deployments, 1) {
		deployment := orchestrator.deployments[0]
		assert.Equal("deployable", deployment.PipelineName)
		if assert.NotNil(deployment.EnableCache) {
			assert.False(*deployment.EnableCache)
		}
	}
}

type fakeStore struct {
	allocations int
}

func (s *fakeStore) AllocateLocation(scope uuid.UUID, name string) (string, error) {
	s.allocations++
	return "store://" + name, nil
}

func (s *fakeStore) Exists(uri string) (bool, error) { return false, nil }
func (s *fakeStore) MakeDirectory(uri string) error  { return nil }

type fakeMetadataStore struct {
	created int
}

func (m *fakeMetadataStore) CreateArtifactRecord(ctx context.Context, record artifact.Record) (uuid.UUID, error) {
	m.created++
	return uuid.New(), nil
}

func (m *fakeMetadataStore) GetArtifactRecord(ctx context.Context, id uuid.UUID) (*artifact.Record, error) {
	return nil, perr.NotFound("artifact", id.String())
}

func TestExternalArtifactUploadedOnceDuringFinalization(t *testing.T) {
	assert := assert.New(t)

	registry := testRegistry(t)
	train := trainStep(t, registry)

	external, err := artifact.NewExternalValue("s3://preprocessed")
	assert.Nil(err)

	p := New("with_external")
	err = p.Build(func(b *Builder) error {
		_, err := b.Call(train, Args{"data": external, "lr": 0.01})
		return err
	})
	assert.Nil(err)

	store := &fakeStore{}
	metadata := &fakeMetadataStore{}
	rc := &artifact.RunContext{
		UserID:          uuid.New(),
		WorkspaceID:     uuid.New(),
		ArtifactStoreID: uuid.New(),
		Store:           store,
		Metadata:        metadata,
		Registry:        registry,
	}

	deployment, err := p.Finalize(context.Background(), rc)
	assert.Nil(err)
	assert.Equal(1, store.allocations)
	assert.Equal(1, metadata.created)

	spec := deployment.Invocations[0]
	assert.Contains(spec.ExternalArtifactIds, "data")
	assert.NotEqual(uuid.Nil, spec.ExternalArtifactIds["data"])
}
