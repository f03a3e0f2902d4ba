package materializer

import (
	"context"
	"testing"

	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/typespec"
	"github.com/stretchr/testify/assert"
	"github.com/zclconf/go-cty/cty"
)

type fakeMaterializer struct {
	id           string
	source       string
	artifactType string
	saves        int
}

func (m *fakeMaterializer) ID() string           { return m.id }
func (m *fakeMaterializer) Source() string       { return m.source }
func (m *fakeMaterializer) ArtifactType() string { return m.artifactType }
func (m *fakeMaterializer) Save(ctx context.Context, uri string, value any) error {
	m.saves++
	return nil
}

func newFakeMaterializer(id string) *fakeMaterializer {
	return &fakeMaterializer{id: id, source: "func save_" + id + "() {}", artifactType: "DataArtifact"}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	assert := assert.New(t)

	registry := NewRegistry()
	stringMat := newFakeMaterializer("string_materializer")
	assert.Nil(registry.Register(stringMat, typespec.Scalar(cty.String)))

	m, ok := registry.Lookup(typespec.Scalar(cty.String))
	assert.True(ok)
	assert.Equal("string_materializer", m.ID())

	m, ok = registry.LookupID("string_materializer")
	assert.True(ok)
	assert.Equal(stringMat, m)

	_, ok = registry.Lookup(typespec.Scalar(cty.Number))
	assert.False(ok)

	assert.True(registry.IsRegistered(typespec.Scalar(cty.String)))
	assert.False(registry.IsRegistered(typespec.Named("Model")))
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	assert := assert.New(t)

	registry := NewRegistry()
	assert.Nil(registry.Register(newFakeMaterializer("builtin"), typespec.Scalar(cty.String)))
	assert.Nil(registry.Register(newFakeMaterializer("override"), typespec.Scalar(cty.String)))

	m, ok := registry.Lookup(typespec.Scalar(cty.String))
	assert.True(ok)
	assert.Equal("override", m.ID())
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	assert := assert.New(t)

	registry := NewRegistry()
	assert.Nil(registry.Register(newFakeMaterializer("pickle"), typespec.Named("Model")))

	err := registry.Register(newFakeMaterializer("pickle"), typespec.Named("Dataset"))
	assert.NotNil(err)
	assert.True(perr.IsConflict(err))
}

func TestResolveExplicitSources(t *testing.T) {
	assert := assert.New(t)

	registry := NewRegistry()
	assert.Nil(registry.Register(newFakeMaterializer("custom"), typespec.Named("Model")))

	resolved, err := Resolve(registry, "train", "model", typespec.Any(), []string{"custom"})
	assert.Nil(err)
	assert.Equal([]string{"custom"}, resolved)

	_, err = Resolve(registry, "train", "model", typespec.Any(), []string{"missing"})
	if assert.NotNil(err) {
		assert.True(perr.IsType(err, ErrorCodeMaterializerNotFound))
	}
}

func TestResolveUnconstrainedTypeRequiresExplicitMaterializer(t *testing.T) {
	assert := assert.New(t)

	_, err := Resolve(NewRegistry(), "train", "model", typespec.Any(), nil)
	if assert.NotNil(err) {
		assert.True(perr.IsType(err, ErrorCodeMaterializerRequired))
	}
}

func TestResolveUnionDecomposesInDeclarationOrder(t *testing.T) {
	assert := assert.New(t)

	registry := NewRegistry()
	assert.Nil(registry.Register(newFakeMaterializer("string_materializer"), typespec.Scalar(cty.String)))
	assert.Nil(registry.Register(newFakeMaterializer("model_materializer"), typespec.Named("Model")))

	declared := typespec.Union(typespec.Named("Model"), typespec.Scalar(cty.String))
	resolved, err := Resolve(registry, "train", "model", declared, nil)
	assert.Nil(err)
	assert.Equal([]string{"model_materializer", "string_materializer"}, resolved)
}

func TestResolveNamesUnresolvableUnionMember(t *testing.T) {
	assert := assert.New(t)

	registry := NewRegistry()
	assert.Nil(registry.Register(newFakeMaterializer("string_materializer"), typespec.Scalar(cty.String)))

	declared := typespec.Union(typespec.Scalar(cty.String), typespec.Named("Dataset"))
	_, err := Resolve(registry, "train", "model", declared, nil)
	if assert.NotNil(err) {
		assert.True(perr.IsType(err, ErrorCodeMaterializerNotFound))
		assert.Contains(err.Error(), "Dataset")
	}
}

func TestSourceHashStableAndMemoized(t *testing.T) {
	assert := assert.New(t)

	registry := NewRegistry()
	assert.Nil(registry.Register(newFakeMaterializer("hash_probe"), typespec.Named("Probe")))

	first, err := registry.SourceHash("hash_probe")
	assert.Nil(err)
	second, err := registry.SourceHash("hash_probe")
	assert.Nil(err)
	assert.Equal(first, second)
	assert.Len(first, 16)

	_, err = registry.SourceHash("never_registered")
	assert.True(perr.IsNotFound(err))
}
