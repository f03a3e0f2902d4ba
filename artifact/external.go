package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stepflow-io/stepflow/config"
	"github.com/stepflow-io/stepflow/internal/util"
	"github.com/stepflow-io/stepflow/materializer"
	"github.com/stepflow-io/stepflow/perr"
	"github.com/stepflow-io/stepflow/typespec"
)

const (
	ErrorCodeArtifactStoreMismatch = "error_artifact_store_mismatch"
)

var validate = validator.New()

// ExternalArtifact references a value or an already persisted artifact that
// is not produced by any step in the graph. A value-holding reference
// transitions at most once to a persisted identifier when Resolve fires the
// upload; the transition is idempotent afterwards.
type ExternalArtifact struct {
	value          any
	id             uuid.UUID
	hasID          bool
	materializerID string
	skipTypeCheck  bool

	// set once Resolve completed, guards against repeated store calls
	verified bool
}

type ExternalOption func(*ExternalArtifact)

// WithMaterializer overrides the type-based materializer lookup for the
// upload.
func WithMaterializer(id string) ExternalOption {
	return func(a *ExternalArtifact) {
		a.materializerID = id
	}
}

// WithSkipTypeCheck disables declared-type derivation for this reference.
func WithSkipTypeCheck() ExternalOption {
	return func(a *ExternalArtifact) {
		a.skipTypeCheck = true
	}
}

// NewExternalValue creates a pending reference holding a raw value that will
// be uploaded at finalization time.
func NewExternalValue(value any, opts ...ExternalOption) (*ExternalArtifact, error) {
	if value == nil {
		return nil, perr.BadRequestWithMessage("external artifact requires either a value or an artifact id")
	}
	a := &ExternalArtifact{value: value}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewExternalID creates a reference to an artifact that was persisted by an
// earlier run and is already registered with the metadata store.
func NewExternalID(id uuid.UUID, opts ...ExternalOption) *ExternalArtifact {
	a := &ExternalArtifact{id: id, hasID: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Type derives the declared type of the referenced value, consulting the
// metadata store for fixed-id references.
func (a *ExternalArtifact) Type(ctx context.Context, rc *RunContext) (typespec.Spec, error) {
	if a.skipTypeCheck {
		return typespec.Any(), nil
	}
	if a.hasID {
		record, err := rc.Metadata.GetArtifactRecord(ctx, a.id)
		if err != nil {
			return typespec.Spec{}, err
		}
		return typespec.Named(record.DataType), nil
	}
	return typespec.Implied(a.value)
}

// Resolve runs the upload state machine and returns the persisted artifact
// identifier.
//
// Pending references determine a materializer, allocate a storage location,
// persist the value and register the record, then capture the returned id.
// Fixed-id references are verified to belong to the active artifact-store
// scope. Re-invoking on an already resolved reference is a no-op.
func (a *ExternalArtifact) Resolve(ctx context.Context, rc *RunContext) (uuid.UUID, error) {
	if a.verified {
		return a.id, nil
	}

	if a.hasID {
		record, err := rc.Metadata.GetArtifactRecord(ctx, a.id)
		if err != nil {
			return uuid.Nil, err
		}
		if record.ArtifactStoreID != rc.ArtifactStoreID {
			return uuid.Nil, perr.ConflictWithTypeAndMessage(ErrorCodeArtifactStoreMismatch,
				fmt.Sprintf("artifact %s belongs to artifact store %s, the active run uses artifact store %s", a.id, record.ArtifactStoreID, rc.ArtifactStoreID))
		}
		a.verified = true
		return a.id, nil
	}

	id, err := a.upload(ctx, rc)
	if err != nil {
		return uuid.Nil, err
	}

	// To avoid duplicate uploads, switch to just referencing the uploaded
	// artifact.
	a.id = id
	a.hasID = true
	a.verified = true
	return a.id, nil
}

// IsResolved reports whether the reference already carries a persisted
// identifier.
func (a *ExternalArtifact) IsResolved() bool {
	return a.hasID
}

func (a *ExternalArtifact) upload(ctx context.Context, rc *RunContext) (uuid.UUID, error) {
	m, err := a.resolveMaterializer(rc)
	if err != nil {
		return uuid.Nil, err
	}

	name := util.NewExternalArtifactName()
	slog.Info("uploading external artifact", "name", name, "materializer", m.ID())

	uri, err := rc.Store.AllocateLocation(rc.ArtifactStoreID, path.Join(config.ExternalArtifactPathPrefix(), name))
	if err != nil {
		return uuid.Nil, err
	}

	exists, err := rc.Store.Exists(uri)
	if err != nil {
		return uuid.Nil, err
	}
	if exists {
		return uuid.Nil, perr.Conflict("artifact uri", uri)
	}
	if err := rc.Store.MakeDirectory(uri); err != nil {
		return uuid.Nil, err
	}

	if err := m.Save(ctx, uri, a.value); err != nil {
		return uuid.Nil, err
	}

	dataType, err := typespec.Implied(a.value)
	if err != nil {
		return uuid.Nil, err
	}

	record := Record{
		Name:            name,
		Type:            m.ArtifactType(),
		URI:             uri,
		MaterializerID:  m.ID(),
		DataType:        dataType.Key(),
		UserID:          rc.UserID,
		WorkspaceID:     rc.WorkspaceID,
		ArtifactStoreID: rc.ArtifactStoreID,
	}
	if err := validate.Struct(record); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return uuid.Nil, perr.ValidationError{Type: "artifact_record", Errors: validationErrors}
		}
		return uuid.Nil, perr.Internal(err)
	}

	return rc.Metadata.CreateArtifactRecord(ctx, record)
}

func (a *ExternalArtifact) resolveMaterializer(rc *RunContext) (materializer.Materializer, error) {
	if a.materializerID != "" {
		m, ok := rc.Registry.LookupID(a.materializerID)
		if !ok {
			return nil, perr.BadRequestWithTypeAndMessage(materializer.ErrorCodeMaterializerNotFound,
				fmt.Sprintf("materializer '%s' for external artifact is not registered", a.materializerID))
		}
		return m, nil
	}

	valueType, err := typespec.Implied(a.value)
	if err != nil {
		return nil, err
	}
	m, ok := rc.Registry.Lookup(valueType)
	if !ok {
		return nil, perr.BadRequestWithTypeAndMessage(materializer.ErrorCodeMaterializerNotFound,
			fmt.Sprintf("unable to find materializer for external artifact of type %s, set an explicit materializer or register a default one for the type", valueType.String()))
	}
	return m, nil
}
