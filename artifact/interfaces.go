package artifact

import (
	"context"

	"github.com/google/uuid"
	"github.com/stepflow-io/stepflow/materializer"
)

// Store is the byte-level artifact store. The core only touches it during
// external artifact upload.
type Store interface {
	AllocateLocation(scope uuid.UUID, name string) (string, error)
	Exists(uri string) (bool, error)
	MakeDirectory(uri string) error
}

// Record is the metadata registered for a persisted artifact.
type Record struct {
	Name            string    `json:"name" validate:"required"`
	Type            string    `json:"type" validate:"required"`
	URI             string    `json:"uri" validate:"required"`
	MaterializerID  string    `json:"materializer" validate:"required"`
	DataType        string    `json:"data_type" validate:"required"`
	UserID          uuid.UUID `json:"user" validate:"required"`
	WorkspaceID     uuid.UUID `json:"workspace" validate:"required"`
	ArtifactStoreID uuid.UUID `json:"artifact_store_id" validate:"required"`
}

// MetadataStore is the service-store client used to register uploaded
// artifacts and to look up referenced ones.
type MetadataStore interface {
	CreateArtifactRecord(ctx context.Context, record Record) (uuid.UUID, error)
	GetArtifactRecord(ctx context.Context, id uuid.UUID) (*Record, error)
}

// RunContext carries the active user, workspace and artifact-store scope
// plus the collaborator handles needed to resolve external artifacts.
type RunContext struct {
	UserID          uuid.UUID
	WorkspaceID     uuid.UUID
	ArtifactStoreID uuid.UUID

	Store    Store
	Metadata MetadataStore
	Registry *materializer.Registry
}
