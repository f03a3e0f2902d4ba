package artifact

import (
	"github.com/stepflow-io/stepflow/typespec"
)

// StepArtifact is an in-graph reference to the declared output of another
// invocation.
type StepArtifact struct {
	InvocationID string        `json:"invocation_id"`
	OutputName   string        `json:"output_name"`
	Declared     typespec.Spec `json:"-"`
}

func NewStepArtifact(invocationID, outputName string, declared typespec.Spec) *StepArtifact {
	return &StepArtifact{
		InvocationID: invocationID,
		OutputName:   outputName,
		Declared:     declared,
	}
}

func (a *StepArtifact) Type() typespec.Spec {
	return a.Declared
}
