package util

import "github.com/rs/xid"

func NewUniqueId() string {
	return xid.New().String()
}

func NewPipelineBuildId() string {
	return "build_" + NewUniqueId()
}

func NewExternalArtifactName() string {
	return "external_" + NewUniqueId()
}
