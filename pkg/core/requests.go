package core

import (
	"github.com/ccsi/dmflite/pkg/model"
)

// DocumentRequest describes a new version of a document
type DocumentRequest struct {
	Bytes               []byte
	Path                string
	OriginalName        string
	Description         string
	Mimetype            string
	External            string
	Confidence          string
	VersionRequirements string
	Creator             string

	// Version of the new content. Nil for the first write to a path.
	Version *model.Version

	Dependencies   []model.CompositeRef
	CheckInComment string
}

// DocumentEdit describes a metadata-only change to a document.
//
// An empty DisplayName keeps the current name, a nil Dependencies keeps the current dependencies.
// Other fields replace the current values.
type DocumentEdit struct {
	DisplayName         string
	OriginalName        string
	Description         string
	Mimetype            string
	External            string
	VersionRequirements string
	Confidence          string
	Dependencies        []model.CompositeRef

	// Major version of the edited record
	Major uint64
	// MinorBase is the current minor version: the edit is recorded as MinorBase+1
	MinorBase uint64
}

// FolderRequest describes a new folder
type FolderRequest struct {
	Path        string
	DisplayName string
	Description string
}
