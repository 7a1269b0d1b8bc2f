package model

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MetadataRecord holds the descriptive fields committed with every version of a data object.
//
// Folders only carry DisplayName, Description and Creator.
type MetadataRecord struct {
	DisplayName         string
	OriginalName        string
	Description         string
	Mimetype            string
	Creator             string
	External            string
	VersionRequirements string
	Confidence          string
	Checksum            string
	Dependencies        []CompositeRef
	Version             Version
	CheckInComment      string

	// Folder is true for the reduced folder record
	Folder bool
}

// NewFolderRecord builds the metadata for a folder
func NewFolderRecord(displayName, description, creator string) MetadataRecord {
	return MetadataRecord{
		DisplayName: displayName,
		Description: description,
		Creator:     creator,
		Folder:      true,
	}
}

// Ref returns the composite reference for this record, given the object ID
func (r MetadataRecord) Ref(id string) CompositeRef {
	return NewRef(id, r.Version)
}

type folderRecord struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Creator     string `json:"creator"`
}

type documentRecord struct {
	DisplayName         string         `json:"display_name"`
	OriginalName        string         `json:"original_name"`
	Description         string         `json:"description"`
	Mimetype            string         `json:"mimetype"`
	Creator             string         `json:"creator"`
	External            string         `json:"external"`
	VersionRequirements string         `json:"version_requirements"`
	Confidence          string         `json:"confidence"`
	Checksum            string         `json:"checksum"`
	Dependencies        []CompositeRef `json:"dependencies"`
	MajorVersion        uint64         `json:"major_version"`
	MinorVersion        uint64         `json:"minor_version"`
	CheckInComment      string         `json:"check_in_comment,omitempty"`
}

// probe detects which kind of record was serialized
type probe struct {
	Checksum     *string `json:"checksum"`
	MajorVersion *uint64 `json:"major_version"`
	MinorVersion *uint64 `json:"minor_version"`
}

// EncodeRecord serializes a metadata record on a single line of JSON
func EncodeRecord(r MetadataRecord) ([]byte, error) {
	if r.Folder {
		return json.Marshal(folderRecord{
			DisplayName: r.DisplayName,
			Description: r.Description,
			Creator:     r.Creator,
		})
	}
	deps := r.Dependencies
	if deps == nil {
		deps = []CompositeRef{}
	}
	return json.Marshal(documentRecord{
		DisplayName:         r.DisplayName,
		OriginalName:        r.OriginalName,
		Description:         r.Description,
		Mimetype:            r.Mimetype,
		Creator:             r.Creator,
		External:            r.External,
		VersionRequirements: r.VersionRequirements,
		Confidence:          r.Confidence,
		Checksum:            r.Checksum,
		Dependencies:        deps,
		MajorVersion:        r.Version.Major,
		MinorVersion:        r.Version.Minor,
		CheckInComment:      r.CheckInComment,
	})
}

// DecodeRecord deserializes a metadata record.
//
// Records without version fields nor checksum are folder records.
func DecodeRecord(data []byte) (MetadataRecord, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return MetadataRecord{}, ErrMalformedRecord.Wrap(err)
	}

	if p.Checksum == nil && p.MajorVersion == nil && p.MinorVersion == nil {
		var f folderRecord
		if err := json.Unmarshal(data, &f); err != nil {
			return MetadataRecord{}, ErrMalformedRecord.Wrap(err)
		}
		return NewFolderRecord(f.DisplayName, f.Description, f.Creator), nil
	}

	if p.MajorVersion == nil || p.MinorVersion == nil {
		return MetadataRecord{}, ErrMalformedRecord.WrapMessage("document record without a complete version: %s", string(data))
	}

	var d documentRecord
	if err := json.Unmarshal(data, &d); err != nil {
		return MetadataRecord{}, ErrMalformedRecord.Wrap(err)
	}
	return MetadataRecord{
		DisplayName:         d.DisplayName,
		OriginalName:        d.OriginalName,
		Description:         d.Description,
		Mimetype:            d.Mimetype,
		Creator:             d.Creator,
		External:            d.External,
		VersionRequirements: d.VersionRequirements,
		Confidence:          d.Confidence,
		Checksum:            d.Checksum,
		Dependencies:        d.Dependencies,
		Version:             Version{Major: d.MajorVersion, Minor: d.MinorVersion},
		CheckInComment:      d.CheckInComment,
	}, nil
}
