// Copyright © 2019 One Concern

// Package model describes the data objects tracked by the store:
// metadata records, versions, composite references and history entries,
// together with their serialized forms.
//
// A history entry message has a fixed layout:
//
//	<DataObjectID>
//	<action tag>: <absolute path>
//
//	<single-line serialized MetadataRecord>
package model
