package core

import (
	"context"
	"path"
	"time"

	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	indexstatus "github.com/ccsi/dmflite/pkg/index/status"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func cleanPath(pth string) (string, error) {
	cleaned, err := model.CleanPath(pth)
	if err != nil {
		return "", status.ErrInvalidPath.Wrap(err)
	}
	return cleaned, nil
}

// translate maps index errors to the errors of this package
func translate(err error, format string, args ...interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, indexstatus.ErrNotFound):
		return status.ErrNotFound.WrapMessage(format, args...)
	case errors.Is(err, indexstatus.ErrMalformed):
		return status.ErrMalformed.Wrap(err)
	default:
		return err
	}
}

// tracked resolves the object currently tracked at a path, if any
func (r *Repo) tracked(pth string) (string, bool, error) {
	id, err := r.index.IDByPath(pth)
	if err != nil {
		if errors.Is(err, indexstatus.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}

// latest resolves the latest entry of the object tracked at a path
func (r *Repo) latest(pth string) (model.HistoryEntry, error) {
	id, err := r.index.IDByPath(pth)
	if err != nil {
		return model.HistoryEntry{}, translate(err, "no object tracked at %s", pth)
	}
	e, err := r.index.Latest(id)
	if err != nil {
		return model.HistoryEntry{}, translate(err, "no history for %s", pth)
	}
	return e, nil
}

func (r *Repo) latestDocument(pth string) (model.HistoryEntry, error) {
	e, err := r.latest(pth)
	if err != nil {
		return e, err
	}
	if e.Record.Folder {
		return model.HistoryEntry{}, status.ErrNotADocument.WrapMessage("%s", pth)
	}
	return e, nil
}

func (r *Repo) checkParent(pth string) error {
	parent := model.ParentPath(pth)
	if parent == "/" {
		return nil
	}
	isDir, err := r.isDir(parent)
	if err != nil {
		return err
	}
	if !isDir {
		return status.ErrParentNotFound.WrapMessage("%s", parent)
	}
	return nil
}

// CreateFolder creates and tracks a new folder, and returns its ID
func (r *Repo) CreateFolder(ctx context.Context, pth, displayName, description string) (id string, err error) {
	defer r.observe("create_folder", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	return r.createFolder(ctx, pth, displayName, description, r.user, false)
}

func (r *Repo) createFolder(ctx context.Context, pth, displayName, description, creator string, allowExisting bool) (string, error) {
	cleaned, err := cleanPath(pth)
	if err != nil {
		return "", err
	}
	if _, isTracked, err := r.tracked(cleaned); err != nil || isTracked {
		if err != nil {
			return "", err
		}
		return "", status.ErrPathExists.WrapMessage("%s is already tracked", cleaned)
	}
	if err = r.checkParent(cleaned); err != nil {
		return "", err
	}
	exists, err := r.exists(cleaned)
	if err != nil {
		return "", err
	}
	if exists && !allowExisting {
		return "", status.ErrPathExists.WrapMessage("%s exists in the working tree", cleaned)
	}

	if displayName == "" {
		displayName = model.BaseName(cleaned)
	}
	id := model.NewID()
	mkdir := func() error {
		if err := r.fs.MkdirAll(cleaned, 0755); err != nil {
			return err
		}
		// empty folders remain trackable
		return afero.WriteFile(r.fs, path.Join(cleaned, model.SentinelFile), nil, 0644)
	}
	if _, err = r.commit(ctx, id, model.ActionInitialized, cleaned, model.NewFolderRecord(displayName, description, creator), mkdir); err != nil {
		return "", err
	}
	r.l.Info("created folder", zap.String("path", cleaned), zap.String("id", id))
	return id, nil
}

// CreateVersionedDocument writes some content to a path and commits it as a new version.
//
// Without a version, the path must not be tracked yet: the document is created at version 1.0
// with a new ID. With a version, the document keeps its ID and the version must come after the
// latest one.
func (r *Repo) CreateVersionedDocument(ctx context.Context, req DocumentRequest) (ref model.CompositeRef, err error) {
	defer r.observe("create_document", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return model.CompositeRef{}, err
	}
	defer r.mu.Unlock()

	return r.createDocument(ctx, req)
}

func (r *Repo) createDocument(ctx context.Context, req DocumentRequest) (model.CompositeRef, error) {
	cleaned, err := cleanPath(req.Path)
	if err != nil {
		return model.CompositeRef{}, err
	}
	if err = r.checkParent(cleaned); err != nil {
		return model.CompositeRef{}, err
	}
	isDir, err := r.isDir(cleaned)
	if err != nil {
		return model.CompositeRef{}, err
	}
	if isDir {
		return model.CompositeRef{}, status.ErrNotADocument.WrapMessage("%s is a folder", cleaned)
	}
	id, isTracked, err := r.tracked(cleaned)
	if err != nil {
		return model.CompositeRef{}, err
	}

	var (
		version model.Version
		action  model.Action
	)
	switch {
	case req.Version == nil && isTracked:
		return model.CompositeRef{}, status.ErrPathExists.WrapMessage("%s is already tracked: a version is required", cleaned)
	case req.Version == nil:
		version = model.InitialVersion
		action = model.ActionInitialized
		id = model.NewID()
	case !isTracked:
		return model.CompositeRef{}, status.ErrNotFound.WrapMessage("no object tracked at %s", cleaned)
	default:
		latest, err := r.index.Latest(id)
		if err != nil {
			return model.CompositeRef{}, translate(err, "no history for %s", cleaned)
		}
		if latest.Record.Folder {
			return model.CompositeRef{}, status.ErrNotADocument.WrapMessage("%s", cleaned)
		}
		if !latest.Record.Version.Less(*req.Version) {
			return model.CompositeRef{}, status.ErrVersionNotIncreasing.WrapMessage("%s is not after %s", req.Version, latest.Record.Version)
		}
		version = *req.Version
		action = model.ActionNewVersion
	}

	checksum, err := r.blobs.Put(ctx, req.Bytes)
	if err != nil {
		return model.CompositeRef{}, err
	}
	r.metrics.BlobStored(len(req.Bytes))

	creator := req.Creator
	if creator == "" {
		creator = r.user
	}
	record := model.MetadataRecord{
		DisplayName:         model.BaseName(cleaned),
		OriginalName:        req.OriginalName,
		Description:         req.Description,
		Mimetype:            req.Mimetype,
		Creator:             creator,
		External:            req.External,
		VersionRequirements: req.VersionRequirements,
		Confidence:          req.Confidence,
		Checksum:            checksum,
		Dependencies:        req.Dependencies,
		Version:             version,
		CheckInComment:      req.CheckInComment,
	}
	write := func() error {
		return afero.WriteFile(r.fs, cleaned, req.Bytes, 0644)
	}
	if _, err = r.commit(ctx, id, action, cleaned, record, write); err != nil {
		return model.CompositeRef{}, err
	}
	ref := record.Ref(id)
	r.l.Info("committed document", zap.String("path", cleaned), zap.Stringer("ref", ref))
	return ref, nil
}

// renameTarget resolves the new path of a tracked object renamed to newName.
//
// The new path must be free, both in the index and in the working tree.
func (r *Repo) renameTarget(from, newName string) (string, error) {
	to, err := cleanPath(path.Join(model.ParentPath(from), newName))
	if err != nil {
		return "", err
	}
	if model.ParentPath(to) != model.ParentPath(from) {
		return "", status.ErrInvalidPath.WrapMessage("invalid name %q", newName)
	}
	_, isTracked, err := r.tracked(to)
	if err != nil {
		return "", err
	}
	exists, err := r.exists(to)
	if err != nil {
		return "", err
	}
	if isTracked || exists {
		return "", status.ErrPathExists.WrapMessage("%s", to)
	}
	return to, nil
}

// moveTo yields the working tree update renaming from into to, if they differ
func (r *Repo) moveTo(from, to string) func() error {
	if from == to {
		return nil
	}
	return func() error {
		return r.fs.Rename(from, to)
	}
}

// EditDocumentMetadata records new metadata for a document, without changing its content.
//
// The edit is recorded at version major.(minorBase+1), where major must be the latest major version.
// Changing the display name moves the document. The editing user becomes the creator of the record.
func (r *Repo) EditDocumentMetadata(ctx context.Context, pth string, edit DocumentEdit) (ref model.CompositeRef, err error) {
	defer r.observe("edit_document", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return model.CompositeRef{}, err
	}
	defer r.mu.Unlock()

	cleaned, err := cleanPath(pth)
	if err != nil {
		return model.CompositeRef{}, err
	}
	latest, err := r.latestDocument(cleaned)
	if err != nil {
		return model.CompositeRef{}, err
	}
	if edit.Major != latest.Record.Version.Major {
		return model.CompositeRef{}, status.ErrMajorVersionChanged.WrapMessage("edit of %s at major version %d", latest.Record.Version, edit.Major)
	}
	version := model.Version{Major: edit.Major, Minor: edit.MinorBase + 1}
	if !latest.Record.Version.Less(version) {
		return model.CompositeRef{}, status.ErrVersionNotIncreasing.WrapMessage("%s is not after %s", version, latest.Record.Version)
	}

	record := latest.Record
	target := cleaned
	if edit.DisplayName != "" && edit.DisplayName != record.DisplayName {
		if edit.DisplayName != model.BaseName(cleaned) {
			if target, err = r.renameTarget(cleaned, edit.DisplayName); err != nil {
				return model.CompositeRef{}, err
			}
		}
		record.DisplayName = edit.DisplayName
	}
	record.OriginalName = edit.OriginalName
	record.Description = edit.Description
	record.Mimetype = edit.Mimetype
	record.External = edit.External
	record.VersionRequirements = edit.VersionRequirements
	record.Confidence = edit.Confidence
	record.Creator = r.user
	if edit.Dependencies != nil {
		record.Dependencies = edit.Dependencies
	}
	record.Version = version
	record.CheckInComment = ""

	if _, err = r.commit(ctx, latest.ID, model.ActionMetadataChanged, target, record, r.moveTo(cleaned, target)); err != nil {
		return model.CompositeRef{}, err
	}
	return record.Ref(latest.ID), nil
}

// EditFolderMeta renames a folder and changes its description.
//
// An empty newName keeps the current name. Tracked objects below a renamed folder keep their IDs.
func (r *Repo) EditFolderMeta(ctx context.Context, pth, newName, newDescription string) (err error) {
	defer r.observe("edit_folder", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	cleaned, err := cleanPath(pth)
	if err != nil {
		return err
	}
	latest, err := r.latest(cleaned)
	if err != nil {
		return err
	}
	if !latest.Record.Folder {
		return status.ErrNotAFolder.WrapMessage("%s", cleaned)
	}

	target := cleaned
	name := latest.Record.DisplayName
	if newName != "" && newName != model.BaseName(cleaned) {
		if latest.Record.Creator == model.DefaultCreator {
			return status.ErrSystemFolder.WrapMessage("%s", cleaned)
		}
		if target, err = r.renameTarget(cleaned, newName); err != nil {
			return err
		}
	}
	if newName != "" {
		name = newName
	}

	record := model.NewFolderRecord(name, newDescription, latest.Record.Creator)
	_, err = r.commit(ctx, latest.ID, model.ActionMetadataChanged, target, record, r.moveTo(cleaned, target))
	return err
}

// IsFileContentsIdentical tells if some content is identical to the latest version at a path.
//
// An untracked path never holds identical content.
func (r *Repo) IsFileContentsIdentical(ctx context.Context, data []byte, pth string) (bool, error) {
	if err := r.rlock(); err != nil {
		return false, err
	}
	defer r.mu.RUnlock()

	cleaned, err := cleanPath(pth)
	if err != nil {
		return false, err
	}
	latest, err := r.latestDocument(cleaned)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	identical := model.Checksum(data) == latest.Record.Checksum
	if identical {
		r.metrics.DedupSkipped()
	}
	return identical, nil
}

// GetNewVersion computes the version following the latest version of a document
func (r *Repo) GetNewVersion(ctx context.Context, pth string, isMajorBump bool) (model.Version, error) {
	current, err := r.GetLatestVersion(ctx, pth)
	if err != nil {
		return model.Version{}, err
	}
	return model.NextVersion(current, isMajorBump), nil
}
