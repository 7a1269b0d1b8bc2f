package core

import (
	"context"
	"strings"
	"time"

	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"
)

// GetDMFID resolves the composite reference of the latest version of the object at a path.
//
// Folders carry no version: their reference has version 0.0.
func (r *Repo) GetDMFID(ctx context.Context, pth string) (model.CompositeRef, error) {
	if err := r.rlock(); err != nil {
		return model.CompositeRef{}, err
	}
	defer r.mu.RUnlock()

	cleaned, err := cleanPath(pth)
	if err != nil {
		return model.CompositeRef{}, err
	}
	latest, err := r.latest(cleaned)
	if err != nil {
		return model.CompositeRef{}, err
	}
	return latest.Ref(), nil
}

// GetLatestMeta returns the latest metadata recorded for the object at a path
func (r *Repo) GetLatestMeta(ctx context.Context, pth string) (model.MetadataRecord, error) {
	if err := r.rlock(); err != nil {
		return model.MetadataRecord{}, err
	}
	defer r.mu.RUnlock()

	cleaned, err := cleanPath(pth)
	if err != nil {
		return model.MetadataRecord{}, err
	}
	latest, err := r.latest(cleaned)
	if err != nil {
		return model.MetadataRecord{}, err
	}
	return latest.Record, nil
}

// GetLatestVersion returns the latest version of the document at a path
func (r *Repo) GetLatestVersion(ctx context.Context, pth string) (model.Version, error) {
	if err := r.rlock(); err != nil {
		return model.Version{}, err
	}
	defer r.mu.RUnlock()

	cleaned, err := cleanPath(pth)
	if err != nil {
		return model.Version{}, err
	}
	latest, err := r.latestDocument(cleaned)
	if err != nil {
		return model.Version{}, err
	}
	return latest.Record.Version, nil
}

// entryByRef finds the entry recorded for an exact version of an object
func (r *Repo) entryByRef(id string, v model.Version) (model.HistoryEntry, error) {
	e, err := r.index.ByVersion(id, v)
	if err != nil {
		return model.HistoryEntry{}, translate(err, "no version %s for object %s", v, id)
	}
	if e.ID != id || e.Record.Folder || e.Record.Version != v {
		return model.HistoryEntry{}, status.ErrMalformed.WrapMessage("indexed entry %s does not match %s", e.Token, model.NewRef(id, v))
	}
	return e, nil
}

// GetMetaByRef returns the metadata recorded for a version of an object
func (r *Repo) GetMetaByRef(ctx context.Context, id string, v model.Version) (model.MetadataRecord, error) {
	if err := r.rlock(); err != nil {
		return model.MetadataRecord{}, err
	}
	defer r.mu.RUnlock()

	e, err := r.entryByRef(id, v)
	if err != nil {
		return model.MetadataRecord{}, err
	}
	return e.Record, nil
}

// GetMetaByPath returns the metadata recorded for a version of the object at a path
func (r *Repo) GetMetaByPath(ctx context.Context, pth string, v model.Version) (model.MetadataRecord, error) {
	if err := r.rlock(); err != nil {
		return model.MetadataRecord{}, err
	}
	defer r.mu.RUnlock()

	e, err := r.entryByPath(pth, v)
	if err != nil {
		return model.MetadataRecord{}, err
	}
	return e.Record, nil
}

func (r *Repo) entryByPath(pth string, v model.Version) (model.HistoryEntry, error) {
	cleaned, err := cleanPath(pth)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	id, err := r.index.IDByPath(cleaned)
	if err != nil {
		return model.HistoryEntry{}, translate(err, "no object tracked at %s", cleaned)
	}
	return r.entryByRef(id, v)
}

// GetVersionList lists every distinct version of the document at a path, most recent first
func (r *Repo) GetVersionList(ctx context.Context, pth string) ([]string, error) {
	if err := r.rlock(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	history, err := r.history(pth)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(history))
	seen := make(map[model.Version]struct{}, len(history))
	for _, e := range history {
		if e.Record.Folder {
			continue
		}
		if _, ok := seen[e.Record.Version]; ok {
			continue
		}
		seen[e.Record.Version] = struct{}{}
		versions = append(versions, e.Record.Version.String())
	}
	return versions, nil
}

// GetPathByRef returns the path named by the entry recorded for a version of an object
func (r *Repo) GetPathByRef(ctx context.Context, id string, v model.Version) (string, error) {
	if err := r.rlock(); err != nil {
		return "", err
	}
	defer r.mu.RUnlock()

	e, err := r.entryByRef(id, v)
	if err != nil {
		return "", err
	}
	return e.Path, nil
}

// GetPathByChecksum returns the path named by the most recent entry carrying some content checksum
func (r *Repo) GetPathByChecksum(ctx context.Context, checksum string) (string, error) {
	if err := r.rlock(); err != nil {
		return "", err
	}
	defer r.mu.RUnlock()

	e, err := r.index.ByChecksum(checksum)
	if err != nil {
		return "", translate(err, "no content with checksum %s", checksum)
	}
	return e.Path, nil
}

// GetLatestPath returns the current path of an object
func (r *Repo) GetLatestPath(ctx context.Context, id string) (string, error) {
	if err := r.rlock(); err != nil {
		return "", err
	}
	defer r.mu.RUnlock()

	pth, err := r.index.PathByID(id)
	if err != nil {
		return "", translate(err, "no object %s", id)
	}
	return pth, nil
}

// DoesRefExist tells if an object exists.
//
// When given a composite reference, it tells if this exact version exists.
func (r *Repo) DoesRefExist(ctx context.Context, ref string) (bool, error) {
	if err := r.rlock(); err != nil {
		return false, err
	}
	defer r.mu.RUnlock()

	if !strings.Contains(ref, ";") {
		return r.index.Has(ref)
	}
	parsed, err := model.ParseRef(ref)
	if err != nil {
		return false, status.ErrMalformedRef.Wrap(err)
	}
	_, err = r.entryByRef(parsed.ID, parsed.Version)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, status.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// HasLatestVersion tells if a composite reference points to the latest version of its object
func (r *Repo) HasLatestVersion(ctx context.Context, ref string) (bool, error) {
	if err := r.rlock(); err != nil {
		return false, err
	}
	defer r.mu.RUnlock()

	parsed, err := model.ParseRef(ref)
	if err != nil {
		return false, status.ErrMalformedRef.Wrap(err)
	}
	latest, err := r.index.Latest(parsed.ID)
	if err != nil {
		return false, translate(err, "no object %s", parsed.ID)
	}
	return latest.Record.Version == parsed.Version, nil
}

// history of the object at a path, most recent first
func (r *Repo) history(pth string) ([]model.HistoryEntry, error) {
	cleaned, err := cleanPath(pth)
	if err != nil {
		return nil, err
	}
	id, err := r.index.IDByPath(cleaned)
	if err != nil {
		return nil, translate(err, "no object tracked at %s", cleaned)
	}
	history, err := r.index.History(id)
	if err != nil {
		return nil, translate(err, "no history for %s", cleaned)
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// History returns all the entries recorded for the object at a path, most recent first
func (r *Repo) History(ctx context.Context, pth string) ([]model.HistoryEntry, error) {
	if err := r.rlock(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	return r.history(pth)
}

// GetCreationDate returns the time the object at a path was first committed
func (r *Repo) GetCreationDate(ctx context.Context, pth string) (time.Time, error) {
	if err := r.rlock(); err != nil {
		return time.Time{}, err
	}
	defer r.mu.RUnlock()

	history, err := r.history(pth)
	if err != nil {
		return time.Time{}, err
	}
	return history[len(history)-1].Timestamp, nil
}

// GetLastModifiedDate returns the time of the latest change to the object at a path
func (r *Repo) GetLastModifiedDate(ctx context.Context, pth string) (time.Time, error) {
	if err := r.rlock(); err != nil {
		return time.Time{}, err
	}
	defer r.mu.RUnlock()

	cleaned, err := cleanPath(pth)
	if err != nil {
		return time.Time{}, err
	}
	latest, err := r.latest(cleaned)
	if err != nil {
		return time.Time{}, err
	}
	return latest.Timestamp, nil
}

// GetCreationDateByVersion returns the time a version of the document at a path was first committed
func (r *Repo) GetCreationDateByVersion(ctx context.Context, pth string, v model.Version) (time.Time, error) {
	if err := r.rlock(); err != nil {
		return time.Time{}, err
	}
	defer r.mu.RUnlock()

	history, err := r.history(pth)
	if err != nil {
		return time.Time{}, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Record.Folder && history[i].Record.Version == v {
			return history[i].Timestamp, nil
		}
	}
	return time.Time{}, status.ErrNotFound.WrapMessage("no version %s at %s", v, pth)
}

// GetChecksumByVersion returns the content checksum of a version of an object
func (r *Repo) GetChecksumByVersion(ctx context.Context, id string, v model.Version) (string, error) {
	if err := r.rlock(); err != nil {
		return "", err
	}
	defer r.mu.RUnlock()

	e, err := r.entryByRef(id, v)
	if err != nil {
		return "", err
	}
	return e.Record.Checksum, nil
}

// Paths lists the tracked paths at or below a folder. An empty root lists all tracked paths.
func (r *Repo) Paths(ctx context.Context, root string) ([]string, error) {
	if err := r.rlock(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	if root != "" {
		cleaned, err := cleanPath(root)
		if err != nil {
			return nil, err
		}
		root = cleaned
	}
	paths, err := r.index.Paths(root)
	if err != nil {
		return nil, translate(err, "no object tracked at %s", root)
	}
	return paths, nil
}
