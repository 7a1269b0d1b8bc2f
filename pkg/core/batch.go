package core

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strings"
	"time"

	blobstatus "github.com/ccsi/dmflite/pkg/blob/status"
	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/storage"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// ItemState is the progress of one object of a batch upload
type ItemState string

const (
	// ItemPending is an object not committed yet
	ItemPending ItemState = "pending"

	// ItemCommitted is an object committed to the history
	ItemCommitted ItemState = "committed"

	// ItemFailed is an object which failed to commit. It is retried on reconcile.
	ItemFailed ItemState = "failed"
)

// BatchUpload is one object of a batch upload: either a folder or a document
type BatchUpload struct {
	Folder   *FolderRequest
	Document *DocumentRequest
}

// BatchItem is the journaled form of an upload.
//
// Document contents are stored in the blob store before the batch starts: the journal only
// keeps their checksum.
type BatchItem struct {
	Path                string    `yaml:"path"`
	Folder              bool      `yaml:"folder,omitempty"`
	DisplayName         string    `yaml:"display_name,omitempty"`
	Description         string    `yaml:"description,omitempty"`
	OriginalName        string    `yaml:"original_name,omitempty"`
	Mimetype            string    `yaml:"mimetype,omitempty"`
	External            string    `yaml:"external,omitempty"`
	Confidence          string    `yaml:"confidence,omitempty"`
	VersionRequirements string    `yaml:"version_requirements,omitempty"`
	Creator             string    `yaml:"creator,omitempty"`
	Version             string    `yaml:"version,omitempty"`
	Dependencies        []string  `yaml:"dependencies,omitempty"`
	CheckInComment      string    `yaml:"check_in_comment,omitempty"`
	Checksum            string    `yaml:"checksum,omitempty"`
	State               ItemState `yaml:"state"`
	Ref                 string    `yaml:"ref,omitempty"`
	Error               string    `yaml:"error,omitempty"`
}

// Batch is the journal of a multi-object upload.
//
// Objects are committed independently, in order. A batch interrupted midway keeps its journal,
// which Reconcile uses to commit the remaining objects.
type Batch struct {
	ID        string            `yaml:"id"`
	Timestamp time.Time         `yaml:"timestamp"`
	Author    model.Contributor `yaml:"author"`
	Items     []BatchItem       `yaml:"items"`
	Complete  bool              `yaml:"complete"`
}

// Refs returns the references of the committed objects of a batch, in order
func (b *Batch) Refs() []string {
	refs := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		if item.State == ItemCommitted {
			refs = append(refs, item.Ref)
		}
	}
	return refs
}

func (b *Batch) isComplete() bool {
	for _, item := range b.Items {
		if item.State != ItemCommitted {
			return false
		}
	}
	return true
}

// UploadBatch commits several objects in order, typically dependencies before their dependents.
//
// There is no rollback: when an object fails, the objects after it are left pending and the
// batch is returned along with ErrBatchIncomplete.
func (r *Repo) UploadBatch(ctx context.Context, uploads []BatchUpload) (b *Batch, err error) {
	defer r.observe("upload_batch", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	b = &Batch{
		ID:        model.NewID(),
		Timestamp: r.now().UTC(),
		Author:    r.author,
		Items:     make([]BatchItem, 0, len(uploads)),
	}
	for _, upload := range uploads {
		item, err := r.journalItem(ctx, upload)
		if err != nil {
			return nil, err
		}
		b.Items = append(b.Items, item)
	}
	if err = r.saveBatch(ctx, b); err != nil {
		return nil, err
	}
	return b, r.applyBatch(ctx, b)
}

func (r *Repo) journalItem(ctx context.Context, upload BatchUpload) (BatchItem, error) {
	switch {
	case upload.Folder != nil:
		return BatchItem{
			Path:        upload.Folder.Path,
			Folder:      true,
			DisplayName: upload.Folder.DisplayName,
			Description: upload.Folder.Description,
			State:       ItemPending,
		}, nil
	case upload.Document != nil:
		req := upload.Document
		checksum, err := r.blobs.Put(ctx, req.Bytes)
		if err != nil {
			return BatchItem{}, err
		}
		item := BatchItem{
			Path:                req.Path,
			OriginalName:        req.OriginalName,
			Description:         req.Description,
			Mimetype:            req.Mimetype,
			External:            req.External,
			Confidence:          req.Confidence,
			VersionRequirements: req.VersionRequirements,
			Creator:             req.Creator,
			CheckInComment:      req.CheckInComment,
			Checksum:            checksum,
			State:               ItemPending,
		}
		if req.Version != nil {
			item.Version = req.Version.String()
		}
		for _, dep := range req.Dependencies {
			item.Dependencies = append(item.Dependencies, dep.String())
		}
		return item, nil
	default:
		return BatchItem{}, status.ErrInvalidPath.WrapMessage("empty batch upload")
	}
}

// applyBatch commits the objects of a batch not committed yet. Must be called with the write lock held.
func (r *Repo) applyBatch(ctx context.Context, b *Batch) error {
	var failure error
	for i := range b.Items {
		item := &b.Items[i]
		if item.State == ItemCommitted {
			continue
		}
		ref, err := r.applyItem(ctx, item)
		if err != nil {
			item.State = ItemFailed
			item.Error = err.Error()
			failure = err
			r.l.Warn("batch upload interrupted", zap.String("batch", b.ID), zap.String("path", item.Path), zap.Error(err))
			break
		}
		item.State = ItemCommitted
		item.Ref = ref
		item.Error = ""
		if err = r.saveBatch(ctx, b); err != nil {
			return err
		}
	}
	b.Complete = b.isComplete()
	if err := r.saveBatch(ctx, b); err != nil {
		return multierr.Append(failure, err)
	}
	if failure != nil {
		return status.ErrBatchIncomplete.Wrap(failure)
	}
	return nil
}

// applyItem commits one object, unless a previous attempt already did
func (r *Repo) applyItem(ctx context.Context, item *BatchItem) (string, error) {
	if ref, done, err := r.isApplied(item); err != nil || done {
		return ref, err
	}
	if item.Folder {
		id, err := r.createFolder(ctx, item.Path, item.DisplayName, item.Description, r.user, false)
		if err != nil {
			return "", err
		}
		return model.NewRef(id, model.Version{}).String(), nil
	}

	data, err := r.blobs.Get(ctx, item.Checksum)
	if err != nil {
		if errors.Is(err, blobstatus.ErrNotFound) {
			return "", status.ErrNotFound.WrapMessage("content %s of %s", item.Checksum, item.Path)
		}
		return "", err
	}
	req := DocumentRequest{
		Bytes:               data,
		Path:                item.Path,
		OriginalName:        item.OriginalName,
		Description:         item.Description,
		Mimetype:            item.Mimetype,
		External:            item.External,
		Confidence:          item.Confidence,
		VersionRequirements: item.VersionRequirements,
		Creator:             item.Creator,
		CheckInComment:      item.CheckInComment,
	}
	if item.Version != "" {
		v, err := model.ParseVersion(item.Version)
		if err != nil {
			return "", status.ErrMalformed.Wrap(err)
		}
		req.Version = &v
	}
	for _, dep := range item.Dependencies {
		ref, err := model.ParseRef(dep)
		if err != nil {
			return "", status.ErrMalformedRef.Wrap(err)
		}
		req.Dependencies = append(req.Dependencies, ref)
	}
	ref, err := r.createDocument(ctx, req)
	if err != nil {
		return "", err
	}
	return ref.String(), nil
}

// isApplied detects objects committed by an attempt which failed to update its journal
func (r *Repo) isApplied(item *BatchItem) (string, bool, error) {
	cleaned, err := cleanPath(item.Path)
	if err != nil {
		return "", false, err
	}
	id, isTracked, err := r.tracked(cleaned)
	if err != nil || !isTracked {
		return "", false, err
	}
	latest, err := r.index.Latest(id)
	if err != nil {
		return "", false, translate(err, "no history for %s", cleaned)
	}
	if item.Folder {
		return latest.Ref().String(), latest.Record.Folder, nil
	}
	if latest.Record.Folder || latest.Record.Checksum != item.Checksum {
		return "", false, nil
	}
	if item.Version != "" && latest.Record.Version.String() != item.Version {
		return "", false, nil
	}
	return latest.Ref().String(), true, nil
}

func (r *Repo) saveBatch(ctx context.Context, b *Batch) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return err
	}
	return r.meta.Put(ctx, model.GetPathToBatch(b.ID), bytes.NewReader(data), storage.OverWrite)
}

func (r *Repo) loadBatch(ctx context.Context, key string) (*Batch, error) {
	data, err := storage.ReadAll(ctx, r.meta, key)
	if err != nil {
		return nil, err
	}
	var b Batch
	if err = yaml.Unmarshal(data, &b); err != nil {
		return nil, status.ErrMalformed.WrapMessage("batch journal %s: %v", key, err)
	}
	return &b, nil
}

// Batches lists the journals of all batch uploads, oldest first
func (r *Repo) Batches(ctx context.Context) ([]*Batch, error) {
	if err := r.rlock(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	return r.batches(ctx)
}

func (r *Repo) batches(ctx context.Context) ([]*Batch, error) {
	keys, err := r.meta.KeysPrefix(ctx, model.GetBatchesDir())
	if err != nil {
		return nil, err
	}
	batches := make([]*Batch, 0, len(keys))
	for _, key := range keys {
		if path.Ext(key) != ".yaml" || !strings.HasPrefix(key, model.GetBatchesDir()+"/") {
			continue
		}
		b, err := r.loadBatch(ctx, key)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].Timestamp.Before(batches[j].Timestamp)
	})
	return batches, nil
}

// Reconcile detects partially applied batch uploads and commits their remaining objects.
//
// It returns the batches it visited. Batches which still cannot complete are reported as errors.
func (r *Repo) Reconcile(ctx context.Context) (reconciled []*Batch, err error) {
	defer r.observe("reconcile", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	batches, err := r.batches(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if b.Complete {
			continue
		}
		r.l.Info("reconciling batch upload", zap.String("batch", b.ID), zap.Int("items", len(b.Items)))
		if e := r.applyBatch(ctx, b); e != nil {
			err = multierr.Append(err, e)
		}
		reconciled = append(reconciled, b)
	}
	return reconciled, err
}
