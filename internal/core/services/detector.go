package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// Change detector defaults.
const (
	// DefaultCuratedFolder is the optional sub-folder whose images are
	// appended to a folder's own listing.
	DefaultCuratedFolder = "curated"

	// UpsertBatchSize bounds how many vectors are held before a flush.
	UpsertBatchSize = 20
)

// DetectTarget identifies a folder and the entity it represents.
type DetectTarget struct {
	FolderID string
	EntityID string
	Label    string
}

// TargetFromFolder derives the detection target from a folder's name.
// Folders without an item number yield an empty EntityID.
func TargetFromFolder(folder domain.Folder) DetectTarget {
	entityID, label, _ := domain.ParseFolderName(folder.Name)
	return DetectTarget{FolderID: folder.ID, EntityID: entityID, Label: label}
}

// ChangeDetector performs incremental reindexing of one folder: it embeds
// only objects whose content signature differs from the last indexed one.
type ChangeDetector struct {
	files         driven.FileStore
	embedder      driven.EmbeddingService
	index         driven.VectorIndex
	signatures    *SignatureStore
	curatedFolder string
}

// NewChangeDetector creates a change detector. An empty curatedFolder
// disables the curated sub-folder lookup.
func NewChangeDetector(
	files driven.FileStore,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	signatures *SignatureStore,
	curatedFolder string,
) *ChangeDetector {
	return &ChangeDetector{
		files:         files,
		embedder:      embedder,
		index:         index,
		signatures:    signatures,
		curatedFolder: curatedFolder,
	}
}

// Detect diffs the folder's listing against its seen record and embeds at
// most opts.MaxChanged changed objects in listing order.
func (d *ChangeDetector) Detect(
	ctx context.Context,
	target DetectTarget,
	opts domain.DetectOptions,
) (domain.DetectResult, error) {
	entityID, ok := domain.NormalizeEntityID(target.EntityID)
	if !ok {
		logger.Debug("Folder %s has no entity id, skipping", target.FolderID)
		return domain.DetectResult{Skipped: true}, nil
	}

	if err := d.ready(); err != nil {
		return domain.DetectResult{}, err
	}

	objects, err := d.listObjects(ctx, target.FolderID)
	if err != nil {
		return domain.DetectResult{}, err
	}

	record, err := d.signatures.Load(ctx, target.FolderID)
	if err != nil {
		return domain.DetectResult{}, err
	}

	result := domain.DetectResult{Scanned: len(objects)}
	batch := make([]domain.VectorEntry, 0, UpsertBatchSize)

	for _, obj := range objects {
		if opts.MaxChanged >= 0 && result.Changed >= opts.MaxChanged {
			break
		}
		if !record.IsChanged(obj) {
			continue
		}

		entry, err := d.embedObject(ctx, obj, entityID, target.Label, target.FolderID)
		if err != nil {
			return domain.DetectResult{}, err
		}
		batch = append(batch, entry)
		if len(batch) >= UpsertBatchSize {
			if err := d.index.Upsert(ctx, batch); err != nil {
				return domain.DetectResult{}, fmt.Errorf("upsert vectors: %w", err)
			}
			batch = batch[:0]
		}

		record[obj.ID] = obj.Signature
		result.Changed++
	}

	if len(batch) > 0 {
		if err := d.index.Upsert(ctx, batch); err != nil {
			return domain.DetectResult{}, fmt.Errorf("upsert vectors: %w", err)
		}
	}

	if !opts.DryRun && result.Changed > 0 {
		if err := d.signatures.Save(ctx, target.FolderID, record); err != nil {
			return domain.DetectResult{}, err
		}
	}

	result.Skipped = result.Changed == 0
	logger.Debug("Folder %s (entity %s): scanned=%d changed=%d",
		target.FolderID, entityID, result.Scanned, result.Changed)
	return result, nil
}

// ready reports whether embedding and indexing are configured.
func (d *ChangeDetector) ready() error {
	if d.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}
	if d.index == nil {
		return domain.ErrVectorIndexUnavailable
	}
	return nil
}

// listObjects returns the folder's images followed by its curated sub-folder's.
func (d *ChangeDetector) listObjects(ctx context.Context, folderID string) ([]domain.Object, error) {
	objects, err := d.files.ListImages(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}
	if d.curatedFolder == "" {
		return objects, nil
	}

	curated, ok, err := d.files.FindSubfolder(ctx, folderID, d.curatedFolder)
	if err != nil {
		return nil, fmt.Errorf("find curated folder in %s: %w", folderID, err)
	}
	if !ok {
		return objects, nil
	}

	extra, err := d.files.ListImages(ctx, curated.ID)
	if err != nil {
		return nil, fmt.Errorf("list curated folder %s: %w", curated.ID, err)
	}
	return append(objects, extra...), nil
}

// embedObject downloads and embeds one object into a vector entry.
func (d *ChangeDetector) embedObject(
	ctx context.Context,
	obj domain.Object,
	entityID, label, folderID string,
) (domain.VectorEntry, error) {
	data, err := d.files.FetchBytes(ctx, obj.ID)
	if err != nil {
		return domain.VectorEntry{}, fmt.Errorf("fetch object %s: %w", obj.ID, err)
	}
	vec, err := d.embedder.EmbedImage(ctx, data)
	if err != nil {
		return domain.VectorEntry{}, fmt.Errorf("embed object %s: %w", obj.ID, err)
	}
	return domain.VectorEntry{
		ID:       obj.ID,
		Values:   vec,
		Metadata: domain.EntryMetadata(entityID, label, folderID, obj.Name),
	}, nil
}
