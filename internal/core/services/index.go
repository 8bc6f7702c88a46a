package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driving"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService handles manual upserts by folder, object or raw bytes.
type IndexService struct {
	files      driven.FileStore
	embedder   driven.EmbeddingService
	index      driven.VectorIndex
	signatures *SignatureStore
	detector   *ChangeDetector
}

// NewIndexService creates a new index service.
func NewIndexService(
	files driven.FileStore,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	signatures *SignatureStore,
	detector *ChangeDetector,
) *IndexService {
	return &IndexService{
		files:      files,
		embedder:   embedder,
		index:      index,
		signatures: signatures,
		detector:   detector,
	}
}

// UpsertFolder runs change detection for one folder.
func (s *IndexService) UpsertFolder(
	ctx context.Context,
	folderID string,
	opts domain.DetectOptions,
) (domain.DetectResult, error) {
	if folderID == "" {
		return domain.DetectResult{}, domain.ValidationError("folder_id", "required")
	}
	folder, err := s.files.GetFolder(ctx, folderID)
	if err != nil {
		return domain.DetectResult{}, fmt.Errorf("get folder %s: %w", folderID, err)
	}
	return s.detector.Detect(ctx, TargetFromFolder(*folder), opts)
}

// UpsertObject embeds one object unconditionally and records its signature
// in its folder's seen record.
func (s *IndexService) UpsertObject(ctx context.Context, objectID string) error {
	if objectID == "" {
		return domain.ValidationError("object_id", "required")
	}
	if err := s.detector.ready(); err != nil {
		return err
	}
	obj, err := s.files.GetObject(ctx, objectID)
	if err != nil {
		return fmt.Errorf("get object %s: %w", objectID, err)
	}
	if obj.ParentID == "" {
		return domain.ValidationError("object_id", "object has no parent folder")
	}
	folder, err := s.files.GetFolder(ctx, obj.ParentID)
	if err != nil {
		return fmt.Errorf("get folder %s: %w", obj.ParentID, err)
	}
	// Curated images belong to the entity folder one level up.
	if folder.Name == s.detector.curatedFolder && folder.ParentID != "" {
		entityFolderID := folder.ParentID
		folder, err = s.files.GetFolder(ctx, entityFolderID)
		if err != nil {
			return fmt.Errorf("get folder %s: %w", entityFolderID, err)
		}
	}
	target := TargetFromFolder(*folder)
	if target.EntityID == "" {
		return domain.ValidationError("object_id",
			fmt.Sprintf("folder %q has no item number", folder.Name))
	}

	entry, err := s.detector.embedObject(ctx, *obj, target.EntityID, target.Label, folder.ID)
	if err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, []domain.VectorEntry{entry}); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}

	record, err := s.signatures.Load(ctx, folder.ID)
	if err != nil {
		return err
	}
	record[obj.ID] = obj.Signature
	return s.signatures.Save(ctx, folder.ID, record)
}

// UpsertBytes embeds raw bytes under the given id and entity.
func (s *IndexService) UpsertBytes(ctx context.Context, req domain.UpsertBytesRequest) error {
	if req.ID == "" {
		return domain.ValidationError("id", "required")
	}
	if len(req.Data) == 0 {
		return domain.ValidationError("data", "required")
	}
	entityID, ok := domain.NormalizeEntityID(req.EntityID)
	if !ok {
		return domain.ValidationError("entity_id", fmt.Sprintf("invalid entity id %q", req.EntityID))
	}
	if err := s.detector.ready(); err != nil {
		return err
	}

	vec, err := s.embedder.EmbedImage(ctx, req.Data)
	if err != nil {
		return fmt.Errorf("embed %s: %w", req.ID, err)
	}
	entry := domain.VectorEntry{
		ID:       req.ID,
		Values:   vec,
		Metadata: domain.EntryMetadata(entityID, req.Label, "", ""),
	}
	if err := s.index.Upsert(ctx, []domain.VectorEntry{entry}); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}
