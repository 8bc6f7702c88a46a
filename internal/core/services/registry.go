package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

const registryKey = "folders:registry"

// FolderRegistry persists the ordered list of collection folders. Its order
// is the address space of the reindex cursor and only changes on Refresh.
type FolderRegistry struct {
	store        driven.MetadataStore
	files        driven.FileStore
	rootFolderID string
}

// NewFolderRegistry creates a registry of the folders under rootFolderID.
func NewFolderRegistry(store driven.MetadataStore, files driven.FileStore, rootFolderID string) *FolderRegistry {
	return &FolderRegistry{
		store:        store,
		files:        files,
		rootFolderID: rootFolderID,
	}
}

// Load returns the persisted folder list, or an empty list if none exists.
func (r *FolderRegistry) Load(ctx context.Context) ([]domain.Folder, error) {
	entry, ok, err := r.store.Get(ctx, registryKey)
	if err != nil {
		return nil, fmt.Errorf("load folder registry: %w", err)
	}
	if !ok || len(entry.Value) == 0 {
		return nil, nil
	}
	var folders []domain.Folder
	if err := json.Unmarshal(entry.Value, &folders); err != nil {
		return nil, fmt.Errorf("decode folder registry: %w", err)
	}
	return folders, nil
}

// Refresh relists the root folder, persists the sorted list and returns it.
func (r *FolderRegistry) Refresh(ctx context.Context) ([]domain.Folder, error) {
	folders, err := ListSortedFolders(ctx, r.files, r.rootFolderID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(folders)
	if err != nil {
		return nil, fmt.Errorf("encode folder registry: %w", err)
	}
	if err := r.store.Put(ctx, registryKey, data); err != nil {
		return nil, fmt.Errorf("save folder registry: %w", err)
	}

	logger.Info("Folder registry refreshed: %d folders", len(folders))
	return folders, nil
}

// ListSortedFolders lists the children of rootFolderID sorted by name, then
// id, so repeated listings paginate reproducibly.
func ListSortedFolders(ctx context.Context, files driven.FileStore, rootFolderID string) ([]domain.Folder, error) {
	folders, err := files.ListFolders(ctx, rootFolderID)
	if err != nil {
		return nil, fmt.Errorf("list collection folders: %w", err)
	}
	sort.SliceStable(folders, func(i, j int) bool {
		if folders[i].Name != folders[j].Name {
			return folders[i].Name < folders[j].Name
		}
		return folders[i].ID < folders[j].ID
	})
	return folders, nil
}
