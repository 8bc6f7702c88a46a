// Package drive implements the collection file store over the Google Drive v3 API.
package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-vision/internal/connectors/google"
	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.FileStore = (*Store)(nil)

// Store is a Drive-backed driven.FileStore.
type Store struct {
	svc     *drive.Service
	client  *http.Client
	limiter *google.RateLimiter
	cfg     Config
}

// New creates a store. client must carry the same credentials as svc; it
// drives resumable upload sessions, which the generated client cannot resume.
func New(svc *drive.Service, client *http.Client, limiter *google.RateLimiter, cfg Config) *Store {
	if limiter == nil {
		limiter = google.NewRateLimiter(google.DefaultDriveRateLimit)
	}
	return &Store{
		svc:     svc,
		client:  client,
		limiter: limiter,
		cfg:     cfg.withDefaults(),
	}
}

// ListFolders returns the direct child folders of parentID.
func (s *Store) ListFolders(ctx context.Context, parentID string) ([]domain.Folder, error) {
	files, err := s.list(ctx, foldersQuery(parentID), "folders of "+parentID)
	if err != nil {
		return nil, err
	}
	folders := make([]domain.Folder, 0, len(files))
	for _, f := range files {
		folders = append(folders, toFolder(f))
	}
	return folders, nil
}

// ListImages returns the image objects directly inside folderID, ordered by name.
func (s *Store) ListImages(ctx context.Context, folderID string) ([]domain.Object, error) {
	files, err := s.list(ctx, imagesQuery(folderID), "images of "+folderID)
	if err != nil {
		return nil, err
	}
	objects := make([]domain.Object, 0, len(files))
	for _, f := range files {
		objects = append(objects, toObject(f))
	}
	return objects, nil
}

// FindSubfolder looks up a child folder by exact name.
func (s *Store) FindSubfolder(ctx context.Context, parentID, name string) (domain.Folder, bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.Folder{}, false, err
	}
	resp, err := s.svc.Files.List().
		Q(subfolderQuery(parentID, name)).
		Fields(listFields).
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return domain.Folder{}, false, s.wrap(err, fmt.Sprintf("subfolder %q of %s", name, parentID))
	}
	if len(resp.Files) == 0 {
		return domain.Folder{}, false, nil
	}
	return toFolder(resp.Files[0]), true, nil
}

// GetFolder returns a folder's metadata.
func (s *Store) GetFolder(ctx context.Context, folderID string) (*domain.Folder, error) {
	f, err := s.get(ctx, folderID, "folder "+folderID)
	if err != nil {
		return nil, err
	}
	if f.MimeType != MimeTypeFolder {
		return nil, domain.ValidationError("folder_id", folderID+" is not a folder")
	}
	folder := toFolder(f)
	return &folder, nil
}

// GetObject returns an object's metadata.
func (s *Store) GetObject(ctx context.Context, objectID string) (*domain.Object, error) {
	f, err := s.get(ctx, objectID, "object "+objectID)
	if err != nil {
		return nil, err
	}
	obj := toObject(f)
	return &obj, nil
}

// FetchBytes downloads an object's content.
func (s *Store) FetchBytes(ctx context.Context, objectID string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := s.svc.Files.Get(objectID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, s.wrap(err, "download "+objectID)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectID, err)
	}
	if int64(len(data)) > s.cfg.MaxDownloadSize {
		return nil, domain.ValidationError("object_id",
			fmt.Sprintf("%s exceeds %d bytes", objectID, s.cfg.MaxDownloadSize))
	}
	return data, nil
}

func (s *Store) get(ctx context.Context, id, resource string) (*drive.File, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	f, err := s.svc.Files.Get(id).Fields(fileFields).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, s.wrap(err, resource)
	}
	return f, nil
}

// list pages through every file matching q.
func (s *Store) list(ctx context.Context, q, resource string) ([]*drive.File, error) {
	var files []*drive.File
	pageToken := ""
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		call := s.svc.Files.List().
			Q(q).
			Fields(listFields).
			OrderBy("name").
			PageSize(s.cfg.PageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, s.wrap(err, resource)
		}
		files = append(files, resp.Files...)

		if resp.NextPageToken == "" {
			return files, nil
		}
		pageToken = resp.NextPageToken
	}
}

// wrap maps an API error and starts a backoff on 429.
func (s *Store) wrap(err error, resource string) error {
	if google.IsRateLimited(err) {
		s.limiter.RecordRateLimit(0)
	}
	return google.WrapError(err, resource)
}
