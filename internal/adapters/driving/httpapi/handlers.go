package httpapi

import (
	"net/http"
	"strconv"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// Defaults for manually triggered reindex passes.
const (
	defaultLimitFolders = 25
	defaultMaxChanged   = 40
)

// Recent scheduled runs returned with the status.
const (
	defaultHistory = 10
	maxHistory     = 100
)

type reindexRequest struct {
	Stateless    bool `json:"stateless"`
	Start        int  `json:"start"`
	LimitFolders int  `json:"limit_folders"`
	MaxChanged   *int `json:"max_changed"`
	DryRun       bool `json:"dry_run"`
}

type upsertRequest struct {
	FolderID   string `json:"folder_id"`
	ObjectID   string `json:"object_id"`
	MaxChanged *int   `json:"max_changed"`
	DryRun     bool   `json:"dry_run"`

	// Raw bytes upsert.
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`
	Label    string `json:"label"`
	Image    []byte `json:"image"`
}

type queryRequest struct {
	Text     string `json:"text"`
	ObjectID string `json:"object_id"`
	URL      string `json:"url"`
	Image    []byte `json:"image"`
	TopK     int    `json:"top_k"`
	Entities int    `json:"entities"`
	EntityID string `json:"entity_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, "", nil)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	opts := domain.ReindexOptions{
		Mode:         domain.ModeStateful,
		LimitFolders: req.LimitFolders,
		MaxChanged:   defaultMaxChanged,
		DryRun:       req.DryRun,
	}
	if opts.LimitFolders == 0 {
		opts.LimitFolders = defaultLimitFolders
	}
	if req.MaxChanged != nil {
		opts.MaxChanged = *req.MaxChanged
	}
	if req.Stateless {
		opts.Mode = domain.ModeStateless
		opts.Start = req.Start
	}

	result, err := s.ports.Reindex.Run(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "result", result)
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.ports.Reindex.Folders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "folders", folders)
}

func (s *Server) handleRefreshFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.ports.Reindex.RefreshFolders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "folders", folders)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistory
	if v := r.URL.Query().Get("history"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxHistory {
			writeError(w, domain.ValidationError("history", "must be between 0 and 100"))
			return
		}
		limit = n
	}

	status, err := s.ports.Reindex.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	history := []domain.TaskResult{}
	if limit > 0 {
		history, err = s.ports.Reindex.History(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"status":  status,
		"history": history,
	})
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	if s.ports.Index == nil {
		writeError(w, domain.ErrEmbeddingUnavailable)
		return
	}
	var req upsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	switch {
	case req.FolderID != "":
		opts := domain.DetectOptions{MaxChanged: domain.Unbounded, DryRun: req.DryRun}
		if req.MaxChanged != nil {
			opts.MaxChanged = *req.MaxChanged
		}
		result, err := s.ports.Index.UpsertFolder(ctx, req.FolderID, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "result", result)
	case req.ObjectID != "":
		if err := s.ports.Index.UpsertObject(ctx, req.ObjectID); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "object_id", req.ObjectID)
	case len(req.Image) > 0:
		err := s.ports.Index.UpsertBytes(ctx, domain.UpsertBytesRequest{
			ID:       req.ID,
			EntityID: req.EntityID,
			Label:    req.Label,
			Data:     req.Image,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "id", req.ID)
	default:
		writeError(w, domain.ValidationError("body", "one of folder_id, object_id or image is required"))
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.ports.Search == nil {
		writeError(w, domain.ErrEmbeddingUnavailable)
		return
	}
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	q := domain.QueryRequest{
		Text:     req.Text,
		ObjectID: req.ObjectID,
		URL:      req.URL,
		Data:     req.Image,
		TopK:     req.TopK,
		Entities: req.Entities,
	}
	if req.EntityID != "" {
		id, ok := domain.NormalizeEntityID(req.EntityID)
		if !ok {
			writeError(w, domain.ValidationError("entity_id", "must be an item number"))
			return
		}
		q.Filter = map[string]string{domain.MetaEntityID: id}
	}

	resp, err := s.ports.Search.Query(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*domain.QueryResponse
	}{OK: true, QueryResponse: resp})
}

// handleUpload streams the request body into a resumable upload. The
// declared size comes from ?size= or Content-Length; without either the
// transfer is finalised when the body ends.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.ports.Upload == nil {
		writeError(w, domain.ConfigurationError("upload", "upload service not configured"))
		return
	}

	query := r.URL.Query()
	meta := domain.UploadMetadata{
		Name:     query.Get("name"),
		MIMEType: query.Get("mime"),
		ParentID: query.Get("parent"),
		Size:     domain.UnknownSize,
	}
	if meta.ParentID == "" {
		meta.ParentID = s.ports.UploadParentID
	}
	if meta.MIMEType == "" {
		meta.MIMEType = r.Header.Get("Content-Type")
	}
	switch {
	case query.Get("size") != "":
		size, err := strconv.ParseInt(query.Get("size"), 10, 64)
		if err != nil || size < 0 {
			writeError(w, domain.ValidationError("size", "must be a non-negative integer"))
			return
		}
		meta.Size = size
	case r.ContentLength >= 0:
		meta.Size = r.ContentLength
	}

	obj, err := s.ports.Upload.Upload(r.Context(), meta, r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "object", obj)
}
