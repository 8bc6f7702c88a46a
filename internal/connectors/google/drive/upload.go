package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-vision/internal/connectors/google"
	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// statusResumeIncomplete is the 308 Drive returns for a partial chunk.
const statusResumeIncomplete = 308

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4 << 10

var rangeHeader = regexp.MustCompile(`^bytes=0-(\d+)$`)

type uploadMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

// InitiateUpload opens a resumable upload session and returns its URI.
func (s *Store) InitiateUpload(ctx context.Context, meta domain.UploadMetadata) (domain.UploadSession, error) {
	body := uploadMetadata{Name: meta.Name, MimeType: meta.MIMEType}
	if meta.ParentID != "" {
		body.Parents = []string{meta.ParentID}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.UploadSession{}, err
	}

	q := url.Values{}
	q.Set("uploadType", "resumable")
	q.Set("supportsAllDrives", "true")
	q.Set("fields", fileFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UploadURL+"?"+q.Encode(), bytes.NewReader(payload))
	if err != nil {
		return domain.UploadSession{}, fmt.Errorf("create initiate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	if meta.MIMEType != "" {
		req.Header.Set("X-Upload-Content-Type", meta.MIMEType)
	}
	if meta.Size >= 0 {
		req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(meta.Size, 10))
	}

	resp, err := s.do(ctx, req)
	if err != nil {
		return domain.UploadSession{}, fmt.Errorf("initiate upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.UploadSession{}, upstreamError(resp, "initiate upload")
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return domain.UploadSession{}, domain.NewUpstreamError(google.ServiceName, resp.StatusCode,
			"initiate upload: response has no session location")
	}
	return domain.UploadSession{URI: location}, nil
}

// PutChunk sends bytes [start, end] of the upload. total is
// domain.UnknownSize while the length is not yet known. An empty data slice
// with a known total asks the server to finalise at that length.
func (s *Store) PutChunk(
	ctx context.Context,
	session domain.UploadSession,
	start, end, total int64,
	data []byte,
) (domain.ChunkResult, error) {
	if session.URI == "" {
		return domain.ChunkResult{}, domain.ValidationError("session", "upload session URI is required")
	}

	contentRange, err := ContentRange(start, end, total, len(data))
	if err != nil {
		return domain.ChunkResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session.URI, bytes.NewReader(data))
	if err != nil {
		return domain.ChunkResult{}, fmt.Errorf("create chunk request: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Range", contentRange)

	resp, err := s.do(ctx, req)
	if err != nil {
		return domain.ChunkResult{}, fmt.Errorf("put chunk: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var f drive.File
		if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
			return domain.ChunkResult{}, domain.NewUpstreamError(google.ServiceName, resp.StatusCode,
				"decode uploaded file: "+err.Error())
		}
		obj := toObject(&f)
		ack := total
		if ack < 0 {
			ack = end + 1
		}
		return domain.ChunkResult{State: domain.ChunkDone, AckOffset: ack, Object: &obj}, nil

	case statusResumeIncomplete:
		ack, err := AckOffset(resp.Header.Get("Range"))
		if err != nil {
			return domain.ChunkResult{}, err
		}
		return domain.ChunkResult{State: domain.ChunkPartial, AckOffset: ack}, nil

	default:
		return domain.ChunkResult{}, upstreamError(resp, "put chunk "+contentRange)
	}
}

// ContentRange renders the Content-Range header for a chunk request.
func ContentRange(start, end, total int64, n int) (string, error) {
	totalStr := "*"
	if total >= 0 {
		totalStr = strconv.FormatInt(total, 10)
	}
	if n == 0 {
		if total < 0 {
			return "", domain.ValidationError("total", "an empty chunk must declare the total size")
		}
		return "bytes */" + totalStr, nil
	}
	if start < 0 || end-start+1 != int64(n) {
		return "", domain.ValidationError("range",
			fmt.Sprintf("range %d-%d does not match %d bytes", start, end, n))
	}
	return fmt.Sprintf("bytes %d-%d/%s", start, end, totalStr), nil
}

// AckOffset converts a 308 Range header into the next offset the server
// expects. A missing header means nothing has been persisted.
func AckOffset(header string) (int64, error) {
	if header == "" {
		return 0, nil
	}
	m := rangeHeader.FindStringSubmatch(header)
	if m == nil {
		return 0, domain.NewUpstreamError(google.ServiceName, statusResumeIncomplete,
			fmt.Sprintf("malformed Range header %q", header))
	}
	last, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, domain.NewUpstreamError(google.ServiceName, statusResumeIncomplete,
			fmt.Sprintf("malformed Range header %q", header))
	}
	return last + 1, nil
}

// do waits on the rate limiter, sends req and records any 429 backoff.
func (s *Store) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	s.limiter.Observe(resp)
	return resp, nil
}

func upstreamError(resp *http.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := op
	if len(body) > 0 {
		detail += ": " + string(bytes.TrimSpace(body))
	}
	return domain.NewUpstreamError(google.ServiceName, resp.StatusCode, detail)
}
