package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// resumableServer emulates a Drive upload session that persists at most
// keep bytes of each chunk.
type resumableServer struct {
	t        *testing.T
	received []byte
	ranges   []string
	initBody uploadMetadata
	initHdr  http.Header
	keep     int
	drop     bool
	failPut  int
}

func (s *resumableServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload/files":
		assert.Equal(s.t, "resumable", r.URL.Query().Get("uploadType"))
		s.initHdr = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&s.initBody); err != nil {
			s.t.Error(err)
		}
		w.Header().Set("Location", "http://"+r.Host+"/session/abc")
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut && r.URL.Path == "/session/abc":
		s.ranges = append(s.ranges, r.Header.Get("Content-Range"))
		if s.failPut != 0 {
			w.WriteHeader(s.failPut)
			_, _ = io.WriteString(w, "session expired")
			return
		}
		body, _ := io.ReadAll(r.Body)
		var start, end, total int64
		if _, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &total); err != nil {
			// Finalize or unknown total.
			total = -1
			_, _ = fmt.Sscanf(r.Header.Get("Content-Range"), "bytes */%d", &total)
		}
		if s.drop {
			body = nil
		}
		if s.keep > 0 && len(body) > s.keep {
			body = body[:s.keep]
		}
		s.received = append(s.received, body...)

		if total >= 0 && int64(len(s.received)) == total {
			_ = json.NewEncoder(w).Encode(&drive.File{
				Id: "new-file", Name: s.initBody.Name, MimeType: s.initBody.MimeType,
				Size: total, Md5Checksum: "md5", Parents: s.initBody.Parents,
			})
			return
		}
		if len(s.received) > 0 {
			w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(s.received)-1))
		}
		w.WriteHeader(statusResumeIncomplete)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestStore_InitiateUpload(t *testing.T) {
	srv := &resumableServer{t: t}
	store := setupStore(t, srv)

	session, err := store.InitiateUpload(context.Background(), domain.UploadMetadata{
		Name: "0007 chair.jpg", MIMEType: "image/jpeg", ParentID: "f7", Size: 2048,
	})
	require.NoError(t, err)

	assert.Contains(t, session.URI, "/session/abc")
	assert.Equal(t, "0007 chair.jpg", srv.initBody.Name)
	assert.Equal(t, []string{"f7"}, srv.initBody.Parents)
	assert.Equal(t, "image/jpeg", srv.initHdr.Get("X-Upload-Content-Type"))
	assert.Equal(t, "2048", srv.initHdr.Get("X-Upload-Content-Length"))
}

func TestStore_InitiateUpload_UnknownSize(t *testing.T) {
	srv := &resumableServer{t: t}
	store := setupStore(t, srv)

	_, err := store.InitiateUpload(context.Background(), domain.UploadMetadata{Name: "x", Size: domain.UnknownSize})
	require.NoError(t, err)
	assert.Empty(t, srv.initHdr.Get("X-Upload-Content-Length"))
}

func TestStore_PutChunk_PartialThenDone(t *testing.T) {
	srv := &resumableServer{t: t, keep: 3}
	store := setupStore(t, srv)
	ctx := context.Background()

	session, err := store.InitiateUpload(ctx, domain.UploadMetadata{Name: "a.bin", Size: 5})
	require.NoError(t, err)

	res, err := store.PutChunk(ctx, session, 0, 4, 5, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkPartial, res.State)
	assert.Equal(t, int64(3), res.AckOffset)

	srv.keep = 0
	res, err = store.PutChunk(ctx, session, 3, 4, 5, []byte("lo"))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkDone, res.State)
	require.NotNil(t, res.Object)
	assert.Equal(t, "new-file", res.Object.ID)
	assert.Equal(t, int64(5), res.Object.Size)
	assert.Equal(t, []string{"bytes 0-4/5", "bytes 3-4/5"}, srv.ranges)
	assert.Equal(t, "hello", string(srv.received))
}

func TestStore_PutChunk_UnknownTotalAndFinalize(t *testing.T) {
	srv := &resumableServer{t: t}
	store := setupStore(t, srv)
	ctx := context.Background()

	session, err := store.InitiateUpload(ctx, domain.UploadMetadata{Name: "s.bin", Size: domain.UnknownSize})
	require.NoError(t, err)

	res, err := store.PutChunk(ctx, session, 0, 3, domain.UnknownSize, []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkPartial, res.State)
	assert.Equal(t, int64(4), res.AckOffset)

	res, err = store.PutChunk(ctx, session, 4, 3, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkDone, res.State)
	assert.Equal(t, []string{"bytes 0-3/*", "bytes */4"}, srv.ranges)
}

func TestStore_PutChunk_NoRangeMeansNothingPersisted(t *testing.T) {
	srv := &resumableServer{t: t, drop: true}
	store := setupStore(t, srv)
	ctx := context.Background()

	session, err := store.InitiateUpload(ctx, domain.UploadMetadata{Name: "a", Size: 4})
	require.NoError(t, err)

	res, err := store.PutChunk(ctx, session, 0, 3, 4, []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkPartial, res.State)
	assert.Zero(t, res.AckOffset)
}

func TestStore_PutChunk_RequiresSession(t *testing.T) {
	store := setupStore(t, &resumableServer{t: t})

	_, err := store.PutChunk(context.Background(), domain.UploadSession{}, 0, 0, 1, []byte("x"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStore_PutChunk_UpstreamError(t *testing.T) {
	srv := &resumableServer{t: t, failPut: http.StatusGone}
	store := setupStore(t, srv)
	ctx := context.Background()

	session, err := store.InitiateUpload(ctx, domain.UploadMetadata{Name: "a", Size: 1})
	require.NoError(t, err)

	_, err = store.PutChunk(ctx, session, 0, 0, 1, []byte("a"))
	require.ErrorIs(t, err, domain.ErrUpstream)

	var uerr *domain.UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusGone, uerr.Status)
	assert.Contains(t, uerr.Detail, "session expired")
}

func TestContentRange(t *testing.T) {
	tests := []struct {
		name              string
		start, end, total int64
		n                 int
		want              string
		wantErr           bool
	}{
		{"known total", 0, 262143, 1000000, 262144, "bytes 0-262143/1000000", false},
		{"unknown total", 262144, 524287, -1, 262144, "bytes 262144-524287/*", false},
		{"finalize", 40, 39, 40, 0, "bytes */40", false},
		{"finalize needs total", 40, 39, -1, 0, "", true},
		{"length mismatch", 0, 9, 100, 5, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ContentRange(tt.start, tt.end, tt.total, tt.n)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAckOffset(t *testing.T) {
	ack, err := AckOffset("bytes=0-39999")
	require.NoError(t, err)
	assert.Equal(t, int64(40000), ack)

	_, err = AckOffset("bytes=10-20")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}
