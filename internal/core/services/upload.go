package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// Ensure Uploader implements the interface.
var _ driving.UploadService = (*Uploader)(nil)

// Chunking constants. The remote store only accepts non-final chunks whose
// length is a multiple of ChunkAlignment.
const (
	ChunkAlignment   = 256 * 1024
	DefaultChunkSize = 32 * ChunkAlignment

	// maxStalledChunks bounds consecutive partial responses that acknowledge
	// no new bytes before the transfer is declared failed.
	maxStalledChunks = 5
)

// Uploader streams bytes into the remote store over a resumable session.
type Uploader struct {
	files     driven.FileStore
	metrics   driven.MetricsRecorder
	chunkSize int
}

// NewUploader creates an uploader. chunkSize 0 selects DefaultChunkSize;
// any other value must be a positive multiple of ChunkAlignment.
func NewUploader(files driven.FileStore, metrics driven.MetricsRecorder, chunkSize int) (*Uploader, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < 0 || chunkSize%ChunkAlignment != 0 {
		return nil, domain.ConfigurationError("upload.chunk_size",
			fmt.Sprintf("must be a positive multiple of %d, got %d", ChunkAlignment, chunkSize))
	}
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &Uploader{files: files, metrics: metrics, chunkSize: chunkSize}, nil
}

// ChunkSize returns the configured chunk size.
func (u *Uploader) ChunkSize() int {
	return u.chunkSize
}

// Upload opens a session and streams r through it.
func (u *Uploader) Upload(ctx context.Context, meta domain.UploadMetadata, r io.Reader) (*domain.Object, error) {
	if meta.Name == "" {
		return nil, domain.ValidationError("name", "required")
	}
	if meta.Size < 0 {
		meta.Size = domain.UnknownSize
	}

	session, err := u.files.InitiateUpload(ctx, meta)
	if err != nil {
		u.metrics.ObserveUpload(0, err)
		return nil, fmt.Errorf("initiate upload: %w", err)
	}

	obj, sent, err := u.transfer(ctx, session, meta.Size, r)
	u.metrics.ObserveUpload(sent, err)
	if err != nil {
		return nil, err
	}
	logger.Info("Uploaded %s (%d bytes) as %s", meta.Name, sent, obj.ID)
	return obj, nil
}

// transfer sends the stream chunk by chunk. offset is the stream position of
// buf[0]; after a partial response it moves to the acknowledged offset and
// the unacknowledged tail of buf is sent again.
func (u *Uploader) transfer(
	ctx context.Context,
	session domain.UploadSession,
	declared int64,
	r io.Reader,
) (*domain.Object, int64, error) {
	buf := make([]byte, 0, u.chunkSize)
	var offset int64
	eof := false
	stalled := 0

	for {
		if !eof {
			n, err := io.ReadFull(r, buf[len(buf):u.chunkSize])
			buf = buf[:len(buf)+n]
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				eof = true
			case err != nil:
				return nil, offset, fmt.Errorf("read upload stream: %w", err)
			}
		}
		if len(buf) == 0 && eof {
			break
		}

		total := declared
		if eof && total == domain.UnknownSize {
			// The stream is exhausted, so this chunk is the last one.
			total = offset + int64(len(buf))
		}
		end := offset + int64(len(buf)) - 1

		res, err := u.files.PutChunk(ctx, session, offset, end, total, buf)
		if err != nil {
			return nil, offset, fmt.Errorf("put chunk %d-%d: %w", offset, end, err)
		}
		if res.State == domain.ChunkDone {
			return res.Object, end + 1, nil
		}

		ack := res.AckOffset
		if ack < offset || ack > end+1 {
			return nil, offset, domain.NewUpstreamError("upload", 0,
				fmt.Sprintf("acknowledged offset %d outside sent range %d-%d", ack, offset, end))
		}
		if ack == offset {
			stalled++
			if stalled >= maxStalledChunks {
				return nil, offset, domain.NewUpstreamError("upload", 0,
					fmt.Sprintf("no progress past offset %d", offset))
			}
		} else {
			stalled = 0
		}

		consumed := int(ack - offset)
		buf = buf[:copy(buf, buf[consumed:])]
		offset = ack
	}

	// The stream ended on a chunk boundary without a completion response:
	// declare the now-known total with an empty finalize request.
	res, err := u.files.PutChunk(ctx, session, offset, offset-1, offset, nil)
	if err != nil {
		return nil, offset, fmt.Errorf("finalize upload at %d: %w", offset, err)
	}
	if res.State != domain.ChunkDone {
		return nil, offset, domain.NewUpstreamError("upload", 0,
			fmt.Sprintf("finalize at %d not acknowledged as complete", offset))
	}
	return res.Object, offset, nil
}
