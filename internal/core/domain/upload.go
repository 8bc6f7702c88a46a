package domain

// UnknownSize marks an upload whose total length is not known upfront.
const UnknownSize int64 = -1

// UploadMetadata describes an object about to be uploaded.
type UploadMetadata struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type,omitempty"`
	ParentID string `json:"parent_id,omitempty"`

	// Size is the declared total length, or UnknownSize.
	Size int64 `json:"size"`
}

// UploadSession is the remote-issued handle for a resumable upload.
type UploadSession struct {
	URI string
}

// ChunkState is the outcome of one chunk request.
type ChunkState int

const (
	// ChunkPartial means the remote durably holds bytes [0, AckOffset).
	ChunkPartial ChunkState = iota
	// ChunkDone means the transfer is complete and Object is populated.
	ChunkDone
)

// ChunkResult is the remote response to a chunk request.
type ChunkResult struct {
	State     ChunkState
	AckOffset int64
	Object    *Object
}
