package drive

// DefaultUploadURL is the Drive v3 media upload endpoint.
const DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3/files"

// Config holds Drive store configuration.
type Config struct {
	// PageSize is the page size for list requests.
	PageSize int64

	// UploadURL overrides the resumable upload endpoint.
	UploadURL string

	// MaxDownloadSize caps FetchBytes. Larger objects are rejected.
	MaxDownloadSize int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:        100,
		UploadURL:       DefaultUploadURL,
		MaxDownloadSize: 64 << 20,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.UploadURL == "" {
		c.UploadURL = def.UploadURL
	}
	if c.MaxDownloadSize <= 0 {
		c.MaxDownloadSize = def.MaxDownloadSize
	}
	return c
}
