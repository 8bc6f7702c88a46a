package file

import (
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// Metadata backends.
const (
	MetadataSQLite = "sqlite"
	MetadataBolt   = "bolt"
	MetadataMemory = "memory"
)

// Config is the full process configuration.
type Config struct {
	Drive     DriveConfig     `toml:"drive"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Vector    VectorConfig    `toml:"vector"`
	Metadata  MetadataConfig  `toml:"metadata"`
	Reindex   ReindexConfig   `toml:"reindex"`
	Upload    UploadConfig    `toml:"upload"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
}

// DriveConfig identifies the collection and how to authenticate against it.
type DriveConfig struct {
	// RootFolderID is the folder whose children are the entity folders.
	RootFolderID string `toml:"root_folder_id"`

	// CuratedFolder names the optional per-entity sub-folder. Empty disables it.
	CuratedFolder string `toml:"curated_folder"`

	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`

	// AccessToken is used as-is when no refresh token is configured.
	AccessToken string `toml:"access_token"`

	// RequestsPerSecond paces every Drive request.
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// Endpoint overrides the Drive API base URL.
	Endpoint string `toml:"endpoint,omitempty"`
}

// HasCredentials reports whether some form of Drive credential is configured.
func (d DriveConfig) HasCredentials() bool {
	if d.AccessToken != "" {
		return true
	}
	return d.RefreshToken != "" && d.ClientID != "" && d.ClientSecret != ""
}

// EmbeddingConfig configures the embedding service.
type EmbeddingConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	Timeout    string `toml:"timeout"`
}

// TimeoutDuration parses Timeout, returning zero when unset.
func (e EmbeddingConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration("embedding.timeout", e.Timeout)
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	// Backend is local, vectorize or memory. Empty probes the configuration.
	Backend   string `toml:"backend"`
	AccountID string `toml:"account_id"`
	IndexName string `toml:"index_name"`
	APIToken  string `toml:"api_token"`
	BaseURL   string `toml:"base_url,omitempty"`
}

// RemoteConfigured reports whether the REST backend has its identifiers.
func (v VectorConfig) RemoteConfigured() bool {
	return v.AccountID != "" && v.IndexName != "" && v.APIToken != ""
}

// MetadataConfig selects the metadata store.
type MetadataConfig struct {
	Backend string `toml:"backend"`
	DataDir string `toml:"data_dir"`
}

// ReindexConfig holds the budgets of scheduled passes.
type ReindexConfig struct {
	SchedulerEnabled bool   `toml:"scheduler_enabled"`
	Interval         string `toml:"interval"`
	LimitFolders     int    `toml:"limit_folders"`
	MaxChanged       int    `toml:"max_changed"`
}

// UploadConfig configures the resumable upload pipeline.
type UploadConfig struct {
	ChunkSize int    `toml:"chunk_size"`
	ParentID  string `toml:"parent_id"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a configuration with every optional setting filled in.
func Default() *Config {
	sched := domain.DefaultSchedulerConfig()
	return &Config{
		Drive: DriveConfig{
			CuratedFolder:     "curated",
			RequestsPerSecond: 10,
		},
		Embedding: EmbeddingConfig{Timeout: "60s"},
		Metadata:  MetadataConfig{Backend: MetadataSQLite},
		Reindex: ReindexConfig{
			SchedulerEnabled: sched.Enabled,
			Interval:         sched.Reindex.Interval.String(),
			LimitFolders:     sched.Reindex.LimitFolders,
			MaxChanged:       sched.Reindex.MaxChanged,
		},
		Upload: UploadConfig{ChunkSize: 8 << 20},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "warn", Format: "text"},
	}
}

// Validate checks settings that do not depend on which commands run.
// Drive credentials are checked by RequireDrive at the point of use.
func (c *Config) Validate() error {
	switch c.Metadata.Backend {
	case MetadataSQLite, MetadataBolt, MetadataMemory:
	default:
		return domain.ConfigurationError("metadata.backend", fmt.Sprintf("unknown backend %q", c.Metadata.Backend))
	}
	if c.Reindex.LimitFolders <= 0 {
		return domain.ConfigurationError("reindex.limit_folders", "must be positive")
	}
	if c.Reindex.MaxChanged <= 0 {
		return domain.ConfigurationError("reindex.max_changed", "must be positive")
	}
	if _, err := c.Reindex.IntervalDuration(); err != nil {
		return err
	}
	if _, err := c.Embedding.TimeoutDuration(); err != nil {
		return err
	}
	if c.Drive.RequestsPerSecond < 0 {
		return domain.ConfigurationError("drive.requests_per_second", "must not be negative")
	}
	return nil
}

// RequireDrive checks the settings needed to reach the collection.
func (c *Config) RequireDrive() error {
	if c.Drive.RootFolderID == "" {
		return domain.ConfigurationError("drive.root_folder_id", "required")
	}
	if !c.Drive.HasCredentials() {
		return domain.ConfigurationError("drive.refresh_token", "a refresh token with client id and secret, or an access token, is required")
	}
	return nil
}

// IntervalDuration parses the scheduler interval.
func (r ReindexConfig) IntervalDuration() (time.Duration, error) {
	d, err := parseDuration("reindex.interval", r.Interval)
	if err != nil {
		return 0, err
	}
	if d < time.Minute {
		return 0, domain.ConfigurationError("reindex.interval", "must be at least 1m")
	}
	return d, nil
}

// SchedulerConfig converts the reindex settings for the background scheduler.
func (c *Config) SchedulerConfig() (domain.SchedulerConfig, error) {
	interval, err := c.Reindex.IntervalDuration()
	if err != nil {
		return domain.SchedulerConfig{}, err
	}
	return domain.SchedulerConfig{
		Enabled: c.Reindex.SchedulerEnabled,
		Reindex: domain.ReindexTaskConfig{
			Enabled:      c.Reindex.SchedulerEnabled,
			Interval:     interval,
			LimitFolders: c.Reindex.LimitFolders,
			MaxChanged:   c.Reindex.MaxChanged,
		},
	}, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, domain.ConfigurationError(key, err.Error())
	}
	return d, nil
}
