package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SERCHA_VISION_"

// DefaultDir returns ~/.sercha-vision.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sercha-vision"), nil
}

// DefaultPath returns ~/.sercha-vision/config.toml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load builds the configuration from defaults, the TOML file at path and
// environment overrides, in that order. A .env file in the working directory
// is loaded into the environment first. A missing config file is not an error.
// An empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigurationError(path, err.Error())
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if cfg.Metadata.DataDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.Metadata.DataDir = filepath.Join(dir, "data")
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

type lookupFunc func(key string) (string, bool)

// applyEnv overlays SERCHA_VISION_* variables onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"DRIVE_ROOT_FOLDER_ID": &cfg.Drive.RootFolderID,
		"DRIVE_CURATED_FOLDER": &cfg.Drive.CuratedFolder,
		"DRIVE_CLIENT_ID":      &cfg.Drive.ClientID,
		"DRIVE_CLIENT_SECRET":  &cfg.Drive.ClientSecret,
		"DRIVE_REFRESH_TOKEN":  &cfg.Drive.RefreshToken,
		"DRIVE_ACCESS_TOKEN":   &cfg.Drive.AccessToken,
		"DRIVE_ENDPOINT":       &cfg.Drive.Endpoint,
		"EMBEDDING_BASE_URL":   &cfg.Embedding.BaseURL,
		"EMBEDDING_API_KEY":    &cfg.Embedding.APIKey,
		"EMBEDDING_MODEL":      &cfg.Embedding.Model,
		"EMBEDDING_TIMEOUT":    &cfg.Embedding.Timeout,
		"VECTOR_BACKEND":       &cfg.Vector.Backend,
		"VECTOR_ACCOUNT_ID":    &cfg.Vector.AccountID,
		"VECTOR_INDEX_NAME":    &cfg.Vector.IndexName,
		"VECTOR_API_TOKEN":     &cfg.Vector.APIToken,
		"VECTOR_BASE_URL":      &cfg.Vector.BaseURL,
		"METADATA_BACKEND":     &cfg.Metadata.Backend,
		"METADATA_DATA_DIR":    &cfg.Metadata.DataDir,
		"REINDEX_INTERVAL":     &cfg.Reindex.Interval,
		"UPLOAD_PARENT_ID":     &cfg.Upload.ParentID,
		"SERVER_ADDR":          &cfg.Server.Addr,
		"LOG_LEVEL":            &cfg.Log.Level,
		"LOG_FORMAT":           &cfg.Log.Format,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"EMBEDDING_DIMENSIONS":  &cfg.Embedding.Dimensions,
		"REINDEX_LIMIT_FOLDERS": &cfg.Reindex.LimitFolders,
		"REINDEX_MAX_CHANGED":   &cfg.Reindex.MaxChanged,
		"UPLOAD_CHUNK_SIZE":     &cfg.Upload.ChunkSize,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigurationError(EnvPrefix+name, "not an integer")
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "DRIVE_REQUESTS_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.ConfigurationError(EnvPrefix+"DRIVE_REQUESTS_PER_SECOND", "not a number")
		}
		cfg.Drive.RequestsPerSecond = f
	}
	if v, ok := lookup(EnvPrefix + "REINDEX_SCHEDULER_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.ConfigurationError(EnvPrefix+"REINDEX_SCHEDULER_ENABLED", "not a boolean")
		}
		cfg.Reindex.SchedulerEnabled = b
	}
	return nil
}
