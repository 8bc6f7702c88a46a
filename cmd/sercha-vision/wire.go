package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/metrics"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-vision/internal/connectors/google"
	"github.com/custodia-labs/sercha-vision/internal/connectors/google/drive"
	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-vision/internal/core/services"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// stores groups the persistence handles chosen by metadata.backend.
type stores struct {
	metadata  driven.MetadataStore
	scheduler driven.SchedulerStore
	local     *sqlite.Store
	close     func() error
}

// bootstrap loads configuration and wires every service.
func bootstrap(ctx context.Context, opts cli.BootstrapOptions) (*cli.Services, error) {
	path := opts.ConfigPath
	if path == "" {
		p, err := file.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := file.Load(path)
	if err != nil {
		return nil, err
	}
	if !opts.LogOverridden {
		logger.SetFormat(cfg.Log.Format)
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			return nil, domain.ConfigurationError("log.level", err.Error())
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.RequireDrive(); err != nil {
		return nil, err
	}

	st, err := openStores(cfg.Metadata)
	if err != nil {
		return nil, err
	}

	files, err := drive.Open(ctx, drive.Options{
		Credentials: google.Credentials{
			ClientID:     cfg.Drive.ClientID,
			ClientSecret: cfg.Drive.ClientSecret,
			RefreshToken: cfg.Drive.RefreshToken,
			AccessToken:  cfg.Drive.AccessToken,
		},
		Endpoint:          cfg.Drive.Endpoint,
		RequestsPerSecond: cfg.Drive.RequestsPerSecond,
		Config:            drive.DefaultConfig(),
	})
	if err != nil {
		_ = st.close()
		return nil, err
	}

	var (
		embedder driven.EmbeddingService
		index    driven.VectorIndex
		aiResult *ai.InitResult
	)
	if cfg.Embedding.BaseURL == "" {
		logger.Warn("Embedding service not configured; reindex, upsert and query are unavailable")
	} else {
		aiResult, err = ai.Init(ctx, cfg, st.local)
		switch {
		case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrVectorIndexUnavailable):
			logger.Warn("%v; reindex, upsert and query are unavailable", err)
		case err != nil:
			_ = st.close()
			return nil, err
		default:
			for _, w := range aiResult.Warnings {
				logger.Warn("%s", w)
			}
			embedder = aiResult.EmbeddingService
			index = aiResult.VectorIndex
		}
	}

	recorder := metrics.NewRecorder()

	signatures := services.NewSignatureStore(st.metadata)
	registry := services.NewFolderRegistry(st.metadata, files, cfg.Drive.RootFolderID)
	detector := services.NewChangeDetector(files, embedder, index, signatures, cfg.Drive.CuratedFolder)
	reindex := services.NewReindexService(st.metadata, files, registry, detector, recorder, cfg.Drive.RootFolderID)
	if st.scheduler != nil {
		reindex.SetHistory(st.scheduler)
	}
	indexSvc := services.NewIndexService(files, embedder, index, signatures, detector)
	search := services.NewSearchService(files, embedder, index, recorder)

	uploader, err := services.NewUploader(files, recorder, cfg.Upload.ChunkSize)
	if err != nil {
		closeAll(aiResult, st)
		return nil, err
	}

	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		closeAll(aiResult, st)
		return nil, err
	}
	sched := services.NewScheduler(schedCfg, st.scheduler, reindex)

	parent := cfg.Upload.ParentID
	if parent == "" {
		parent = cfg.Drive.RootFolderID
	}

	return &cli.Services{
		Reindex:        reindex,
		Index:          indexSvc,
		Search:         search,
		Upload:         uploader,
		Scheduler:      sched,
		Metrics:        recorder.Handler(),
		ServerAddr:     cfg.Server.Addr,
		UploadParentID: parent,
		Close:          func() { closeAll(aiResult, st) },
	}, nil
}

func openStores(cfg file.MetadataConfig) (*stores, error) {
	switch cfg.Backend {
	case file.MetadataSQLite:
		st, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return &stores{
			metadata:  st.MetadataStore(),
			scheduler: st.SchedulerStore(),
			local:     st,
			close:     st.Close,
		}, nil

	case file.MetadataBolt:
		st, err := bolt.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening bolt store: %w", err)
		}
		return &stores{metadata: st, close: st.Close}, nil

	case file.MetadataMemory:
		st := memory.NewMetadataStore()
		return &stores{metadata: st, close: st.Close}, nil

	default:
		return nil, domain.ConfigurationError("metadata.backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}

func closeAll(aiResult *ai.InitResult, st *stores) {
	if aiResult != nil {
		aiResult.Close()
	}
	if err := st.close(); err != nil {
		logger.Warn("Closing store: %v", err)
	}
}
