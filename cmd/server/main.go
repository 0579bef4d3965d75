package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"clinsight/internal/admission"
	"clinsight/internal/capture"
	"clinsight/internal/config"
	"clinsight/internal/handler"
	"clinsight/internal/llm"
	_ "clinsight/internal/llm/anthropic"
	_ "clinsight/internal/llm/gemini"
	_ "clinsight/internal/llm/openai"
	_ "clinsight/internal/llm/perplexity"
	"clinsight/internal/logger"
	"clinsight/internal/port"
	"clinsight/internal/repository/memory"
	"clinsight/internal/repository/postgres"
	"clinsight/internal/router"
	"clinsight/internal/service"
	miniostorage "clinsight/internal/storage/minio"
	s3storage "clinsight/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Log, cfg.Server.Environment)
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Pinger{}

	// Initialize stores
	var (
		ledger  port.CreditLedger
		history port.AnalysisRepository
	)
	switch cfg.Store.Driver {
	case "memory":
		log.Warn().Msg("using in-memory store; credits and history are lost on restart")
		ledger = memory.NewLedger()
		history = memory.NewAnalysisRepo()
	default:
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		ledger = postgres.NewLedgerRepo(db)
		history = postgres.NewAnalysisRepo(db)
		checks["db"] = db.PingContext
	}

	// Initialize object storage
	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return err
	}

	// Initialize admission control
	var gate port.Admission = admission.NewMemory(cfg.Admission.MaxInFlightPerUser)
	if cfg.Redis.Enabled {
		rdb, err := admission.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		gate = admission.NewRedis(rdb, cfg.Admission.MaxInFlightPerUser, cfg.Admission.LeaseTTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Initialize model adapters
	adapters, err := newAdapters(cfg)
	if err != nil {
		return err
	}

	// Initialize services
	normalizer := service.NewNormalizer(adapters.transcriber, adapters.vision, cfg.Pipeline)
	analysisSvc := service.NewAnalysisService(service.AnalysisDeps{
		Normalizer:    normalizer,
		Ledger:        ledger,
		History:       history,
		Researcher:    adapters.researcher,
		Reasoner:      adapters.reasoner,
		Storage:       storage,
		Admission:     gate,
		Pipeline:      cfg.Pipeline,
		StartingGrant: cfg.Credits.StartingGrant,
	})
	historySvc := service.NewHistoryService(history, storage)
	creditsSvc := service.NewCreditsService(ledger, cfg.Credits.StartingGrant)
	recordingSvc := service.NewRecordingService(cfg.Recording, cfg.Pipeline.MaxAudioBytes, func() capture.Sink {
		return capture.NewBufferSink()
	})
	tokenSvc := service.NewTokenService(cfg.JWT)

	// Initialize handlers
	analysisH := handler.NewAnalysisHandler(analysisSvc, historySvc, recordingSvc, handler.NewSubmitLimits(cfg.Pipeline))
	creditsH := handler.NewCreditsHandler(creditsSvc)
	recordingH := handler.NewRecordingHandler(recordingSvc)
	healthH := handler.NewHealthHandler(checks)

	// Setup router
	r := router.Setup(tokenSvc, creditsSvc, cfg.CORS.AllowedOrigins, analysisH, creditsH, recordingH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers stop with ctx and are awaited before exit.
	var workers sync.WaitGroup
	reconciler := service.NewReconcileWorker(ledger, history, cfg.Reconcile)
	workers.Add(2)
	go func() {
		defer workers.Done()
		reconciler.Start(ctx)
	}()
	go func() {
		defer workers.Done()
		recordingSvc.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Port).Str("store", cfg.Store.Driver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			stop()
			workers.Wait()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Dur("grace", cfg.Server.ShutdownGrace).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := analysisSvc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("in-flight analyses did not finish; reconciliation will settle them")
	}
	workers.Wait()
	log.Info().Msg("shutdown complete")
	return nil
}

func newObjectStorage(ctx context.Context, cfg *config.Config) (port.ObjectStorage, error) {
	switch cfg.Storage.Provider {
	case "s3":
		store, err := s3storage.NewStore(ctx, &cfg.S3, cfg.Storage.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return store, nil
	case "minio":
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := miniostorage.NewStore(initCtx, &cfg.Minio, cfg.Storage.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MinIO storage: %w", err)
		}
		return store, nil
	case "none", "":
		log.Warn().Msg("object storage disabled; attached images will not be kept")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

type modelAdapters struct {
	reasoner    port.Reasoner
	researcher  port.Researcher
	transcriber port.Transcriber
	vision      port.VisionDescriber
}

// newAdapters builds each role from its registry. Research, transcription
// and vision are optional; reasoning is required.
func newAdapters(cfg *config.Config) (*modelAdapters, error) {
	gate := llm.NewGate(cfg.LLM.MaxConcurrent)
	out := &modelAdapters{}

	reasoner, err := llm.Reasoners.New(&cfg.LLM.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reasoning provider: %w", err)
	}
	out.reasoner = gate.Reasoner(reasoner)

	if cfg.LLM.Research.Configured() {
		researcher, err := llm.Researchers.New(&cfg.LLM.Research)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize research provider: %w", err)
		}
		out.researcher = gate.Researcher(researcher)
	}

	if cfg.LLM.Transcription.Configured() {
		out.transcriber, err = llm.Transcribers.New(&cfg.LLM.Transcription)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize transcription provider: %w", err)
		}
	}

	var describers []port.VisionDescriber
	var names []string
	for _, pc := range []*config.ProviderConfig{&cfg.LLM.Vision, &cfg.LLM.VisionFallback} {
		if !pc.Configured() {
			continue
		}
		d, err := llm.Describers.New(pc)
		if err != nil {
			log.Warn().Err(err).Str("provider", pc.Provider).Msg("vision provider unavailable, skipping")
			continue
		}
		describers = append(describers, d)
		names = append(names, pc.Provider)
	}
	switch len(describers) {
	case 0:
	case 1:
		out.vision = describers[0]
	default:
		out.vision = llm.NewFallbackDescriber(describers, names)
	}

	log.Info().
		Str("reasoning", cfg.LLM.Reasoning.Provider+"/"+cfg.LLM.Reasoning.Model).
		Str("research", cfg.LLM.Research.Provider).
		Str("transcription", cfg.LLM.Transcription.Provider).
		Strs("vision", names).
		Msg("model adapters ready")

	if cfg.LLM.Reasoning.APIKey == "" {
		log.Warn().Msg("reasoning provider has no API key; real-pipeline runs will fail")
	}
	return out, nil
}
