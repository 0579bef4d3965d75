package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/port"
)

const reconcileJobTimeout = time.Minute

// ReconcileWorker settles reservations that a run left behind: committed
// records that never reached history, and reservations whose run died.
type ReconcileWorker struct {
	ledger  port.CreditLedger
	history port.AnalysisRepository
	cfg     config.ReconcileConfig
	now     func() time.Time

	wg       sync.WaitGroup
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewReconcileWorker creates a new ReconcileWorker.
func NewReconcileWorker(ledger port.CreditLedger, history port.AnalysisRepository, cfg config.ReconcileConfig) *ReconcileWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &ReconcileWorker{
		ledger:   ledger,
		history:  history,
		cfg:      cfg,
		now:      time.Now,
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// SetClock overrides the worker's clock.
func (w *ReconcileWorker) SetClock(now func() time.Time) {
	w.now = now
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight jobs have finished.
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Info().
		Dur("poll", w.cfg.PollInterval).
		Int("concurrency", w.cfg.Concurrency).
		Dur("stale_ttl", w.cfg.StaleReservationTTL).
		Msg("reconcileWorker: started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconcileWorker: shutting down, waiting for in-flight jobs...")
			w.wg.Wait()
			log.Info().Msg("reconcileWorker: shutdown complete")
			return
		case <-ticker.C:
			w.dispatch(ctx, sem)
		}
	}
}

// RunOnce performs a single poll and waits for the jobs it started.
func (w *ReconcileWorker) RunOnce(ctx context.Context) {
	w.dispatch(ctx, make(chan struct{}, w.cfg.Concurrency))
	w.wg.Wait()
}

func (w *ReconcileWorker) dispatch(ctx context.Context, sem chan struct{}) {
	now := w.now()

	committed, err := w.ledger.ListCommitted(ctx, now.Add(-w.cfg.CommitGrace), w.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("reconcileWorker: ListCommitted failed")
		}
		return
	}
	for i := range committed {
		w.spawn(sem, committed[i], w.repersist)
	}

	stale, err := w.ledger.ListStale(ctx, now.Add(-w.cfg.StaleReservationTTL), w.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("reconcileWorker: ListStale failed")
		}
		return
	}
	for i := range stale {
		w.spawn(sem, stale[i], w.releaseStale)
	}
}

func (w *ReconcileWorker) spawn(sem chan struct{}, res domain.Reservation, job func(context.Context, *domain.Reservation)) {
	w.mu.Lock()
	if _, busy := w.inFlight[res.ID]; busy {
		w.mu.Unlock()
		return
	}
	w.inFlight[res.ID] = struct{}{}
	w.mu.Unlock()

	sem <- struct{}{} // acquire
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-sem }() // release
		defer func() {
			w.mu.Lock()
			delete(w.inFlight, res.ID)
			w.mu.Unlock()
		}()

		// Fresh context so a shutdown never interrupts a half-done job.
		jobCtx, cancel := context.WithTimeout(context.Background(), reconcileJobTimeout)
		defer cancel()
		job(jobCtx, &res)
	}()
}

func (w *ReconcileWorker) repersist(ctx context.Context, res *domain.Reservation) {
	logger := log.With().Str("reservation_id", res.ID.String()).Str("user_id", res.UserID).Logger()
	if res.Record == nil {
		logger.Error().Msg("reconcileWorker: committed reservation has no record payload")
		return
	}
	if err := w.history.Create(ctx, res.Record); err != nil {
		logger.Warn().Err(err).Str("analysis_id", res.Record.ID.String()).Msg("reconcileWorker: re-persist failed, will retry")
		return
	}
	if err := w.ledger.MarkPersisted(ctx, res.ID); err != nil {
		logger.Warn().Err(err).Msg("reconcileWorker: mark persisted failed, will retry")
		return
	}
	logger.Info().Str("analysis_id", res.Record.ID.String()).Msg("reconcileWorker: recovered committed analysis")
}

func (w *ReconcileWorker) releaseStale(ctx context.Context, res *domain.Reservation) {
	logger := log.With().Str("reservation_id", res.ID.String()).Str("user_id", res.UserID).Logger()
	if err := w.ledger.Release(ctx, res.ID); err != nil {
		logger.Warn().Err(err).Msg("reconcileWorker: release of stale reservation failed")
		return
	}
	logger.Info().Time("reserved_at", res.CreatedAt).Msg("reconcileWorker: released stale reservation")
}
