package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/artifact"
	"github.com/ndewijer/fci-sync/internal/cafci"
	"github.com/ndewijer/fci-sync/internal/events"
	"github.com/ndewijer/fci-sync/internal/metrics"
	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/reconcile"
	"github.com/ndewijer/fci-sync/internal/repository"
)

// Defaults for SyncOptions.
const (
	DefaultRequestDelay     = 2000 * time.Millisecond
	DefaultRateLimitBackoff = 60 * time.Second
	DefaultCheckpointEvery  = 1
	DefaultStatusEvery      = 10
	DefaultLockStaleAfter   = 24 * time.Hour
)

// SyncOptions tunes the batch runner.
type SyncOptions struct {
	// RequestDelay is slept after every task except the last.
	RequestDelay time.Duration
	// RateLimitBackoff is slept before retrying a task that hit HTTP 429.
	RateLimitBackoff time.Duration
	Policy           reconcile.Policy
	// CheckpointEvery persists the checkpoint every N tasks. The final task
	// is always persisted.
	CheckpointEvery int
	StatusEvery     int
	LockStaleAfter  time.Duration
}

// DefaultSyncOptions returns the production settings.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		RequestDelay:     DefaultRequestDelay,
		RateLimitBackoff: DefaultRateLimitBackoff,
		Policy:           reconcile.DefaultPolicy(),
		CheckpointEvery:  DefaultCheckpointEvery,
		StatusEvery:      DefaultStatusEvery,
		LockStaleAfter:   DefaultLockStaleAfter,
	}
}

// SyncService is the checkpointed batch runner. It walks the flattened task
// list one class at a time: fetch detail, reconcile, write, checkpoint.
type SyncService struct {
	master    *MasterService
	client    cafci.API
	store     repository.FundClassStore
	artifacts *artifact.Store
	status    *StatusService
	publisher events.Publisher
	metrics   *metrics.Sync
	opts      SyncOptions
	log       zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	runID    string
	progress model.SyncProgress
	last     *model.SyncReport
}

// NewSyncService creates a new SyncService. publisher and m may be nil.
func NewSyncService(
	client cafci.API,
	store repository.FundClassStore,
	artifacts *artifact.Store,
	publisher events.Publisher,
	m *metrics.Sync,
	opts SyncOptions,
	logger zerolog.Logger,
) *SyncService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if opts.StatusEvery <= 0 {
		opts.StatusEvery = DefaultStatusEvery
	}
	return &SyncService{
		master:    NewMasterService(client, store, artifacts, logger),
		client:    client,
		store:     store,
		artifacts: artifacts,
		status:    NewStatusService(store, artifacts, logger),
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		log:       logger.With().Str("component", "sync").Logger(),
		now:       time.Now,
		sleep:     sleepContext,
		progress:  model.SyncProgress{State: model.StateIdle},
	}
}

// WithClock replaces the clock used for staleness and timestamps.
func (s *SyncService) WithClock(now func() time.Time) *SyncService {
	s.now = now
	s.status.now = now
	return s
}

// WithSleeper replaces the wait used for the inter-request delay and the
// rate-limit backoff.
func (s *SyncService) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) *SyncService {
	s.sleep = sleep
	return s
}

// Status returns the status service sharing this runner's store.
func (s *SyncService) Status() *StatusService {
	return s.status
}

// Progress returns a snapshot of the current or last run's progress.
func (s *SyncService) Progress() model.SyncProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// LastReport returns the report of the last finished run, or nil.
func (s *SyncService) LastReport() *model.SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Running reports whether a run is in progress in this process.
func (s *SyncService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID != ""
}

// Run performs one full sync: lock, fetch the master list, then process the
// task list from the persisted checkpoint.
//
// Returns:
//   - The run report, also when the run was paused or failed.
//   - ErrSyncInProgress when another run holds the lock.
//   - ctx.Err() when the run was paused by cancellation.
//   - An error wrapping ErrStorageFailure when a write could not commit.
func (s *SyncService) Run(ctx context.Context) (*model.SyncReport, error) {
	runID := uuid.NewString()
	if err := s.begin(runID); err != nil {
		return nil, err
	}
	defer s.end()
	return s.run(ctx, runID)
}

// Start begins a full sync in the background and returns its run ID.
// ctx bounds the run, so it should outlive the caller's request.
func (s *SyncService) Start(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	if err := s.begin(runID); err != nil {
		return "", err
	}

	go func() {
		defer s.end()
		if _, err := s.run(ctx, runID); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Str("run_id", runID).Msg("Background sync ended with error")
		}
	}()
	return runID, nil
}

func (s *SyncService) run(ctx context.Context, runID string) (*model.SyncReport, error) {
	lock, err := s.artifacts.AcquireLock(runID, s.opts.LockStaleAfter)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to release sync lock")
		}
	}()

	report := s.newReport(runID)
	s.log.Info().Str("run_id", runID).Msg("Sync started")

	tasks, err := s.master.Fetch(ctx)
	if err != nil {
		return s.fail(ctx, report, err)
	}

	return s.process(ctx, report, tasks)
}

// RunTasks processes an already flattened task list. The caller must ensure
// no other run writes to the same store.
func (s *SyncService) RunTasks(ctx context.Context, tasks []model.FlattenedFundClass) (*model.SyncReport, error) {
	runID := uuid.NewString()
	if err := s.begin(runID); err != nil {
		return nil, err
	}
	defer s.end()
	return s.process(ctx, s.newReport(runID), tasks)
}

func (s *SyncService) begin(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != "" {
		return fmt.Errorf("%w: run %s is active", apperrors.ErrSyncInProgress, s.runID)
	}
	s.runID = runID
	return nil
}

func (s *SyncService) end() {
	s.mu.Lock()
	s.runID = ""
	s.mu.Unlock()
}

func (s *SyncService) newReport(runID string) *model.SyncReport {
	return &model.SyncReport{
		RunID:     runID,
		State:     model.StateRunning,
		Actions:   make(map[model.SyncAction]int),
		StartedAt: s.now().UTC(),
	}
}

func (s *SyncService) process(ctx context.Context, report *model.SyncReport, tasks []model.FlattenedFundClass) (*model.SyncReport, error) {
	total := len(tasks)
	report.Total = total
	if s.metrics != nil {
		s.metrics.TaskListSize.Set(float64(total))
	}

	// An unreadable checkpoint fails the run; the operator clears it with sync --reset.
	cp, err := s.artifacts.LoadCheckpoint()
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("failed to load checkpoint: %w", err))
	}
	start := cp.ProcessedCount
	if start < 0 {
		start = 0
	}
	report.ResumedAt = start
	report.Processed = start

	if start >= total {
		report.Processed = total
		s.log.Info().Int("checkpoint", start).Int("total", total).Msg("Nothing to do, task list already processed")
		if err := s.artifacts.ClearCheckpoint(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear checkpoint")
		}
		return s.complete(ctx, report)
	}
	if start > 0 {
		s.log.Info().Int("checkpoint", start).Int("total", total).Msg("Resuming from checkpoint")
	}
	s.setProgress(report)

	for i := start; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return s.pause(ctx, report, i, err)
		}

		action, err := s.processTask(ctx, report, i, tasks[i])
		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, apperrors.ErrStorageFailure) {
				return s.pause(ctx, report, i, ctx.Err())
			}
			return s.fail(ctx, report, err)
		}

		report.Count(action)
		report.Processed = i + 1
		if s.metrics != nil {
			s.metrics.Tasks.WithLabelValues(string(action)).Inc()
			s.metrics.Progress.Set(float64(i+1) / float64(total))
		}
		s.setProgress(report)

		last := i == total-1
		if last || (i+1-start)%s.opts.CheckpointEvery == 0 {
			if err := s.artifacts.SaveCheckpoint(model.SyncCheckpoint{ProcessedCount: i + 1}); err != nil {
				s.log.Warn().Err(err).Int("processed", i+1).Msg("Failed to save checkpoint")
			}
		}
		if !last && (i+1-start)%s.opts.StatusEvery == 0 {
			s.refreshStatus(ctx, report)
		}

		if !last && s.opts.RequestDelay > 0 {
			if err := s.sleep(ctx, s.opts.RequestDelay); err != nil {
				return s.pause(ctx, report, i+1, err)
			}
		}
	}

	if err := s.artifacts.ClearCheckpoint(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear checkpoint")
	}
	return s.complete(ctx, report)
}

// processTask runs fetch, reconcile and write for one class. A returned error
// stops the run; per-task upstream failures are recorded as ActionFailed.
func (s *SyncService) processTask(ctx context.Context, report *model.SyncReport, idx int, task model.FlattenedFundClass) (model.SyncAction, error) {
	fundID, classID := task.Class.FundID, task.Class.ID
	log := s.log.With().
		Int("task", idx+1).
		Int("total", report.Total).
		Str("fund_id", fundID).
		Str("class_id", classID).
		Logger()

	detail, err := s.fetchDetail(ctx, fundID, classID, log)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		if s.metrics != nil {
			s.metrics.FetchErrors.WithLabelValues(cafci.ErrorKind(err)).Inc()
		}
		if errors.Is(err, apperrors.ErrMalformedResponse) {
			log.Warn().Err(err).Str("action", string(model.ActionSkip)).Msg("Malformed detail, skipping")
			return model.ActionSkip, nil
		}
		log.Warn().Err(err).Str("action", string(model.ActionFailed)).Msg("Detail fetch failed, continuing")
		report.Failures = append(report.Failures, model.SyncTaskFailure{
			Index:   idx,
			FundID:  fundID,
			ClassID: classID,
			Error:   err.Error(),
		})
		return model.ActionFailed, nil
	}

	// Writes finish even when cancellation arrives mid-task.
	wctx := context.WithoutCancel(ctx)

	local, err := s.store.GetFundClass(wctx, classID)
	if err != nil {
		return "", fmt.Errorf("%w: failed to load class %s: %w", apperrors.ErrStorageFailure, classID, err)
	}

	now := s.now()
	decision := reconcile.Decide(local, detail, now, s.opts.Policy)
	if decision.Anomaly {
		log.Warn().
			Str("local_composition_date", local.Class.CompositionDate).
			Str("remote_composition_date", detail.CompositionDate).
			Msg("Upstream composition date moved backwards, keeping stored row")
	}

	switch decision.Action {
	case model.ActionUpdate:
		row := task.ApplyDetail(*detail)
		row.Class.LastSync = now.UTC()
		if err := s.store.Upsert(wctx, row, detail.Composition); err != nil {
			return "", err
		}
		s.publish(wctx, report.RunID, row.Class, model.ActionUpdate, log)
	case model.ActionPrune:
		if err := s.store.Prune(wctx, classID); err != nil {
			return "", err
		}
		s.publish(wctx, report.RunID, local.Class, model.ActionPrune, log)
	}

	log.Info().
		Str("action", string(decision.Action)).
		Str("reason", decision.Reason).
		Msg("Task processed")
	return decision.Action, nil
}

// fetchDetail retries the same class for as long as upstream answers 429.
func (s *SyncService) fetchDetail(ctx context.Context, fundID, classID string, log zerolog.Logger) (*model.Detail, error) {
	for {
		started := s.now()
		detail, err := s.client.FetchDetail(ctx, fundID, classID)
		if s.metrics != nil {
			s.metrics.FetchSeconds.Observe(s.now().Sub(started).Seconds())
		}
		if !errors.Is(err, apperrors.ErrRateLimited) {
			return detail, err
		}

		if s.metrics != nil {
			s.metrics.FetchErrors.WithLabelValues(cafci.ErrorKind(err)).Inc()
		}
		log.Warn().Dur("backoff", s.opts.RateLimitBackoff).Msg("Rate limited, backing off before retrying the same class")
		if err := s.sleep(ctx, s.opts.RateLimitBackoff); err != nil {
			return nil, err
		}
	}
}

func (s *SyncService) publish(ctx context.Context, runID string, class model.FundClass, action model.SyncAction, log zerolog.Logger) {
	ev := events.ClassEvent{
		RunID:           runID,
		ClassID:         class.ID,
		FundID:          class.FundID,
		Action:          action,
		CompositionDate: class.CompositionDate,
		At:              s.now().UTC(),
	}
	if err := s.publisher.PublishClass(ctx, ev); err != nil {
		log.Warn().Err(err).Msg("Failed to publish class event")
	}
}

func (s *SyncService) complete(ctx context.Context, report *model.SyncReport) (*model.SyncReport, error) {
	report.State = model.StateCompleted
	report.FinishedAt = s.now().UTC()
	s.finish(ctx, report)

	if err := s.publisher.PublishCompleted(context.WithoutCancel(ctx), *report); err != nil {
		s.log.Warn().Err(err).Msg("Failed to publish completion event")
	}

	s.log.Info().
		Str("run_id", report.RunID).
		Int("total", report.Total).
		Int("resumed_at", report.ResumedAt).
		Int("updated", report.Actions[model.ActionUpdate]).
		Int("pruned", report.Actions[model.ActionPrune]).
		Int("skipped", report.Actions[model.ActionSkip]).
		Int("failed", report.Actions[model.ActionFailed]).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Sync completed")
	return report, nil
}

// pause persists the checkpoint at processed so the next run resumes there.
func (s *SyncService) pause(ctx context.Context, report *model.SyncReport, processed int, cause error) (*model.SyncReport, error) {
	if err := s.artifacts.SaveCheckpoint(model.SyncCheckpoint{ProcessedCount: processed}); err != nil {
		s.log.Warn().Err(err).Int("processed", processed).Msg("Failed to save checkpoint on pause")
	}
	report.Processed = processed
	report.State = model.StatePaused
	report.FinishedAt = s.now().UTC()
	s.finish(ctx, report)

	s.log.Info().Int("processed", processed).Int("total", report.Total).Msg("Sync paused")
	return report, cause
}

// fail stops the run. The checkpoint is left at the last persisted task so
// the failed task is retried on the next run.
func (s *SyncService) fail(ctx context.Context, report *model.SyncReport, cause error) (*model.SyncReport, error) {
	report.State = model.StateFailed
	report.Error = cause.Error()
	report.FinishedAt = s.now().UTC()
	s.finish(ctx, report)

	s.log.Error().Err(cause).Int("processed", report.Processed).Int("total", report.Total).Msg("Sync failed")
	return report, cause
}

func (s *SyncService) finish(ctx context.Context, report *model.SyncReport) {
	s.setProgress(report)
	s.refreshStatus(ctx, report)

	s.mu.Lock()
	r := *report
	s.last = &r
	s.mu.Unlock()
}

func (s *SyncService) setProgress(report *model.SyncReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = model.SyncProgress{
		RunID:     report.RunID,
		State:     report.State,
		Processed: report.Processed,
		Total:     report.Total,
		Message:   progressMessage(report.State, report.Processed, report.Total),
	}
}

func (s *SyncService) refreshStatus(ctx context.Context, report *model.SyncReport) {
	progress := model.SyncProgress{
		RunID:     report.RunID,
		State:     report.State,
		Processed: report.Processed,
		Total:     report.Total,
		Message:   progressMessage(report.State, report.Processed, report.Total),
	}
	if _, err := s.status.Refresh(context.WithoutCancel(ctx), &progress); err != nil {
		s.log.Warn().Err(err).Msg("Failed to refresh status artifact")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SyncJob adapts SyncService to the scheduler.
type SyncJob struct {
	sync *SyncService
}

// NewSyncJob creates a scheduler job running a full sync.
func NewSyncJob(s *SyncService) *SyncJob {
	return &SyncJob{sync: s}
}

// Name returns the job name.
func (j *SyncJob) Name() string { return "cafci-sync" }

// Run performs one sync. A run already in progress is not an error for the scheduler.
func (j *SyncJob) Run(ctx context.Context) error {
	_, err := j.sync.Run(ctx)
	if errors.Is(err, apperrors.ErrSyncInProgress) {
		j.sync.log.Info().Msg("Sync already in progress, skipping scheduled run")
		return nil
	}
	return err
}
