package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ahlev/Parlaybot/internal/platform/logging"
)

const (
	DispatchLocal  = "local"
	DispatchQStash = "qstash"

	WeeklyResetJobPath = "/v1/internal/jobs/weekly-reset"

	defaultResetInterval = 7 * 24 * time.Hour
)

// JobQueue publishes a delayed HTTP job back to this service.
type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

type noopJobQueue struct{}

func (noopJobQueue) Enqueue(_ context.Context, _ string, _ any, _ time.Duration, _ string) error {
	return nil
}

func NewNoopJobQueue() JobQueue {
	return noopJobQueue{}
}

// ResetAnnouncer tells the community that a reset happened.
type ResetAnnouncer interface {
	AnnounceReset(ctx context.Context, result ResetResult) error
}

type weeklyResetRunner interface {
	RunScheduledReset(ctx context.Context) (ResetResult, error)
	TriggerWeeklyReset(ctx context.Context, actor ResetActor) (ResetResult, error)
}

type WeeklyResetConfig struct {
	Interval time.Duration
	Dispatch string
}

type WeeklyResetJobInput struct {
	Reason     string
	DispatchID string
}

// WeeklyResetScheduler fires the weekly reset either from an in-process
// ticker or through a chain of delayed QStash jobs.
type WeeklyResetScheduler struct {
	ledger    weeklyResetRunner
	announcer ResetAnnouncer
	queue     JobQueue
	cfg       WeeklyResetConfig
	logger    *logging.Logger
	now       func() time.Time
}

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func NewWeeklyResetScheduler(
	ledger weeklyResetRunner,
	announcer ResetAnnouncer,
	queue JobQueue,
	cfg WeeklyResetConfig,
	logger *logging.Logger,
) *WeeklyResetScheduler {
	if queue == nil {
		queue = NewNoopJobQueue()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultResetInterval
	}
	if strings.TrimSpace(cfg.Dispatch) == "" {
		cfg.Dispatch = DispatchLocal
	}

	return &WeeklyResetScheduler{
		ledger:    ledger,
		announcer: announcer,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled. In local mode it ticks every interval;
// in qstash mode it only makes sure the next job is enqueued.
func (s *WeeklyResetScheduler) Run(ctx context.Context) error {
	switch s.cfg.Dispatch {
	case DispatchQStash:
		if err := s.ScheduleNext(ctx); err != nil {
			return fmt.Errorf("bootstrap weekly reset job: %w", err)
		}
		<-ctx.Done()
		return nil
	case DispatchLocal:
	default:
		return fmt.Errorf("%w: unknown weekly reset dispatch %q", ErrInvalidInput, s.cfg.Dispatch)
	}

	s.logger.Info("weekly reset ticker started", "interval", s.cfg.Interval)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("weekly reset ticker stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.WarnContext(ctx, "scheduled weekly reset failed", "error", err)
			}
		}
	}
}

// Tick performs one timer-driven reset and announces it.
func (s *WeeklyResetScheduler) Tick(ctx context.Context) (ResetResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WeeklyResetScheduler.Tick")
	defer span.End()

	result, err := s.ledger.RunScheduledReset(ctx)
	if err != nil {
		return ResetResult{}, err
	}
	s.announce(ctx, result)
	return result, nil
}

// RunJob handles a reset delivered through the internal job endpoint. The
// caller has already passed the job token gate.
func (s *WeeklyResetScheduler) RunJob(ctx context.Context, input WeeklyResetJobInput) (ResetResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WeeklyResetScheduler.RunJob")
	defer span.End()

	result, err := s.ledger.TriggerWeeklyReset(ctx, ResetActor{UserID: "internal-job", Verified: true})
	if err != nil {
		return ResetResult{}, err
	}
	s.logger.InfoContext(ctx, "weekly reset job executed",
		"reason", input.Reason,
		"dispatch_id", input.DispatchID,
		"cleared", result.Cleared,
	)
	s.announce(ctx, result)

	if s.cfg.Dispatch == DispatchQStash {
		// A job may be delivered slightly before its boundary, so the next
		// one is computed from half an interval ahead.
		now := s.now().UTC()
		if err := s.scheduleAt(ctx, now, NextResetAt(now.Add(s.cfg.Interval/2), s.cfg.Interval)); err != nil {
			s.logger.WarnContext(ctx, "enqueue next weekly reset failed", "error", err)
		}
	}
	return result, nil
}

// ScheduleNext enqueues the reset for the next interval boundary. The
// deduplication id is derived from that boundary so restarts do not stack
// duplicate jobs.
func (s *WeeklyResetScheduler) ScheduleNext(ctx context.Context) error {
	now := s.now().UTC()
	return s.scheduleAt(ctx, now, NextResetAt(now, s.cfg.Interval))
}

func (s *WeeklyResetScheduler) scheduleAt(ctx context.Context, now, next time.Time) error {
	dedupID := dedupKey("weekly-reset", next)

	payload := map[string]any{
		"reason":      "scheduled",
		"dispatch_id": dedupID,
	}
	if err := s.queue.Enqueue(ctx, WeeklyResetJobPath, payload, next.Sub(now), dedupID); err != nil {
		return fmt.Errorf("%w: enqueue weekly reset: %w", ErrDependencyUnavailable, err)
	}

	s.logger.InfoContext(ctx, "weekly reset job enqueued", "run_at", next, "dispatch_id", dedupID)
	return nil
}

func (s *WeeklyResetScheduler) announce(ctx context.Context, result ResetResult) {
	if s.announcer == nil {
		return
	}
	if err := s.announcer.AnnounceReset(ctx, result); err != nil {
		s.logger.WarnContext(ctx, "announce weekly reset failed", "trigger", result.Trigger, "error", err)
	}
}

// NextResetAt returns the first interval boundary strictly after now.
// Boundaries are aligned to the zero time, which for a one week interval
// lands on Monday 00:00 UTC.
func NextResetAt(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = defaultResetInterval
	}
	return now.UTC().Truncate(interval).Add(interval)
}

func dedupKey(prefix string, at time.Time) string {
	return sanitizeDedupSegment(prefix) + "-" + at.UTC().Format("20060102T150405Z")
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}
