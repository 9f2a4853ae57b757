package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"mcq-queue-service/internal/domain"
)

// DefaultInterval is the posting cadence when none is configured.
const DefaultInterval = 30 * time.Minute

// SchedulerConfig holds the delivery settings.
type SchedulerConfig struct {
	Destination string
	Interval    time.Duration
	// MaxAttempts parks a record after that many failed deliveries. Zero retries forever.
	MaxAttempts int
}

// TickerFunc starts a periodic tick source and returns its channel and stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithListeners registers observers for delivery outcomes.
func WithListeners(listeners ...DeliveryListener) SchedulerOption {
	return func(s *Scheduler) {
		for _, l := range listeners {
			if l != nil {
				s.listeners = append(s.listeners, l)
			}
		}
	}
}

// WithTicker replaces the wall-clock ticker; tests drive ticks by hand with it.
func WithTicker(fn TickerFunc) SchedulerOption {
	return func(s *Scheduler) {
		if fn != nil {
			s.newTicker = fn
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler releases pending MCQs one per tick while RUNNING and pauses itself when the queue
// runs dry. Admission wakes it up again through Resume.
type Scheduler struct {
	queue       DeliveryQueue
	port        DeliveryPort
	destination string
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
	listeners   []DeliveryListener
	newTicker   TickerFunc
	now         func() time.Time

	// attempts serializes delivery attempts; a second one waits for the one in flight.
	attempts sync.Mutex
	loops    sync.WaitGroup

	mu          sync.Mutex
	state       domain.SchedulerState
	stop        chan struct{}
	stopped     bool
	baseCtx     context.Context
	lastOutcome domain.Outcome
	lastAttempt *time.Time
}

func NewScheduler(queue DeliveryQueue, port DeliveryPort, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		queue:       queue,
		port:        port,
		destination: cfg.Destination,
		interval:    interval,
		maxAttempts: cfg.MaxAttempts,
		logger:      zap.NewNop(),
		newTicker:   wallTicker,
		now:         time.Now,
		state:       domain.StatePaused,
		baseCtx:     context.Background(),
		lastOutcome: domain.OutcomeNone,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func wallTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start picks the initial state from the queue: RUNNING when work is pending, PAUSED otherwise.
// The first attempt happens one interval later. Calling Start while RUNNING is a no-op.
// ctx bounds the lifetime of every delivery loop started from now on.
func (s *Scheduler) Start(ctx context.Context) error {
	pending, err := s.queue.CountPending(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return domain.ErrSchedulerStopped
	}
	s.baseCtx = ctx
	if s.state == domain.StateRunning {
		return nil
	}
	if pending > 0 {
		s.runLocked(false)
	}
	s.logger.Info("scheduler started",
		zap.String("state", string(s.state)),
		zap.Int("pending", pending),
		zap.Duration("interval", s.interval))
	return nil
}

// Resume moves a PAUSED scheduler to RUNNING and triggers an immediate attempt.
// It reports whether a transition happened.
func (s *Scheduler) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state == domain.StateRunning {
		return false
	}
	s.runLocked(true)
	s.logger.Info("scheduler resumed")
	return true
}

// Stop halts the timer and waits for an in-flight attempt until ctx is done.
// A stopped scheduler never runs again.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.pauseLocked()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) State() domain.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a read-only snapshot for health and status queries.
func (s *Scheduler) Status(ctx context.Context) domain.Status {
	pending, err := s.queue.CountPending(ctx)
	if err != nil {
		pending = -1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	status := domain.Status{
		State:       s.state,
		Pending:     pending,
		Interval:    s.interval.String(),
		LastOutcome: s.lastOutcome,
		Time:        s.now().UTC(),
	}
	if s.lastAttempt != nil {
		at := *s.lastAttempt
		status.LastAttempt = &at
	}
	return status
}

// AttemptDelivery delivers the oldest pending record. An attempt requested while another one is
// in flight waits for it to finish and then reads the queue afresh, so an item admitted during an
// idle attempt is picked up instead of sharing that attempt's result.
func (s *Scheduler) AttemptDelivery(ctx context.Context) (domain.Outcome, error) {
	s.attempts.Lock()
	defer s.attempts.Unlock()
	return s.attempt(ctx)
}

func (s *Scheduler) attempt(ctx context.Context) (domain.Outcome, error) {
	item, err := s.queue.NextPending(ctx)
	if err != nil {
		s.recordOutcome(domain.OutcomeFailed)
		return domain.OutcomeFailed, err
	}
	if item == nil {
		s.pauseIfIdle(ctx)
		s.recordOutcome(domain.OutcomeIdle)
		return domain.OutcomeIdle, nil
	}

	log := s.logger.With(zap.Int64("mcq_id", item.ID))
	receipt, err := s.port.SendQuiz(ctx, s.destination, item.Quiz())
	if err != nil {
		s.recordOutcome(domain.OutcomeFailed)
		deliveryErr := &domain.DeliveryError{ID: item.ID, Err: err}
		log.Warn("delivery failed, mcq stays pending", zap.Error(err))

		updated, recErr := s.queue.RecordFailure(ctx, item.ID, err, s.maxAttempts)
		switch {
		case recErr != nil:
			log.Error("record delivery failure", zap.Error(recErr))
			updated = *item
		case updated.Parked():
			log.Error("mcq parked after repeated delivery failures", zap.Int("attempts", updated.Attempts))
		}
		for _, l := range s.listeners {
			l.OnDeliveryFailed(ctx, updated, deliveryErr)
		}
		return domain.OutcomeFailed, deliveryErr
	}

	posted, err := s.queue.MarkPosted(ctx, item.ID, receipt.Ref)
	if errors.Is(err, domain.ErrNotFound) {
		// Removed while the send was in flight; nothing left to mark.
		log.Warn("delivered mcq no longer in queue", zap.String("delivery_ref", receipt.Ref))
		s.recordOutcome(domain.OutcomeDelivered)
		return domain.OutcomeDelivered, nil
	}
	if err != nil {
		s.recordOutcome(domain.OutcomeFailed)
		log.Error("mark posted failed, mcq will be sent again", zap.Error(err))
		return domain.OutcomeFailed, err
	}

	s.recordOutcome(domain.OutcomeDelivered)
	log.Info("mcq delivered", zap.String("delivery_ref", receipt.Ref))
	for _, l := range s.listeners {
		l.OnDelivered(ctx, posted)
	}
	return domain.OutcomeDelivered, nil
}

// pauseIfIdle re-checks the queue under the scheduler lock so that an item admitted between
// NextPending and here keeps the loop running instead of getting stranded.
func (s *Scheduler) pauseIfIdle(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateRunning {
		return
	}
	if pending, err := s.queue.CountPending(ctx); err == nil && pending > 0 {
		return
	}
	s.pauseLocked()
	s.logger.Info("queue empty, scheduler paused")
}

func (s *Scheduler) runLocked(immediate bool) {
	stop := make(chan struct{})
	s.stop = stop
	s.state = domain.StateRunning
	s.loops.Add(1)
	go s.loop(s.baseCtx, stop, immediate)
}

func (s *Scheduler) pauseLocked() {
	s.state = domain.StatePaused
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, immediate bool) {
	defer s.loops.Done()

	ticks, stopTicker := s.newTicker(s.interval)
	defer stopTicker()

	if immediate {
		s.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticks:
			select {
			case <-stop:
				return
			default:
			}
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.AttemptDelivery(ctx)
	var deliveryErr *domain.DeliveryError
	if err != nil && !errors.As(err, &deliveryErr) {
		s.logger.Error("delivery attempt aborted", zap.Error(err))
	}
}

func (s *Scheduler) recordOutcome(outcome domain.Outcome) {
	now := s.now().UTC()
	s.mu.Lock()
	s.lastOutcome = outcome
	s.lastAttempt = &now
	s.mu.Unlock()
}
