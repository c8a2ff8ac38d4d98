// Package enrichment coordinates generation of the discussion summary for a scored
// question: check, trigger at most once, then wait for push or poll until a cap.
package enrichment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/models"
)

// State of one question's enrichment job.
type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateReady    State = "ready"
	StateTimedOut State = "timedOut"
	StateFailed   State = "failed"
)

// Update is delivered whenever a job changes state.
type Update struct {
	SessionID      string
	QuestionNumber string
	State          State
	Result         *models.EnrichmentResult
	Err            error
}

// Store is the part of the game store the coordinator uses.
type Store interface {
	GetSummary(ctx context.Context, sessionID, questionNumber string) (*models.EnrichmentResult, error)
	TriggerEnrichment(ctx context.Context, sessionID string, questionNumbers ...string) error
}

type Config struct {
	// PollInterval is how often the store is checked while in poll mode.
	PollInterval time.Duration
	// Timeout caps the wait in either mode.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 3 * time.Second,
		Timeout:      45 * time.Second,
	}
}

type job struct {
	state     State
	triggered bool
	// watch jobs wait for a result someone else generates and never trigger.
	watch     bool
	result    *models.EnrichmentResult
	err       error
	ready     chan struct{}
	cancel    context.CancelFunc
}

type Coordinator struct {
	store   Store
	clock   clockwork.Clock
	cfg     Config
	deliver func(Update)
	polling atomic.Bool

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

// NewCoordinator creates a coordinator that reports every state change to deliver.
// deliver is called from the coordinator's goroutines.
func NewCoordinator(store Store, clock clockwork.Clock, cfg Config, deliver func(Update)) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		store:   store,
		clock:   clock,
		cfg:     cfg,
		deliver: deliver,
		ctx:     ctx,
		stop:    stop,
		jobs:    make(map[string]*job),
	}
}

func key(sessionID, questionNumber string) string {
	return sessionID + "/" + questionNumber
}

// SetPolling switches waiting jobs between push and poll completion.
func (c *Coordinator) SetPolling(poll bool) {
	c.polling.Store(poll)
}

// Ensure makes sure a result for the question exists or is being produced and returns
// the job's current state. A ready job returns its result, a pending job keeps
// waiting, and a timed out or failed job stays that way until Retry. Later state
// changes are reported through the deliver callback.
func (c *Coordinator) Ensure(sessionID, questionNumber string) Update {
	return c.ensure(sessionID, questionNumber, false)
}

// Watch is Ensure without the trigger: it waits, by push or poll and under the same
// cap, for a result that another client asked for.
func (c *Coordinator) Watch(sessionID, questionNumber string) Update {
	return c.ensure(sessionID, questionNumber, true)
}

func (c *Coordinator) ensure(sessionID, questionNumber string, watch bool) Update {
	k := key(sessionID, questionNumber)
	u := Update{SessionID: sessionID, QuestionNumber: questionNumber}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		u.State = StateIdle
		return u
	}
	j, ok := c.jobs[k]
	if ok && j.state != StateIdle {
		u.State, u.Result, u.Err = j.state, j.result, j.err
		return u
	}
	if !ok {
		j = &job{watch: watch}
		c.jobs[k] = j
	}
	c.start(sessionID, questionNumber, j)
	u.State = StatePending
	return u
}

// start must be called with c.mu held.
func (c *Coordinator) start(sessionID, questionNumber string, j *job) {
	ctx, cancel := context.WithCancel(c.ctx)
	j.state = StatePending
	j.err = nil
	j.cancel = cancel
	ready := make(chan struct{}, 1)
	j.ready = ready

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(ctx, sessionID, questionNumber, j, ready)
	}()
}

// Retry restarts a timed out or failed job. Generation is only triggered again if the
// previous trigger never went through.
func (c *Coordinator) Retry(sessionID, questionNumber string) Update {
	c.mu.Lock()
	j, ok := c.jobs[key(sessionID, questionNumber)]
	if ok && (j.state == StateTimedOut || j.state == StateFailed) {
		j.state = StateIdle
		j.watch = false
	}
	c.mu.Unlock()
	return c.Ensure(sessionID, questionNumber)
}

// NotifyReady wakes the job waiting on the question, if any.
func (c *Coordinator) NotifyReady(sessionID, questionNumber string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[key(sessionID, questionNumber)]
	if !ok || j.state != StatePending {
		return
	}
	select {
	case j.ready <- struct{}{}:
	default:
	}
}

// Cancel stops waiting on the question. A later Ensure waits again without triggering
// a second generation.
func (c *Coordinator) Cancel(sessionID, questionNumber string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[key(sessionID, questionNumber)]
	if !ok || j.state != StatePending {
		return
	}
	j.cancel()
	j.state = StateIdle
}

// Close cancels all jobs and waits for their goroutines.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stop()
	c.wg.Wait()
}

// State returns the job state for the question.
func (c *Coordinator) State(sessionID, questionNumber string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if j, ok := c.jobs[key(sessionID, questionNumber)]; ok {
		return j.state
	}
	return StateIdle
}

func (c *Coordinator) run(ctx context.Context, sessionID, questionNumber string, j *job, ready <-chan struct{}) {
	logger := log.With().Str("session_id", sessionID).Str("question_number", questionNumber).Logger()

	res, err := c.store.GetSummary(ctx, sessionID, questionNumber)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error().Err(err).Msg("Failed to check for existing summary")
		c.finish(ctx, sessionID, questionNumber, j, StateFailed, nil, err)
		return
	}
	if res != nil {
		c.finish(ctx, sessionID, questionNumber, j, StateReady, res, nil)
		return
	}

	// The job counts as triggered once the request is sent, even if cancellation cuts
	// the request short.
	c.mu.Lock()
	needTrigger := !j.triggered && !j.watch
	if needTrigger {
		j.triggered = true
	}
	c.mu.Unlock()
	if needTrigger {
		if err := c.store.TriggerEnrichment(ctx, sessionID, questionNumber); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			j.triggered = false
			c.mu.Unlock()
			logger.Error().Err(err).Msg("Failed to trigger enrichment")
			c.finish(ctx, sessionID, questionNumber, j, StateFailed, nil, err)
			return
		}
		logger.Info().Msg("Enrichment triggered")
	}

	deadline := c.clock.NewTimer(c.cfg.Timeout)
	defer deadline.Stop()
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Enrichment wait cancelled")
			return
		case <-deadline.Chan():
			err := fmt.Errorf("%w after %s", game.ErrEnrichmentTimeout, c.cfg.Timeout)
			logger.Warn().Err(err).Msg("Enrichment unavailable")
			c.finish(ctx, sessionID, questionNumber, j, StateTimedOut, nil, err)
			return
		case <-ready:
		case <-ticker.Chan():
			if !c.polling.Load() {
				continue
			}
		}

		res, err := c.store.GetSummary(ctx, sessionID, questionNumber)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn().Err(err).Msg("Failed to fetch summary")
			}
			continue
		}
		if res != nil {
			c.finish(ctx, sessionID, questionNumber, j, StateReady, res, nil)
			return
		}
	}
}

func (c *Coordinator) finish(ctx context.Context, sessionID, questionNumber string, j *job, state State, res *models.EnrichmentResult, err error) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	j.state = state
	j.result = res
	j.err = err
	c.mu.Unlock()

	c.emit(Update{SessionID: sessionID, QuestionNumber: questionNumber, State: state, Result: res, Err: err})
}

func (c *Coordinator) emit(u Update) {
	if c.deliver != nil {
		c.deliver(u)
	}
}
