// Package supervisor runs an agent loop with bounded retries. After too many
// consecutive failures the agent enters a terminal failed state and Run
// returns, so the process exits and an external supervisor can restart it.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateBackoff  State = "backoff"
	StateFailed   State = "failed"
	StateStopped  State = "stopped"
)

var ErrTooManyFailures = errors.New("too many consecutive failures")

// Status is a copy of the supervisor's bookkeeping, safe to serialise.
type Status struct {
	Agent               string     `json:"agent"`
	State               State      `json:"state"`
	Cycles              int64      `json:"cycles"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	StartedAt           time.Time  `json:"started_at"`
}

type notifier interface {
	Notify(ctx context.Context, text string) error
}

// CycleFunc is one unit of agent work.
type CycleFunc func(ctx context.Context) error

type Supervisor struct {
	agent      string
	cfg        Config
	notifier   notifier
	exceptions exceptionWriter
	log        *logger.Entry

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	status Status
}

type Option func(*Supervisor)

func WithNotifier(n notifier) Option {
	return func(s *Supervisor) { s.notifier = n }
}

func WithExceptions(repo exceptionWriter) Option {
	return func(s *Supervisor) { s.exceptions = repo }
}

func New(agent string, cfg Config, opts ...Option) *Supervisor {
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}

	s := &Supervisor{
		agent: agent,
		cfg:   cfg,
		log:   logger.WithFields(logger.Fields{"component": "supervisor", "agent": agent}),
		sleep: sleepCtx,
		status: Status{
			Agent:     agent,
			State:     StateStarting,
			StartedAt: time.Now().UTC(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff is base * 2^(failures-1) capped at max, with up to 20% jitter
// subtracted. jitter is a number in [0, 1).
func Backoff(base, max time.Duration, failures int, jitter float64) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := base
	for i := 1; i < failures && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d - time.Duration(float64(d)*0.2*jitter)
}

// Run calls cycle until ctx is cancelled, waiting interval after each
// success. A failed cycle is retried with exponential backoff; after
// MaxConsecutiveFailures in a row Run gives up and returns the last error.
func (s *Supervisor) Run(ctx context.Context, interval time.Duration, cycle CycleFunc) error {
	s.setState(StateRunning)
	s.log.WithField("interval", interval.String()).Info("agent started")

	for {
		if ctx.Err() != nil {
			s.setState(StateStopped)
			s.log.Info("agent stopped")
			return nil
		}

		err := cycle(ctx)
		if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
			if err == nil {
				s.recordSuccess(true)
			}
			_ = s.sleep(ctx, interval)
			continue
		}

		failures := s.recordFailure(err)
		if failures >= s.cfg.MaxConsecutiveFailures {
			return s.fail(ctx, err, failures)
		}

		delay := Backoff(s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay, failures, rand.Float64())
		s.setState(StateBackoff)
		s.log.WithError(err).WithFields(logger.Fields{
			"failures": failures,
			"retry_in": delay.String(),
		}).Warn("cycle failed, backing off")

		if s.sleep(ctx, delay) == nil {
			s.setState(StateRunning)
		}
	}
}

// Healthy resets the failure streak. Long-lived cycles call it once they are
// established so that a later drop starts a fresh retry budget.
func (s *Supervisor) Healthy() {
	s.recordSuccess(false)
}

func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if st.LastSuccess != nil {
		t := *st.LastSuccess
		st.LastSuccess = &t
	}
	return st
}

func (s *Supervisor) fail(ctx context.Context, err error, failures int) error {
	s.setState(StateFailed)
	s.log.WithError(err).WithField("failures", failures).Error("agent entered failed state")

	Capture(ctx, s.exceptions, s.agent, "supervisor", "Run", "fatal", err, map[string]interface{}{
		"consecutive_failures": failures,
	})

	if s.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		text := fmt.Sprintf("%s agent FAILED after %d consecutive errors: %v", s.agent, failures, err)
		if nerr := s.notifier.Notify(notifyCtx, text); nerr != nil {
			s.log.WithError(nerr).Warn("failed to send failure alert")
		}
	}

	return fmt.Errorf("%s: %w: %w", s.agent, ErrTooManyFailures, err)
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
}

func (s *Supervisor) recordSuccess(cycle bool) {
	now := time.Now().UTC()
	s.mu.Lock()
	if cycle {
		s.status.Cycles++
	}
	s.status.ConsecutiveFailures = 0
	s.status.LastSuccess = &now
	if s.status.State != StateStopped && s.status.State != StateFailed {
		s.status.State = StateRunning
	}
	s.mu.Unlock()
}

func (s *Supervisor) recordFailure(err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Cycles++
	s.status.ConsecutiveFailures++
	s.status.LastError = err.Error()
	return s.status.ConsecutiveFailures
}
