package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cryptoagents/src/database/dbtest"
	"cryptoagents/src/model"
	"cryptoagents/src/repository"

	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

type fakeNotifier struct {
	texts []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func testConfig() Config {
	return Config{MaxConsecutiveFailures: 3, RetryBaseDelay: 2 * time.Second, RetryMaxDelay: 60 * time.Second}
}

func TestBackoff(t *testing.T) {
	base, max := 2*time.Second, 60*time.Second

	require.Equal(t, 2*time.Second, Backoff(base, max, 1, 0))
	require.Equal(t, 4*time.Second, Backoff(base, max, 2, 0))
	require.Equal(t, 16*time.Second, Backoff(base, max, 4, 0))
	require.Equal(t, 60*time.Second, Backoff(base, max, 10, 0))
	require.Equal(t, 48*time.Second, Backoff(base, max, 10, 1))
	require.Equal(t, 2*time.Second, Backoff(base, max, 0, 0))
}

func TestRun_EntersFailedStateAfterLimit(t *testing.T) {
	db := dbtest.New(t)
	exceptions := repository.NewExceptionRepositoryWithDB(db)
	notes := &fakeNotifier{}
	sleeper := &recordingSleeper{}

	s := New("swing", testConfig(), WithNotifier(notes), WithExceptions(exceptions))
	s.sleep = sleeper.sleep

	calls := 0
	boom := errors.New("store unreachable")
	err := s.Run(context.Background(), time.Minute, func(context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, ErrTooManyFailures)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
	require.Len(t, sleeper.delays, 2)

	st := s.Status()
	require.Equal(t, StateFailed, st.State)
	require.Equal(t, 3, st.ConsecutiveFailures)
	require.Equal(t, "store unreachable", st.LastError)

	require.Len(t, notes.texts, 1)
	require.Contains(t, notes.texts[0], "swing")

	var stored []model.Exception
	require.NoError(t, db.Find(&stored).Error)
	require.Len(t, stored, 1)
	require.Equal(t, "fatal", stored[0].Level)
	require.Equal(t, "swing", stored[0].Service)
}

func TestRun_SuccessResetsFailures(t *testing.T) {
	sleeper := &recordingSleeper{}
	s := New("scalping", testConfig())
	s.sleep = sleeper.sleep

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := []error{errors.New("a"), errors.New("b"), nil, errors.New("c"), errors.New("d"), nil}
	calls := 0
	err := s.Run(ctx, 30*time.Second, func(context.Context) error {
		r := results[calls]
		calls++
		if calls == len(results) {
			cancel()
		}
		return r
	})

	require.NoError(t, err)
	require.Equal(t, len(results), calls)

	st := s.Status()
	require.Equal(t, StateStopped, st.State)
	require.Equal(t, 0, st.ConsecutiveFailures)
	require.Equal(t, int64(6), st.Cycles)
	require.NotNil(t, st.LastSuccess)
	require.Contains(t, sleeper.delays, 30*time.Second)
}

func TestRun_CancelledCycleIsNotAFailure(t *testing.T) {
	s := New("risk", testConfig())
	s.sleep = (&recordingSleeper{}).sleep

	ctx, cancel := context.WithCancel(context.Background())
	err := s.Run(ctx, 0, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})

	require.NoError(t, err)
	st := s.Status()
	require.Equal(t, StateStopped, st.State)
	require.Equal(t, 0, st.ConsecutiveFailures)
}

func TestHealthy_ResetsStreakWithoutCountingCycle(t *testing.T) {
	s := New("executor", testConfig())
	s.recordFailure(errors.New("x"))
	s.recordFailure(errors.New("y"))

	s.Healthy()

	st := s.Status()
	require.Equal(t, 0, st.ConsecutiveFailures)
	require.Equal(t, int64(2), st.Cycles)
}

func TestCapture_NilErrorIsIgnored(t *testing.T) {
	db := dbtest.New(t)
	Capture(context.Background(), repository.NewExceptionRepositoryWithDB(db), "svc", "mod", "m", "error", nil, nil)

	var count int64
	require.NoError(t, db.Model(&model.Exception{}).Count(&count).Error)
	require.Zero(t, count)
}
