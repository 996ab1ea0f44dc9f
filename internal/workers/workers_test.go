package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(ctx context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestStartAchievementSweep_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := &countingSweeper{}

	done := StartAchievementSweep(ctx, 10*time.Millisecond, sweeper, zap.NewNop())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop")
	}
}

func TestStartAchievementSweep_KeepsGoingAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := &countingSweeper{err: errors.New("db down")}

	done := StartAchievementSweep(ctx, 10*time.Millisecond, sweeper, zap.NewNop())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestStartAchievementSweep_DisabledInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	done := StartAchievementSweep(context.Background(), 0, sweeper, zap.NewNop())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweep should exit immediately")
	}
	assert.Zero(t, sweeper.calls.Load())
}
