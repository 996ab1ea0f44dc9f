package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"nyraAPI/internal/notification"
)

type memRecorder struct {
	mu     sync.Mutex
	sent   []uuid.UUID
	failed []uuid.UUID
}

func (r *memRecorder) MarkSent(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, id)
	return nil
}

func (r *memRecorder) MarkFailed(_ context.Context, id uuid.UUID, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, id)
	return nil
}

func (r *memRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent), len(r.failed)
}

type fakePush struct {
	mu     sync.Mutex
	titles []string
	err    error
	jitter bool
}

func (p *fakePush) SendPush(_ context.Context, _ []notification.DeviceToken, title, _ string, _ map[string]any) error {
	if p.jitter {
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	return p.err
}

func job(titles ...string) *DispatchJob {
	j := &DispatchJob{Tokens: []notification.DeviceToken{{Token: "tok", Platform: "ios"}}}
	for _, title := range titles {
		j.Notifications = append(j.Notifications, &notification.Notification{ID: uuid.New(), Title: title})
	}
	return j
}

func TestNotificationDispatcher_DeliversAndRecords(t *testing.T) {
	rec := &memRecorder{}
	push := &fakePush{}
	d := NewNotificationDispatcher(rec, 2, 10, zap.NewNop())
	d.SetPushProvider(push)

	j := job("a", "b", "c")
	assert.True(t, d.Dispatch(j))
	d.Stop()

	sent, failed := rec.counts()
	assert.Equal(t, 3, sent)
	assert.Zero(t, failed)
	assert.Equal(t, []string{"a", "b", "c"}, push.titles)
	assert.Equal(t, []uuid.UUID{j.Notifications[0].ID, j.Notifications[1].ID, j.Notifications[2].ID}, rec.sent)
}

func TestNotificationDispatcher_KeepsBatchOrderAcrossWorkers(t *testing.T) {
	rec := &memRecorder{}
	push := &fakePush{jitter: true}
	d := NewNotificationDispatcher(rec, 5, 100, zap.NewNop())
	d.SetPushProvider(push)

	want := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		want = append(want, strconv.Itoa(i))
	}
	assert.True(t, d.Dispatch(job(want...)))
	d.Stop()

	assert.Equal(t, want, push.titles)
}

func TestNotificationDispatcher_FailureDoesNotStopBatch(t *testing.T) {
	rec := &memRecorder{}
	d := NewNotificationDispatcher(rec, 1, 10, zap.NewNop())
	d.SetPushProvider(&fakePush{err: errors.New("token expired")})

	d.Dispatch(job("a", "b"))
	d.Stop()

	_, failed := rec.counts()
	assert.Equal(t, 2, failed)
}

func TestNotificationDispatcher_RecordsFailures(t *testing.T) {
	rec := &memRecorder{}
	d := NewNotificationDispatcher(rec, 1, 10, zap.NewNop())
	d.SetPushProvider(&fakePush{err: errors.New("token expired")})

	d.Dispatch(job("a"))
	d.Stop()

	sent, failed := rec.counts()
	assert.Zero(t, sent)
	assert.Equal(t, 1, failed)
}

func TestNotificationDispatcher_WithoutProviderStillMarksSent(t *testing.T) {
	rec := &memRecorder{}
	d := NewNotificationDispatcher(rec, 1, 10, zap.NewNop())

	d.Dispatch(job("in-app only"))
	d.Stop()

	sent, _ := rec.counts()
	assert.Equal(t, 1, sent)
}

func TestNotificationDispatcher_RejectsAfterStop(t *testing.T) {
	d := NewNotificationDispatcher(&memRecorder{}, 1, 1, zap.NewNop())
	d.Stop()
	d.Stop()

	done := make(chan bool, 1)
	go func() { done <- d.Dispatch(job("late")) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("dispatch after stop should return immediately")
	}
}
