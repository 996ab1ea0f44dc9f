package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nyraAPI/internal/achievement"
	"nyraAPI/internal/cache"
	"nyraAPI/internal/chat"
	"nyraAPI/internal/inference"
	"nyraAPI/internal/prompt"
)

type memChatStore struct {
	mu       sync.Mutex
	turns    []chat.Turn
	balance  int
	used     int
	messages int
	nextID   int64
}

func (s *memChatStore) RecentTurns(_ context.Context, _ uuid.UUID, limit int) ([]chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return []chat.Turn{}, nil
	}
	start := len(s.turns) - limit
	if start < 0 {
		start = 0
	}
	return append([]chat.Turn(nil), s.turns[start:]...), nil
}

func (s *memChatStore) append(sender chat.Sender, content string) chat.Turn {
	s.nextID++
	t := chat.Turn{ID: s.nextID, Sender: sender, Content: content, CreatedAt: time.Now()}
	s.turns = append(s.turns, t)
	return t
}

func (s *memChatStore) AppendUserTurn(_ context.Context, _ uuid.UUID, content string, cost int) (chat.Turn, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balance < cost {
		return chat.Turn{}, 0, ErrInsufficientFuel
	}
	s.balance -= cost
	s.used += cost
	s.messages++
	return s.append(chat.SenderUser, content), s.balance, nil
}

func (s *memChatStore) AppendCompanionTurn(_ context.Context, _ uuid.UUID, content string) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(chat.SenderCompanion, content), nil
}

func (s *memChatStore) RefundFuel(_ context.Context, _ uuid.UUID, cost int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance += cost
	s.used -= cost
	return nil
}

type staticUsers struct {
	id      uuid.UUID
	profile prompt.Profile
}

func (u staticUsers) ResolveUserID(_ context.Context, clerkID string) (uuid.UUID, error) {
	if clerkID != "clerk_1" {
		return uuid.Nil, ErrUserNotFound
	}
	return u.id, nil
}

func (u staticUsers) GetProfile(context.Context, uuid.UUID) (prompt.Profile, error) {
	return u.profile, nil
}

type stubRefresher struct {
	unlocked []achievement.Achievement
	err      error
}

func (r stubRefresher) Refresh(context.Context, uuid.UUID) ([]achievement.Achievement, error) {
	return r.unlocked, r.err
}

// scriptedClient replies with fixed fragments, or fails after sending them.
type scriptedClient struct {
	fragments []string
	err       error
	gate      chan struct{}

	mu       sync.Mutex
	last     inference.Request
	deadline time.Time
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Stream(ctx context.Context, req inference.Request) (<-chan string, <-chan error) {
	c.mu.Lock()
	c.last = req
	c.deadline, _ = ctx.Deadline()
	c.mu.Unlock()

	frags := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(frags)
		if c.gate != nil {
			select {
			case <-c.gate:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		for _, f := range c.fragments {
			select {
			case frags <- f:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if c.err != nil {
			errs <- c.err
		}
	}()
	return frags, errs
}

func (c *scriptedClient) lastRequest() inference.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func newTestChatService(store ChatStore, client inference.Client, refresher ProgressRefresher, locker cache.Locker) *ChatService {
	users := staticUsers{id: uuid.MustParse("11111111-1111-1111-1111-111111111111"), profile: prompt.Profile{Name: "Ana"}}
	return NewChatService(store, users, refresher, client, locker,
		ChatConfig{HistoryWindow: 10, FuelCost: 1, LockTTL: time.Minute}, zap.NewNop())
}

func TestChatService_SendStreamsAndStores(t *testing.T) {
	store := &memChatStore{balance: 5}
	client := &scriptedClient{fragments: []string{"Hey ", "Ana", "!"}}
	first, _ := achievement.Lookup("1")
	svc := newTestChatService(store, client, stubRefresher{unlocked: []achievement.Achievement{first}}, cache.NewLocalLocker())

	var got []string
	ex, err := svc.Send(context.Background(), "clerk_1", "I feel happy today", func(f string) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hey ", "Ana", "!"}, got)
	assert.Equal(t, "Hey Ana!", ex.Reply.Content)
	assert.Equal(t, chat.SenderCompanion, ex.Reply.Sender)
	assert.Equal(t, "I feel happy today", ex.UserTurn.Content)
	assert.Equal(t, prompt.MoodHappy, ex.Mood)
	assert.Equal(t, 4, ex.FuelBalance)
	assert.Equal(t, []string{"1"}, ids(ex.Unlocked))

	require.Len(t, store.turns, 2)
	assert.Equal(t, 1, store.messages)
	assert.Equal(t, 1, store.used)

	req := client.lastRequest()
	assert.Contains(t, req.System, "## Current User Message:")
	assert.Contains(t, req.System, "Name: Ana")
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, inference.Message{Role: inference.RoleUser, Content: "I feel happy today"}, req.Messages[len(req.Messages)-1])
}

func TestChatService_SendIncludesHistory(t *testing.T) {
	store := &memChatStore{balance: 5}
	store.append(chat.SenderUser, "earlier question")
	store.append(chat.SenderCompanion, "earlier answer")

	client := &scriptedClient{fragments: []string{"ok"}}
	svc := newTestChatService(store, client, stubRefresher{}, cache.NewLocalLocker())

	_, err := svc.Send(context.Background(), "clerk_1", "and now?", nil)
	require.NoError(t, err)

	req := client.lastRequest()
	require.Len(t, req.Messages, 3)
	assert.Equal(t, inference.RoleUser, req.Messages[0].Role)
	assert.Equal(t, inference.RoleAssistant, req.Messages[1].Role)
	assert.Contains(t, req.System, "earlier question")
	assert.NotContains(t, req.System, "earlier answer")
}

func TestChatService_EmptyMessage(t *testing.T) {
	store := &memChatStore{balance: 5}
	svc := newTestChatService(store, &scriptedClient{}, stubRefresher{}, cache.NewLocalLocker())

	_, err := svc.Send(context.Background(), "clerk_1", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, store.turns)
}

func TestChatService_UnknownUser(t *testing.T) {
	svc := newTestChatService(&memChatStore{balance: 5}, &scriptedClient{}, stubRefresher{}, cache.NewLocalLocker())

	_, err := svc.Send(context.Background(), "nobody", "hi", nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChatService_InsufficientFuel(t *testing.T) {
	store := &memChatStore{balance: 0}
	client := &scriptedClient{fragments: []string{"never"}}
	svc := newTestChatService(store, client, stubRefresher{}, cache.NewLocalLocker())

	_, err := svc.Send(context.Background(), "clerk_1", "hello", nil)
	assert.ErrorIs(t, err, ErrInsufficientFuel)
	assert.Empty(t, store.turns)
	assert.Empty(t, client.lastRequest().System, "inference must not run without fuel")
}

func TestChatService_InferenceFailureRefunds(t *testing.T) {
	store := &memChatStore{balance: 3}
	client := &scriptedClient{fragments: []string{"partial"}, err: errors.New("upstream 500")}
	svc := newTestChatService(store, client, stubRefresher{}, cache.NewLocalLocker())

	_, err := svc.Send(context.Background(), "clerk_1", "hello", nil)
	assert.ErrorIs(t, err, ErrInferenceFailed)

	assert.Equal(t, 3, store.balance)
	assert.Equal(t, 0, store.used)
	require.Len(t, store.turns, 1, "the user's turn is kept")
	assert.Equal(t, chat.SenderUser, store.turns[0].Sender)
}

func TestChatService_FragmentCallbackErrorAborts(t *testing.T) {
	store := &memChatStore{balance: 3}
	client := &scriptedClient{fragments: []string{"a", "b", "c"}}
	svc := newTestChatService(store, client, stubRefresher{}, cache.NewLocalLocker())

	_, err := svc.Send(context.Background(), "clerk_1", "hello", func(string) error {
		return errors.New("client went away")
	})
	assert.ErrorIs(t, err, ErrInferenceFailed)
	assert.Equal(t, 3, store.balance)
}

func TestChatService_RejectsOverlappingExchange(t *testing.T) {
	store := &memChatStore{balance: 5}
	gate := make(chan struct{})
	client := &scriptedClient{fragments: []string{"slow"}, gate: gate}
	svc := newTestChatService(store, client, stubRefresher{}, cache.NewLocalLocker())

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), "clerk_1", "first", nil)
		firstDone <- err
	}()

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.messages == 1
	}, time.Second, 5*time.Millisecond)

	_, err := svc.Send(context.Background(), "clerk_1", "second", nil)
	assert.ErrorIs(t, err, ErrExchangeInProgress)

	close(gate)
	require.NoError(t, <-firstDone)

	_, err = svc.Send(context.Background(), "clerk_1", "third", nil)
	assert.NoError(t, err)
}

type recordingLocker struct {
	cache.Locker

	mu         sync.Mutex
	ttl        time.Duration
	acquiredAt time.Time
}

func (l *recordingLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	l.ttl = ttl
	l.acquiredAt = time.Now()
	l.mu.Unlock()
	return l.Locker.TryAcquire(ctx, key, ttl)
}

func TestChatService_ExchangeEndsBeforeLeaseExpires(t *testing.T) {
	store := &memChatStore{balance: 5}
	gate := make(chan struct{})
	defer close(gate)
	client := &scriptedClient{fragments: []string{"slow"}, gate: gate}
	locker := &recordingLocker{Locker: cache.NewLocalLocker()}
	users := staticUsers{id: uuid.MustParse("11111111-1111-1111-1111-111111111111")}
	svc := NewChatService(store, users, stubRefresher{}, client, locker,
		ChatConfig{HistoryWindow: 10, FuelCost: 1, LockTTL: 50 * time.Millisecond}, zap.NewNop())

	_, err := svc.Send(context.Background(), "clerk_1", "first", nil)
	require.ErrorIs(t, err, ErrInferenceFailed)

	locker.mu.Lock()
	leaseEnd := locker.acquiredAt.Add(locker.ttl)
	locker.mu.Unlock()
	client.mu.Lock()
	deadline := client.deadline
	client.mu.Unlock()

	require.False(t, deadline.IsZero())
	assert.True(t, deadline.Before(leaseEnd), "exchange deadline %v must precede lease end %v", deadline, leaseEnd)
	assert.Greater(t, leaseEnd.Sub(deadline), leaseMargin-time.Second)
	assert.Equal(t, 5, store.balance, "fuel refunded")

	// released on return, not left to expire
	_, err = svc.Send(context.Background(), "clerk_1", "second", nil)
	assert.NotErrorIs(t, err, ErrExchangeInProgress)
}

func TestChatService_RefreshFailureDoesNotFailExchange(t *testing.T) {
	store := &memChatStore{balance: 5}
	svc := newTestChatService(store, &scriptedClient{fragments: []string{"hi"}}, stubRefresher{err: errors.New("boom")}, cache.NewLocalLocker())

	ex, err := svc.Send(context.Background(), "clerk_1", "hello", nil)
	require.NoError(t, err)
	assert.Empty(t, ex.Unlocked)
	assert.NotNil(t, ex.Unlocked)
}

func TestChatService_History(t *testing.T) {
	store := &memChatStore{balance: 5}
	for i := 0; i < 3; i++ {
		store.append(chat.SenderUser, "m")
	}
	svc := newTestChatService(store, &scriptedClient{}, stubRefresher{}, cache.NewLocalLocker())

	turns, err := svc.History(context.Background(), "clerk_1", 2)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
	assert.Equal(t, int64(2), turns[0].ID)
}
