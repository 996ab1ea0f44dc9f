package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nyraAPI/internal/achievement"
	"nyraAPI/internal/cache"
	"nyraAPI/internal/chat"
	"nyraAPI/internal/inference"
	"nyraAPI/internal/metrics"
	"nyraAPI/internal/prompt"
)

type ChatStore interface {
	// RecentTurns returns up to limit turns, oldest first.
	RecentTurns(ctx context.Context, userID uuid.UUID, limit int) ([]chat.Turn, error)
	// AppendUserTurn stores the turn and charges cost fuel in one step,
	// returning the remaining balance. It fails with ErrInsufficientFuel.
	AppendUserTurn(ctx context.Context, userID uuid.UUID, content string, cost int) (chat.Turn, int, error)
	AppendCompanionTurn(ctx context.Context, userID uuid.UUID, content string) (chat.Turn, error)
	RefundFuel(ctx context.Context, userID uuid.UUID, cost int) error
}

type UserDirectory interface {
	ResolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (prompt.Profile, error)
}

type ProgressRefresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) ([]achievement.Achievement, error)
}

type ChatConfig struct {
	HistoryWindow int
	FuelCost      int
	// LockTTL bounds one exchange. The per-user lease is held for
	// LockTTL+leaseMargin so it cannot lapse while the exchange runs.
	LockTTL       time.Duration
}

// leaseMargin covers the refund that may run after the exchange deadline.
const leaseMargin = 10 * time.Second

type ChatService struct {
	store    ChatStore
	users    UserDirectory
	progress ProgressRefresher
	client   inference.Client
	locker   cache.Locker
	cfg      ChatConfig
	logger   *zap.Logger
}

func NewChatService(store ChatStore, users UserDirectory, progress ProgressRefresher, client inference.Client, locker cache.Locker, cfg ChatConfig, logger *zap.Logger) *ChatService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 150 * time.Second
	}
	return &ChatService{
		store:    store,
		users:    users,
		progress: progress,
		client:   client,
		locker:   locker,
		cfg:      cfg,
		logger:   logger.Named("chat"),
	}
}

func (s *ChatService) History(ctx context.Context, clerkID string, limit int) ([]chat.Turn, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.RecentTurns(ctx, userID, limit)
}

// Send runs one exchange: the user's turn is stored and charged, the reply is
// streamed through onFragment as it arrives, then stored, and finally the
// user's achievements are refreshed. Exchanges for one user never overlap.
func (s *ChatService) Send(ctx context.Context, clerkID, message string, onFragment func(string) error) (*chat.Exchange, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.TryAcquire(ctx, "chat:"+userID.String(), s.cfg.LockTTL+leaseMargin)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			metrics.ChatExchanges.WithLabelValues("conflict").Inc()
			return nil, ErrExchangeInProgress
		}
		return nil, fmt.Errorf("failed to acquire chat lock: %w", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LockTTL)
	defer cancel()

	history, err := s.store.RecentTurns(ctx, userID, s.cfg.HistoryWindow)
	if err != nil {
		return nil, err
	}
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	userTurn, balance, err := s.store.AppendUserTurn(ctx, userID, message, s.cfg.FuelCost)
	if err != nil {
		if errors.Is(err, ErrInsufficientFuel) {
			metrics.ChatExchanges.WithLabelValues("no_fuel").Inc()
		}
		return nil, err
	}

	enriched := prompt.Build(message, chat.UserMessages(history), profile)
	req := inference.Request{
		System:   prompt.SystemPrompt(enriched),
		Messages: toInferenceMessages(history, message),
	}

	reply, err := s.stream(ctx, req, onFragment)
	if err != nil {
		s.refund(userID)
		metrics.ChatExchanges.WithLabelValues("inference_error").Inc()
		s.logger.Warn("inference failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}

	replyTurn, err := s.store.AppendCompanionTurn(ctx, userID, reply)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.progress.Refresh(ctx, userID)
	if err != nil {
		s.logger.Warn("progress refresh failed", zap.String("user_id", userID.String()), zap.Error(err))
		unlocked = []achievement.Achievement{}
	}

	metrics.ChatExchanges.WithLabelValues("ok").Inc()
	return &chat.Exchange{
		UserTurn:    userTurn,
		Reply:       replyTurn,
		Mood:        prompt.ClassifyMood(message),
		Engagement:  prompt.ClassifyEngagement(message, chat.UserMessages(history)),
		Unlocked:    unlocked,
		FuelBalance: balance,
	}, nil
}

func (s *ChatService) stream(ctx context.Context, req inference.Request, onFragment func(string) error) (string, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	fragments, errs := s.client.Stream(streamCtx, req)
	reply, err := inference.Collect(streamCtx, fragments, errs, onFragment)
	metrics.InferenceDuration.WithLabelValues(s.client.Name()).Observe(time.Since(start).Seconds())
	return reply, err
}

func (s *ChatService) refund(userID uuid.UUID) {
	if s.cfg.FuelCost <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.RefundFuel(ctx, userID, s.cfg.FuelCost); err != nil {
		s.logger.Error("fuel refund failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func toInferenceMessages(history []chat.Turn, current string) []inference.Message {
	out := make([]inference.Message, 0, len(history)+1)
	for _, t := range history {
		role := inference.RoleUser
		if t.Sender == chat.SenderCompanion {
			role = inference.RoleAssistant
		}
		out = append(out, inference.Message{Role: role, Content: t.Content})
	}
	return append(out, inference.Message{Role: inference.RoleUser, Content: current})
}
