package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"nyraAPI/internal/achievement"
	"nyraAPI/internal/metrics"
)

// ProgressStore is the persistence side of the achievement tracker.
type ProgressStore interface {
	FetchUserProgress(ctx context.Context, userID uuid.UUID) (achievement.UserProgress, error)
	// SaveAchievements merges the true entries of mapping into the stored
	// document and returns the document as it was before the merge.
	SaveAchievements(ctx context.Context, userID uuid.UUID, mapping map[string]bool) (map[string]bool, error)
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

type AchievementNotifier interface {
	CreateAchievementNotifications(ctx context.Context, userID uuid.UUID, unlocked []achievement.Achievement) error
}

type ProgressService struct {
	store    ProgressStore
	notifier AchievementNotifier
	clock    func() time.Time
	logger   *zap.Logger
}

func NewProgressService(store ProgressStore, notifier AchievementNotifier, logger *zap.Logger) *ProgressService {
	return &ProgressService{
		store:    store,
		notifier: notifier,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("progress"),
	}
}

// Refresh evaluates the user's current snapshot and persists anything newly
// unlocked. Notifications go out only after the write is acknowledged, and
// only for ids the stored document did not already hold.
func (s *ProgressService) Refresh(ctx context.Context, userID uuid.UUID) ([]achievement.Achievement, error) {
	p, err := s.store.FetchUserProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.AsOf = s.clock()

	res, err := achievement.Evaluate(p)
	if err != nil {
		return nil, err
	}
	if len(res.Unlocked) == 0 {
		return []achievement.Achievement{}, nil
	}

	previous, err := s.store.SaveAchievements(ctx, userID, res.Achievements)
	if err != nil {
		return nil, fmt.Errorf("failed to save achievements: %w", err)
	}

	unlocked := make([]achievement.Achievement, 0, len(res.Unlocked))
	for _, id := range res.Unlocked {
		if previous[id] {
			continue
		}
		a, ok := achievement.Lookup(id)
		if !ok {
			continue
		}
		unlocked = append(unlocked, a)
		metrics.AchievementsUnlocked.WithLabelValues(id).Inc()
	}

	if len(unlocked) > 0 {
		s.logger.Info("achievements unlocked",
			zap.String("user_id", userID.String()),
			zap.Int("count", len(unlocked)))

		if s.notifier != nil {
			if err := s.notifier.CreateAchievementNotifications(ctx, userID, unlocked); err != nil {
				s.logger.Warn("failed to create achievement notifications", zap.String("user_id", userID.String()), zap.Error(err))
			}
		}
	}

	return unlocked, nil
}

func (s *ProgressService) Summary(ctx context.Context, userID uuid.UUID) (*achievement.Summary, error) {
	p, err := s.store.FetchUserProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return achievement.NewSummary(p), nil
}

// Preview evaluates a caller supplied snapshot without touching storage.
func (s *ProgressService) Preview(raw map[string]any) (achievement.Result, error) {
	p, err := achievement.ParseProgress(raw)
	if err != nil {
		return achievement.Result{}, err
	}
	p.AsOf = s.clock()
	return achievement.Evaluate(p)
}

// Sweep refreshes every user. Account-age achievements cross their
// thresholds without any user activity, so they need a periodic pass.
func (s *ProgressService) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		unlocked, err := s.Refresh(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrUserNotFound) {
				s.logger.Warn("sweep refresh failed", zap.String("user_id", id.String()), zap.Error(err))
			}
			continue
		}
		total += len(unlocked)
	}
	return total, nil
}

type pgProgressStore struct {
	db *pgxpool.Pool
}

func NewProgressStore(db *pgxpool.Pool) ProgressStore {
	return &pgProgressStore{db: db}
}

func (s *pgProgressStore) FetchUserProgress(ctx context.Context, userID uuid.UUID) (achievement.UserProgress, error) {
	query := `
	SELECT u.created_at, p.message_count, p.check_in_count, p.fuel_used, p.last_check_in_at, p.achievements
	FROM users u
	JOIN user_progress p ON p.user_id = u.id
	WHERE u.id = $1
	`

	var p achievement.UserProgress
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.AccountCreatedAt,
		&p.MessageCount,
		&p.CheckInCount,
		&p.FuelUsed,
		&p.LastCheckInAt,
		&p.Achievements,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return achievement.UserProgress{}, ErrUserNotFound
		}
		return achievement.UserProgress{}, fmt.Errorf("failed to fetch progress: %w", err)
	}
	if p.Achievements == nil {
		p.Achievements = map[string]bool{}
	}
	return p, nil
}

func (s *pgProgressStore) SaveAchievements(ctx context.Context, userID uuid.UUID, mapping map[string]bool) (map[string]bool, error) {
	patch := make(map[string]bool, len(mapping))
	for id, v := range mapping {
		if v {
			patch[id] = true
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous map[string]bool
	err = tx.QueryRow(ctx, `SELECT achievements FROM user_progress WHERE user_id = $1 FOR UPDATE`, userID).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock progress: %w", err)
	}

	_, err = tx.Exec(ctx, `
	UPDATE user_progress
	SET achievements = achievements || $2::jsonb, updated_at = NOW()
	WHERE user_id = $1`, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to merge achievements: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit achievements: %w", err)
	}

	if previous == nil {
		previous = map[string]bool{}
	}
	return previous, nil
}

func (s *pgProgressStore) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM user_progress ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan user ids: %w", err)
	}
	return ids, nil
}
