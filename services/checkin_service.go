package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"nyraAPI/internal/achievement"
	"nyraAPI/internal/checkin"
	"nyraAPI/internal/metrics"
)

type CheckInService struct {
	db       *pgxpool.Pool
	progress ProgressRefresher
	clock    func() time.Time
	logger   *zap.Logger
}

func NewCheckInService(db *pgxpool.Pool, progress ProgressRefresher, logger *zap.Logger) *CheckInService {
	return &CheckInService{
		db:       db,
		progress: progress,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("checkin"),
	}
}

func (s *CheckInService) Status(ctx context.Context, userID uuid.UUID) (*checkin.Status, error) {
	st := &checkin.Status{Question: checkin.DailyQuestion}
	err := s.db.QueryRow(ctx, `
	SELECT check_in_count, check_in_streak, last_check_in_at
	FROM user_progress WHERE user_id = $1`, userID).Scan(&st.CheckInCount, &st.Streak, &st.LastCheckInAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load check-in status: %w", err)
	}

	now := s.clock()
	if st.LastCheckInAt != nil {
		st.CheckedInToday = checkin.Day(*st.LastCheckInAt).Equal(checkin.Day(now))
		if !st.CheckedInToday && !checkin.Day(*st.LastCheckInAt).Equal(checkin.Day(now).AddDate(0, 0, -1)) {
			st.Streak = 0
		}
	}
	return st, nil
}

// CheckIn records today's answer. A second check-in on the same UTC day fails
// with ErrAlreadyCheckedIn and leaves the counters untouched.
func (s *CheckInService) CheckIn(ctx context.Context, userID uuid.UUID, answer string) (*checkin.Result, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrEmptyAnswer
	}
	now := s.clock()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		count  int
		streak int
		last   *time.Time
	)
	err = tx.QueryRow(ctx, `
	SELECT check_in_count, check_in_streak, last_check_in_at
	FROM user_progress WHERE user_id = $1 FOR UPDATE`, userID).Scan(&count, &streak, &last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock progress: %w", err)
	}

	tag, err := tx.Exec(ctx, `
	INSERT INTO check_ins (user_id, day, question, answer)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, day) DO NOTHING`, userID, checkin.Day(now), checkin.DailyQuestion, answer)
	if err != nil {
		return nil, fmt.Errorf("failed to store check-in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyCheckedIn
	}

	streak = checkin.NextStreak(last, streak, now)
	count++
	_, err = tx.Exec(ctx, `
	UPDATE user_progress
	SET check_in_count = $2, check_in_streak = $3, last_check_in_at = $4, updated_at = NOW()
	WHERE user_id = $1`, userID, count, streak, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit check-in: %w", err)
	}
	metrics.CheckIns.Inc()

	unlocked, err := s.progress.Refresh(ctx, userID)
	if err != nil {
		s.logger.Warn("progress refresh failed", zap.String("user_id", userID.String()), zap.Error(err))
		unlocked = []achievement.Achievement{}
	}

	return &checkin.Result{
		Status: checkin.Status{
			Question:       checkin.DailyQuestion,
			CheckedInToday: true,
			CheckInCount:   count,
			Streak:         streak,
			LastCheckInAt:  &now,
		},
		Unlocked: unlocked,
	}, nil
}
