package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nyraAPI/internal/chat"
)

type pgChatStore struct {
	db *pgxpool.Pool
}

func NewChatStore(db *pgxpool.Pool) ChatStore {
	return &pgChatStore{db: db}
}

func (s *pgChatStore) RecentTurns(ctx context.Context, userID uuid.UUID, limit int) ([]chat.Turn, error) {
	if limit <= 0 {
		return []chat.Turn{}, nil
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, sender, content, created_at
	FROM chat_messages
	WHERE user_id = $1
	ORDER BY id DESC
	LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	turns, err := pgx.CollectRows(rows, pgx.RowToStructByPos[chat.Turn])
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	slices.Reverse(turns)
	return turns, nil
}

func (s *pgChatStore) AppendUserTurn(ctx context.Context, userID uuid.UUID, content string, cost int) (chat.Turn, int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return chat.Turn{}, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int
	err = tx.QueryRow(ctx, `
	UPDATE user_progress
	SET message_count = message_count + 1,
		fuel_balance = fuel_balance - $2,
		fuel_used = fuel_used + $2,
		updated_at = NOW()
	WHERE user_id = $1 AND fuel_balance >= $2
	RETURNING fuel_balance`, userID, cost).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if qErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM user_progress WHERE user_id = $1)`, userID).Scan(&exists); qErr == nil && !exists {
				return chat.Turn{}, 0, ErrUserNotFound
			}
			return chat.Turn{}, 0, ErrInsufficientFuel
		}
		return chat.Turn{}, 0, fmt.Errorf("failed to charge fuel: %w", err)
	}

	turn := chat.Turn{Sender: chat.SenderUser, Content: content}
	err = tx.QueryRow(ctx, `
	INSERT INTO chat_messages (user_id, sender, content)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`, userID, turn.Sender, content).Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		return chat.Turn{}, 0, fmt.Errorf("failed to store message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return chat.Turn{}, 0, fmt.Errorf("failed to commit message: %w", err)
	}
	return turn, balance, nil
}

func (s *pgChatStore) AppendCompanionTurn(ctx context.Context, userID uuid.UUID, content string) (chat.Turn, error) {
	turn := chat.Turn{Sender: chat.SenderCompanion, Content: content}
	err := s.db.QueryRow(ctx, `
	INSERT INTO chat_messages (user_id, sender, content)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`, userID, turn.Sender, content).Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		return chat.Turn{}, fmt.Errorf("failed to store reply: %w", err)
	}
	return turn, nil
}

func (s *pgChatStore) RefundFuel(ctx context.Context, userID uuid.UUID, cost int) error {
	_, err := s.db.Exec(ctx, `
	UPDATE user_progress
	SET fuel_balance = fuel_balance + $2,
		fuel_used = GREATEST(fuel_used - $2, 0),
		updated_at = NOW()
	WHERE user_id = $1`, userID, cost)
	if err != nil {
		return fmt.Errorf("failed to refund fuel: %w", err)
	}
	return nil
}
