package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"nyraAPI/internal/achievement"
	"nyraAPI/internal/fuel"
	"nyraAPI/internal/notification"
)

type NotificationService struct {
	db         *pgxpool.Pool
	dispatcher *NotificationDispatcher
	logger     *zap.Logger
}

func NewNotificationService(db *pgxpool.Pool, logger *zap.Logger) *NotificationService {
	s := &NotificationService{db: db, logger: logger.Named("notifications")}
	s.dispatcher = NewNotificationDispatcher(s, 5, 100, logger)
	return s
}

func (s *NotificationService) SetPushProvider(provider PushNotificationProvider) {
	s.dispatcher.SetPushProvider(provider)
}

func (s *NotificationService) Stop() {
	s.dispatcher.Stop()
}

// CreateAchievementNotifications stores one notification per achievement, in
// the given order, and queues them for push delivery.
func (s *NotificationService) CreateAchievementNotifications(ctx context.Context, userID uuid.UUID, unlocked []achievement.Achievement) error {
	notifs := make([]*notification.Notification, 0, len(unlocked))
	for _, a := range unlocked {
		notifs = append(notifs, &notification.Notification{
			ID:     uuid.New(),
			UserID: userID,
			Type:   notification.NotificationAchievement,
			Title:  a.Icon + " " + a.Title,
			Body:   a.Description,
			Data: map[string]any{
				"achievement_id":   a.ID,
				"icon":             a.Icon,
				"dismiss_after_ms": strconv.FormatInt(notification.DismissAfter.Milliseconds(), 10),
			},
			Status: notification.StatusPending,
		})
	}
	return s.createAndDispatch(ctx, userID, notifs)
}

func (s *NotificationService) CreateFuelNotification(ctx context.Context, userID uuid.UUID, pkg fuel.Package, amount int) error {
	n := &notification.Notification{
		ID:     uuid.New(),
		UserID: userID,
		Type:   notification.NotificationFuel,
		Title:  "⛽ Fuel added",
		Body:   fmt.Sprintf("%d fuel was added to your tank", amount),
		Data: map[string]any{
			"package": string(pkg),
			"amount":  strconv.Itoa(amount),
		},
		Status: notification.StatusPending,
	}
	return s.createAndDispatch(ctx, userID, []*notification.Notification{n})
}

func (s *NotificationService) createAndDispatch(ctx context.Context, userID uuid.UUID, notifs []*notification.Notification) error {
	if len(notifs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range notifs {
		batch.Queue(`
		INSERT INTO notifications (id, user_id, type, title, body, data, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
			n.ID, n.UserID, n.Type, n.Title, n.Body, n.Data, n.Status,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&n.CreatedAt)
		})
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert notifications: %w", err)
	}

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(&DispatchJob{Notifications: notifs, Tokens: tokens})
	return nil
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowToStructByPos[notification.DeviceToken])
	if err != nil {
		return nil, fmt.Errorf("failed to scan device tokens: %w", err)
	}
	return tokens, nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, page, pageSize int) (*notification.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, user_id, type, title, body, data, status, is_read, created_at
	FROM notifications
	WHERE user_id = $1
	ORDER BY created_at DESC, seq DESC
	LIMIT $2 OFFSET $3`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	list := []*notification.Notification{}
	for rows.Next() {
		n := &notification.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Data, &n.Status, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	resp := &notification.NotificationListResponse{
		Notifications: list,
		Page:          page,
		PageSize:      pageSize,
	}
	err = s.db.QueryRow(ctx, `
	SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT is_read)
	FROM notifications WHERE user_id = $1`, userID).Scan(&resp.TotalCount, &resp.UnreadCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	return resp, nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) error {
	_, err := s.db.Exec(ctx, `
	INSERT INTO device_tokens (user_id, token, platform)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, token) DO UPDATE SET platform = EXCLUDED.platform, updated_at = NOW()`,
		userID, req.Token, req.Platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *NotificationService) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE notifications SET status = 'sent', sent_at = NOW() WHERE id = $1`, id)
	return err
}

func (s *NotificationService) MarkFailed(ctx context.Context, id uuid.UUID, reason error) error {
	_, err := s.db.Exec(ctx, `UPDATE notifications SET status = 'failed', failure_reason = $2 WHERE id = $1`, id, reason.Error())
	return err
}
