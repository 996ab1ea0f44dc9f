package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"nyraAPI/internal/fuel"
	"nyraAPI/internal/metrics"
)

type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, userID uuid.UUID, pkg fuel.Package) (*fuel.Checkout, error)
}

type FuelNotifier interface {
	CreateFuelNotification(ctx context.Context, userID uuid.UUID, pkg fuel.Package, amount int) error
}

type FuelService struct {
	db       *pgxpool.Pool
	checkout CheckoutProvider
	notifier FuelNotifier
	amounts  map[fuel.Package]int
	logger   *zap.Logger
}

// NewFuelService builds the service. checkout may be nil when no payment
// provider is configured.
func NewFuelService(db *pgxpool.Pool, checkout CheckoutProvider, notifier FuelNotifier, fullAmount, refillAmount int, logger *zap.Logger) *FuelService {
	return &FuelService{
		db:       db,
		checkout: checkout,
		notifier: notifier,
		amounts: map[fuel.Package]int{
			fuel.PackageFull:   fullAmount,
			fuel.PackageRefill: refillAmount,
		},
		logger: logger.Named("fuel"),
	}
}

func (s *FuelService) GetFuel(ctx context.Context, userID uuid.UUID) (*fuel.Fuel, error) {
	f := &fuel.Fuel{}
	err := s.db.QueryRow(ctx, `
	SELECT fuel_balance, fuel_used, fuel_plan
	FROM user_progress WHERE user_id = $1`, userID).Scan(&f.Balance, &f.Used, &f.Plan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load fuel: %w", err)
	}
	f.Available = fuel.Available(f.Plan)
	return f, nil
}

func (s *FuelService) Checkout(ctx context.Context, userID uuid.UUID, pkg fuel.Package) (*fuel.Checkout, error) {
	if s.checkout == nil {
		return nil, ErrPaymentsDisabled
	}
	current, err := s.GetFuel(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !fuel.Offered(current.Plan, pkg) {
		return nil, ErrPlanNotAvailable
	}
	return s.checkout.CreateCheckout(ctx, userID, pkg)
}

// Credit applies a paid purchase once. Webhook replays for the same provider
// transaction report false and change nothing.
func (s *FuelService) Credit(ctx context.Context, p fuel.Purchase) (bool, error) {
	amount, ok := s.amounts[p.Package]
	if !ok {
		return false, fmt.Errorf("unknown fuel package %q", p.Package)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
	INSERT INTO fuel_purchases (provider, transaction_id, user_id, plan, amount)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, transaction_id) DO NOTHING`,
		p.Provider, p.TransactionID, p.UserID, p.Package, amount)
	if err != nil {
		return false, fmt.Errorf("failed to record purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Info("purchase already credited",
			zap.String("provider", p.Provider),
			zap.String("transaction_id", p.TransactionID))
		return false, nil
	}

	tag, err = tx.Exec(ctx, `
	UPDATE user_progress
	SET fuel_balance = fuel_balance + $2,
		fuel_plan = CASE WHEN $3 THEN 'premium' ELSE fuel_plan END,
		updated_at = NOW()
	WHERE user_id = $1`, p.UserID, amount, p.Package == fuel.PackageFull)
	if err != nil {
		return false, fmt.Errorf("failed to credit fuel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit purchase: %w", err)
	}

	metrics.FuelCredits.WithLabelValues(p.Provider, string(p.Package)).Inc()
	s.logger.Info("fuel credited",
		zap.String("user_id", p.UserID.String()),
		zap.String("package", string(p.Package)),
		zap.Int("amount", amount))

	if s.notifier != nil {
		if err := s.notifier.CreateFuelNotification(ctx, p.UserID, p.Package, amount); err != nil {
			s.logger.Warn("failed to create fuel notification", zap.Error(err))
		}
	}
	return true, nil
}
