package store

import (
	"context"
	"time"
)

type InvestmentStore struct {
	db DB
}

type Investment struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	PlanID         string     `db:"plan_id"`
	Amount         int64      `db:"amount"`
	DailyReturn    int64      `db:"daily_return"`
	TotalEarned    int64      `db:"total_earned"`
	DurationDays   int        `db:"duration_days"`
	DaysRemaining  int        `db:"days_remaining"`
	IsActive       bool       `db:"is_active"`
	LastProfitDate *time.Time `db:"last_profit_date"`
	CreatedAt      time.Time  `db:"created_at"`
}

// ActiveInvestment carries the owner's stored timezone alongside the
// investment so the local-hour sweep can bucket without a second query.
type ActiveInvestment struct {
	Investment
	OwnerTimezone string `db:"owner_timezone"`
}

type InvestmentWithUser struct {
	Investment
	Username string `db:"username"`
	Email    string `db:"email"`
	PlanName string `db:"plan_name"`
}

type InvestmentInput struct {
	ID           string
	UserID       string
	PlanID       string
	Amount       int64
	DailyReturn  int64
	DurationDays int
}

func NewInvestmentStore(db DB) *InvestmentStore {
	return &InvestmentStore{db: db}
}

func (s *InvestmentStore) Create(ctx context.Context, tx Execer, input InvestmentInput) error {
	query := `
		INSERT INTO investments
		(id, user_id, plan_id, amount, daily_return, total_earned, duration_days, days_remaining, is_active)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6, TRUE)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.PlanID, input.Amount, input.DailyReturn, input.DurationDays)
	return err
}

func (s *InvestmentStore) GetByID(ctx context.Context, investmentID string) (Investment, error) {
	var row Investment
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, plan_id, amount, daily_return, total_earned,
		       duration_days, days_remaining, is_active, last_profit_date, created_at
		FROM investments
		WHERE id = $1
	`, investmentID)
	if err != nil {
		return Investment{}, err
	}
	return row, nil
}

func (s *InvestmentStore) GetForUpdate(ctx context.Context, tx Getter, investmentID string) (Investment, error) {
	var row Investment
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, plan_id, amount, daily_return, total_earned,
		       duration_days, days_remaining, is_active, last_profit_date, created_at
		FROM investments
		WHERE id = $1
		FOR UPDATE
	`, investmentID)
	if err != nil {
		return Investment{}, err
	}
	return row, nil
}

func (s *InvestmentStore) ListActive(ctx context.Context) ([]ActiveInvestment, error) {
	var rows []ActiveInvestment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT i.id, i.user_id, i.plan_id, i.amount, i.daily_return, i.total_earned,
		       i.duration_days, i.days_remaining, i.is_active, i.last_profit_date, i.created_at,
		       u.timezone AS owner_timezone
		FROM investments i
		JOIN users u ON u.id = i.user_id
		WHERE i.is_active = TRUE
		ORDER BY i.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *InvestmentStore) ListActiveByUser(ctx context.Context, userID string) ([]Investment, error) {
	var rows []Investment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, plan_id, amount, daily_return, total_earned,
		       duration_days, days_remaining, is_active, last_profit_date, created_at
		FROM investments
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *InvestmentStore) ListByUser(ctx context.Context, userID string) ([]Investment, error) {
	var rows []Investment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, plan_id, amount, daily_return, total_earned,
		       duration_days, days_remaining, is_active, last_profit_date, created_at
		FROM investments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *InvestmentStore) ListAllWithUsers(ctx context.Context, limit, offset int) ([]InvestmentWithUser, error) {
	var rows []InvestmentWithUser
	err := s.db.SelectContext(ctx, &rows, `
		SELECT i.id, i.user_id, i.plan_id, i.amount, i.daily_return, i.total_earned,
		       i.duration_days, i.days_remaining, i.is_active, i.last_profit_date, i.created_at,
		       u.username, u.email, p.name AS plan_name
		FROM investments i
		JOIN users u ON u.id = i.user_id
		JOIN plans p ON p.id = i.plan_id
		ORDER BY i.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *InvestmentStore) ApplyAccrual(ctx context.Context, tx Execer, investmentID string, totalEarned int64, daysRemaining int, isActive bool, profitDate time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE investments
		SET total_earned = $1,
		    days_remaining = $2,
		    is_active = $3,
		    last_profit_date = $4,
		    updated_at = NOW()
		WHERE id = $5
	`, totalEarned, daysRemaining, isActive, profitDate, investmentID)
	return err
}
