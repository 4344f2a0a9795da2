package store

import "context"

type PlanStore struct {
	db DB
}

type Plan struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	DailyRate    string `db:"daily_rate"`
	DurationDays int    `db:"duration_days"`
	MinAmount    int64  `db:"min_amount"`
	MaxAmount    int64  `db:"max_amount"`
	IsActive     bool   `db:"is_active"`
	CreatedAt    any    `db:"created_at"`
}

func NewPlanStore(db DB) *PlanStore {
	return &PlanStore{db: db}
}

func (s *PlanStore) ListActive(ctx context.Context) ([]Plan, error) {
	var rows []Plan
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, daily_rate, duration_days, min_amount, max_amount, is_active, created_at
		FROM plans
		WHERE is_active = TRUE
		ORDER BY min_amount ASC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PlanStore) GetActiveByID(ctx context.Context, planID string) (Plan, error) {
	var row Plan
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, daily_rate, duration_days, min_amount, max_amount, is_active, created_at
		FROM plans
		WHERE id = $1 AND is_active = TRUE
	`, planID)
	if err != nil {
		return Plan{}, err
	}
	return row, nil
}
