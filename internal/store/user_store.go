package store

import (
	"context"
	"time"
)

type UserStore struct {
	db DB
}

type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Balance      int64     `db:"balance"`
	Timezone     string    `db:"timezone"`
	CreatedAt    time.Time `db:"created_at"`
}

type UserSummary struct {
	ID                string `db:"id"`
	Username          string `db:"username"`
	Email             string `db:"email"`
	Balance           int64  `db:"balance"`
	Timezone          string `db:"timezone"`
	ActiveInvestments int    `db:"active_investments"`
	TotalInvested     int64  `db:"total_invested"`
	CreatedAt         any    `db:"created_at"`
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash, timezone string) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, balance, timezone)
		VALUES ($1, $2, $3, $4, 0, $5)
	`
	_, err := tx.ExecContext(ctx, query, id, username, email, passwordHash, timezone)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	var row User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, balance, timezone, created_at
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		return User{}, err
	}
	return row, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (User, error) {
	var row User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, balance, timezone, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		return User{}, err
	}
	return row, nil
}

func (s *UserStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (User, error) {
	var row User
	err := tx.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, balance, timezone, created_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return User{}, err
	}
	return row, nil
}

func (s *UserStore) UpdateBalance(ctx context.Context, tx Execer, userID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, userID)
	return err
}

func (s *UserStore) AdjustBalance(ctx context.Context, tx Execer, userID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`, delta, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *UserStore) SetTimezone(ctx context.Context, userID, timezone string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET timezone = $1, updated_at = NOW()
		WHERE id = $2
	`, timezone, userID)
	return err
}

func (s *UserStore) ListAll(ctx context.Context, limit, offset int) ([]UserSummary, error) {
	var rows []UserSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.id,
		       u.username,
		       u.email,
		       u.balance,
		       u.timezone,
		       COUNT(i.id) FILTER (WHERE i.is_active) AS active_investments,
		       COALESCE(SUM(i.amount), 0) AS total_invested,
		       u.created_at
		FROM users u
		LEFT JOIN investments i ON i.user_id = u.id
		GROUP BY u.id, u.username, u.email, u.balance, u.timezone, u.created_at
		ORDER BY u.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
