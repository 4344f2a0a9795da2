package store

import (
	"context"
	"time"
)

type WithdrawalStore struct {
	db DB
}

type Withdrawal struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	Amount    int64      `db:"amount"`
	Address   string     `db:"address"`
	Status    string     `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
	DecidedAt *time.Time `db:"decided_at"`
}

type WithdrawalWithUser struct {
	Withdrawal
	Username string `db:"username"`
	Email    string `db:"email"`
}

func NewWithdrawalStore(db DB) *WithdrawalStore {
	return &WithdrawalStore{db: db}
}

func (s *WithdrawalStore) Create(ctx context.Context, tx Execer, id, userID string, amount int64, address string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawals (id, user_id, amount, address, status)
		VALUES ($1, $2, $3, $4, 'pending')
	`, id, userID, amount, address)
	return err
}

func (s *WithdrawalStore) GetForUpdate(ctx context.Context, tx Getter, id string) (Withdrawal, error) {
	var row Withdrawal
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, amount, address, status, created_at, decided_at
		FROM withdrawals
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err != nil {
		return Withdrawal{}, err
	}
	return row, nil
}

func (s *WithdrawalStore) ListByUser(ctx context.Context, userID string) ([]Withdrawal, error) {
	var rows []Withdrawal
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, amount, address, status, created_at, decided_at
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WithdrawalStore) ListAllWithUsers(ctx context.Context, status string, limit, offset int) ([]WithdrawalWithUser, error) {
	var rows []WithdrawalWithUser
	err := s.db.SelectContext(ctx, &rows, `
		SELECT w.id, w.user_id, w.amount, w.address, w.status, w.created_at, w.decided_at,
		       u.username, u.email
		FROM withdrawals w
		JOIN users u ON u.id = w.user_id
		WHERE ($1 = '' OR w.status = $1)
		ORDER BY w.created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WithdrawalStore) SetStatus(ctx context.Context, tx Execer, id, status string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE withdrawals
		SET status = $1, decided_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`, status, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
