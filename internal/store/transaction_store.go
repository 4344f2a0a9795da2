package store

import (
	"context"
	"time"
)

type TransactionStore struct {
	db DB
}

type Transaction struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Type        string    `db:"type"`
	Status      string    `db:"status"`
	Amount      int64     `db:"amount"`
	ReferenceID *string   `db:"reference_id"`
	Metadata    string    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}

type TransactionInput struct {
	ID          string
	UserID      string
	Type        string
	Status      string
	Amount      int64
	ReferenceID *string
	Metadata    string
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	query := `
		INSERT INTO transactions (id, user_id, type, status, amount, reference_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.Type, input.Status, input.Amount, input.ReferenceID, input.Metadata)
	return err
}

func (s *TransactionStore) ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]Transaction, error) {
	query := `
		SELECT id, user_id, type, status, amount, reference_id, metadata, created_at
		FROM transactions
		WHERE user_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	var rows []Transaction
	if err := s.db.SelectContext(ctx, &rows, query, userID, txType, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) ListAll(ctx context.Context, limit, offset int) ([]Transaction, error) {
	var rows []Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, status, amount, reference_id, metadata, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
