package handlers

import (
	"context"

	"invest/internal/services"
	"invest/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash, timezone string) error
	GetByEmail(ctx context.Context, email string) (store.User, error)
	GetByID(ctx context.Context, userID string) (store.User, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.User, error)
	UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error
	ListAll(ctx context.Context, limit, offset int) ([]store.UserSummary, error)
}

type PlanStore interface {
	ListActive(ctx context.Context) ([]store.Plan, error)
}

type InvestmentStore interface {
	ListByUser(ctx context.Context, userID string) ([]store.Investment, error)
	ListAllWithUsers(ctx context.Context, limit, offset int) ([]store.InvestmentWithUser, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]store.Transaction, error)
	ListAll(ctx context.Context, limit, offset int) ([]store.Transaction, error)
}

type WithdrawalStore interface {
	Create(ctx context.Context, tx store.Execer, id, userID string, amount int64, address string) error
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (store.Withdrawal, error)
	ListByUser(ctx context.Context, userID string) ([]store.Withdrawal, error)
	ListAllWithUsers(ctx context.Context, status string, limit, offset int) ([]store.WithdrawalWithUser, error)
	SetStatus(ctx context.Context, tx store.Execer, id, status string) (int64, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type AccrualService interface {
	CheckUserProfits(ctx context.Context, userID string) (int64, string)
	ReconcileAllDue(ctx context.Context) (int, int64)
}

type InvestmentService interface {
	Invest(ctx context.Context, req services.InvestRequest) (string, error)
}
