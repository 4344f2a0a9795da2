package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"invest/internal/db"
	"invest/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrPlanNotFound      = errors.New("plan not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAmountOutOfRange  = errors.New("amount outside plan limits")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

type PlanStore interface {
	ListActive(ctx context.Context) ([]store.Plan, error)
	GetActiveByID(ctx context.Context, planID string) (store.Plan, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// InvestmentService handles the purchase path: principal is deducted from the
// wallet atomically with investment creation, and the plan's rate and horizon
// are snapshotted onto the investment so later plan edits cannot change a
// running investment's payout.
type InvestmentService struct {
	txRunner     db.TxRunner
	users        UserStore
	plans        PlanStore
	investments  InvestmentStore
	transactions TransactionStore
	audit        AuditStore
}

func NewInvestmentService(txRunner db.TxRunner, users UserStore, plans PlanStore, investments InvestmentStore, transactions TransactionStore, audit AuditStore) *InvestmentService {
	return &InvestmentService{
		txRunner:     txRunner,
		users:        users,
		plans:        plans,
		investments:  investments,
		transactions: transactions,
		audit:        audit,
	}
}

type InvestRequest struct {
	UserID string
	PlanID string
	Amount int64
}

func (s *InvestmentService) Invest(ctx context.Context, req InvestRequest) (string, error) {
	if req.Amount <= 0 {
		return "", ErrInvalidAmount
	}
	plan, err := s.plans.GetActiveByID(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPlanNotFound
		}
		return "", err
	}
	if req.Amount < plan.MinAmount || req.Amount > plan.MaxAmount {
		return "", ErrAmountOutOfRange
	}
	dailyReturn, err := dailyReturnFor(req.Amount, plan.DailyRate)
	if err != nil {
		return "", fmt.Errorf("plan %s has malformed rate %q: %w", plan.ID, plan.DailyRate, err)
	}
	investmentID := uuid.NewString()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.users.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user.Balance < req.Amount {
			return ErrInsufficientFunds
		}
		if err := s.users.UpdateBalance(ctx, tx, user.ID, user.Balance-req.Amount); err != nil {
			return err
		}
		if err := s.investments.Create(ctx, tx, store.InvestmentInput{
			ID:           investmentID,
			UserID:       req.UserID,
			PlanID:       plan.ID,
			Amount:       req.Amount,
			DailyReturn:  dailyReturn,
			DurationDays: plan.DurationDays,
		}); err != nil {
			return err
		}
		metadata, _ := json.Marshal(map[string]string{
			"plan_id":   plan.ID,
			"plan_name": plan.Name,
		})
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:          uuid.NewString(),
			UserID:      req.UserID,
			Type:        "investment",
			Status:      "completed",
			Amount:      req.Amount,
			ReferenceID: &investmentID,
			Metadata:    string(metadata),
		}); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.UserID, "invest", "investment", investmentID, string(metadata))
	})
	if err != nil {
		return "", err
	}
	return investmentID, nil
}

// dailyReturnFor computes amount * rate / 100 in minor units, banker-rounded.
func dailyReturnFor(amount int64, rate string) (int64, error) {
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return 0, err
	}
	return decimal.NewFromInt(amount).Mul(parsed).Div(decimal.NewFromInt(100)).RoundBank(0).IntPart(), nil
}
