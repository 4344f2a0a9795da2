package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invest/internal/db"
	"invest/internal/money"
	"invest/internal/store"
	"invest/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

type UserStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.User, error)
	UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error
	SetTimezone(ctx context.Context, userID, timezone string) error
}

type InvestmentStore interface {
	Create(ctx context.Context, tx store.Execer, input store.InvestmentInput) error
	GetForUpdate(ctx context.Context, tx store.Getter, investmentID string) (store.Investment, error)
	ListActive(ctx context.Context) ([]store.ActiveInvestment, error)
	ListActiveByUser(ctx context.Context, userID string) ([]store.Investment, error)
	ApplyAccrual(ctx context.Context, tx store.Execer, investmentID string, totalEarned int64, daysRemaining int, isActive bool, profitDate time.Time) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// AccrualService credits daily returns on active investments. The expected
// cumulative earning for an investment is completedDays * dailyReturn, where
// completedDays counts UTC calendar-day boundaries crossed since creation,
// clamped to [1, durationDays]. Whatever the trigger (scheduler sweep,
// local-hour sweep, login check, admin run), crediting is always the
// shortfall between expected and already-credited earnings, so a missed
// tick is healed in one lump by the next.
type AccrualService struct {
	txRunner     db.TxRunner
	users        UserStore
	investments  InvestmentStore
	transactions TransactionStore
	hub          BalanceHub
	profitHour   int
	now          func() time.Time
}

func NewAccrualService(txRunner db.TxRunner, users UserStore, investments InvestmentStore, transactions TransactionStore, hub BalanceHub, profitHour int) *AccrualService {
	return &AccrualService{
		txRunner:     txRunner,
		users:        users,
		investments:  investments,
		transactions: transactions,
		hub:          hub,
		profitHour:   profitHour,
		now:          time.Now,
	}
}

// reconcile brings a single investment up to its expected cumulative earning
// and returns the amount credited. The investment and owner rows are locked
// FOR UPDATE inside one transaction, so concurrent triggers against the same
// investment serialize instead of double-crediting.
func (s *AccrualService) reconcile(ctx context.Context, investmentID string, now time.Time) (int64, error) {
	var credited int64
	var ownerID string
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		credited = 0
		inv, err := s.investments.GetForUpdate(ctx, tx, investmentID)
		if err != nil {
			return fmt.Errorf("load investment %s: %w", investmentID, err)
		}
		if !inv.IsActive || inv.DaysRemaining <= 0 {
			return nil
		}
		completed := completedDays(inv.CreatedAt, now, inv.DurationDays)
		expected := int64(completed) * inv.DailyReturn
		if expected <= inv.TotalEarned {
			return nil
		}
		shortfall := expected - inv.TotalEarned
		owner, err := s.users.GetForUpdate(ctx, tx, inv.UserID)
		if err != nil {
			return fmt.Errorf("load owner of investment %s: %w", investmentID, err)
		}
		newBalance := owner.Balance + shortfall
		if err := s.users.UpdateBalance(ctx, tx, owner.ID, newBalance); err != nil {
			return err
		}
		remaining := inv.DurationDays - completed
		if err := s.investments.ApplyAccrual(ctx, tx, inv.ID, expected, remaining, remaining > 0, utcDate(now)); err != nil {
			return err
		}
		metadata, _ := json.Marshal(map[string]any{
			"investment_id":  inv.ID,
			"completed_days": completed,
		})
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:          uuid.NewString(),
			UserID:      owner.ID,
			Type:        "profit",
			Status:      "completed",
			Amount:      shortfall,
			ReferenceID: &inv.ID,
			Metadata:    string(metadata),
		}); err != nil {
			return err
		}
		credited = shortfall
		ownerID = owner.ID
		balanceAfter = newBalance
		return nil
	})
	if err != nil {
		return 0, err
	}
	if credited > 0 {
		s.hub.BroadcastBalance(ownerID, websocket.BalanceUpdate{
			Balance:  money.FormatMinor(balanceAfter),
			Credited: money.FormatMinor(credited),
		})
	}
	return credited, nil
}

// ReconcileAllDue sweeps every active investment. A failing item is logged
// and skipped; the sweep never aborts. Also serves the admin-triggered run.
func (s *AccrualService) ReconcileAllDue(ctx context.Context) (int, int64) {
	investments, err := s.investments.ListActive(ctx)
	if err != nil {
		log.WithError(err).Error("accrual sweep: listing active investments failed")
		return 0, 0
	}
	now := s.now()
	processed := 0
	var total int64
	for _, inv := range investments {
		credited, err := s.reconcile(ctx, inv.ID, now)
		if err != nil {
			log.WithError(err).WithField("investment_id", inv.ID).Warn("accrual sweep: skipping investment")
			continue
		}
		processed++
		total += credited
	}
	if total > 0 {
		log.WithFields(log.Fields{"processed": processed, "credited": money.FormatMinor(total)}).Info("accrual sweep credited returns")
	}
	return processed, total
}

// CheckUserProfits runs the catch-up for one user's investments. Best-effort:
// faults are logged, never surfaced, and the caller always gets an amount.
func (s *AccrualService) CheckUserProfits(ctx context.Context, userID string) (int64, string) {
	investments, err := s.investments.ListActiveByUser(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("profit check: listing investments failed")
		return 0, "profits are up to date"
	}
	now := s.now()
	var total int64
	for _, inv := range investments {
		credited, err := s.reconcile(ctx, inv.ID, now)
		if err != nil {
			log.WithError(err).WithField("investment_id", inv.ID).Warn("profit check: skipping investment")
			continue
		}
		total += credited
	}
	if total > 0 {
		return total, fmt.Sprintf("credited %s in daily returns", money.FormatMinor(total))
	}
	return 0, "profits are up to date"
}

// ReconcileLocalHourDue fires the catch-up for investments whose owner's
// local clock is inside the configured profit hour and that have not been
// credited yet today. The local hour only gates when reconcile runs; the
// crediting formula is the same shortfall policy as everywhere else, and
// last_profit_date is just a per-day gate on top of an idempotent operation.
func (s *AccrualService) ReconcileLocalHourDue(ctx context.Context) {
	investments, err := s.investments.ListActive(ctx)
	if err != nil {
		log.WithError(err).Error("local-hour sweep: listing active investments failed")
		return
	}
	now := s.now()
	for _, inv := range investments {
		tz := inv.OwnerTimezone
		if tz == "" {
			tz = "UTC"
			if err := s.users.SetTimezone(ctx, inv.UserID, tz); err != nil {
				log.WithError(err).WithField("user_id", inv.UserID).Warn("local-hour sweep: persisting default timezone failed")
			}
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.WithField("timezone", tz).WithField("user_id", inv.UserID).Warn("local-hour sweep: unknown timezone, using UTC")
			loc = time.UTC
		}
		if now.In(loc).Hour() != s.profitHour {
			continue
		}
		if inv.LastProfitDate != nil && inv.LastProfitDate.Equal(utcDate(now)) {
			continue
		}
		if _, err := s.reconcile(ctx, inv.ID, now); err != nil {
			log.WithError(err).WithField("investment_id", inv.ID).Warn("local-hour sweep: skipping investment")
		}
	}
}

// completedDays counts calendar-day boundaries crossed between the creation
// date and now, both normalized to UTC dates. A same-day investment counts
// as one completed day, and the count never exceeds the plan horizon.
func completedDays(createdAt, now time.Time, horizon int) int {
	days := int(utcDate(now).Sub(utcDate(createdAt)) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	if days > horizon {
		days = horizon
	}
	return days
}

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
