package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"invest/internal/store"
	"invest/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubUserStore struct {
	getForUpdateFn  func(ctx context.Context, tx store.Getter, userID string) (store.User, error)
	updateBalanceFn func(ctx context.Context, tx store.Execer, userID string, balance int64) error
	setTimezoneFn   func(ctx context.Context, userID, timezone string) error
}

func (s stubUserStore) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.User, error) {
	if s.getForUpdateFn == nil {
		return store.User{ID: userID}, nil
	}
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubUserStore) UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, tx, userID, balance)
}

func (s stubUserStore) SetTimezone(ctx context.Context, userID, timezone string) error {
	if s.setTimezoneFn == nil {
		return nil
	}
	return s.setTimezoneFn(ctx, userID, timezone)
}

type stubInvestmentStore struct {
	createFn           func(ctx context.Context, tx store.Execer, input store.InvestmentInput) error
	getForUpdateFn     func(ctx context.Context, tx store.Getter, investmentID string) (store.Investment, error)
	listActiveFn       func(ctx context.Context) ([]store.ActiveInvestment, error)
	listActiveByUserFn func(ctx context.Context, userID string) ([]store.Investment, error)
	applyAccrualFn     func(ctx context.Context, tx store.Execer, investmentID string, totalEarned int64, daysRemaining int, isActive bool, profitDate time.Time) error
}

func (s stubInvestmentStore) Create(ctx context.Context, tx store.Execer, input store.InvestmentInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubInvestmentStore) GetForUpdate(ctx context.Context, tx store.Getter, investmentID string) (store.Investment, error) {
	return s.getForUpdateFn(ctx, tx, investmentID)
}

func (s stubInvestmentStore) ListActive(ctx context.Context) ([]store.ActiveInvestment, error) {
	if s.listActiveFn == nil {
		return nil, nil
	}
	return s.listActiveFn(ctx)
}

func (s stubInvestmentStore) ListActiveByUser(ctx context.Context, userID string) ([]store.Investment, error) {
	if s.listActiveByUserFn == nil {
		return nil, nil
	}
	return s.listActiveByUserFn(ctx, userID)
}

func (s stubInvestmentStore) ApplyAccrual(ctx context.Context, tx store.Execer, investmentID string, totalEarned int64, daysRemaining int, isActive bool, profitDate time.Time) error {
	if s.applyAccrualFn == nil {
		return nil
	}
	return s.applyAccrualFn(ctx, tx, investmentID, totalEarned, daysRemaining, isActive, profitDate)
}

type stubTransactionStore struct {
	createFn func(ctx context.Context, tx store.Execer, input store.TransactionInput) error
}

func (s stubTransactionStore) Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

type stubHub struct {
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.calls = append(s.calls, update)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func daysAgo(days int) time.Time {
	return testNow.AddDate(0, 0, -days)
}

func TestReconcileCreditsShortfall(t *testing.T) {
	var balanceWritten int64
	var accrued struct {
		totalEarned   int64
		daysRemaining int
		isActive      bool
	}
	var createdTx store.TransactionInput
	hub := &stubHub{}
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.User, error) {
			return store.User{ID: userID, Balance: 1000}, nil
		},
		updateBalanceFn: func(_ context.Context, _ store.Execer, _ string, balance int64) error {
			balanceWritten = balance
			return nil
		},
	}, stubInvestmentStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			return store.Investment{
				ID: id, UserID: "user-1", DailyReturn: 10, TotalEarned: 20,
				DurationDays: 30, DaysRemaining: 28, IsActive: true,
				CreatedAt: daysAgo(5),
			}, nil
		},
		applyAccrualFn: func(_ context.Context, _ store.Execer, _ string, totalEarned int64, daysRemaining int, isActive bool, _ time.Time) error {
			accrued.totalEarned = totalEarned
			accrued.daysRemaining = daysRemaining
			accrued.isActive = isActive
			return nil
		},
	}, stubTransactionStore{
		createFn: func(_ context.Context, _ store.Execer, input store.TransactionInput) error {
			createdTx = input
			return nil
		},
	}, hub, 1)

	credited, err := service.reconcile(context.Background(), "inv-1", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 30 {
		t.Fatalf("expected credit of 30, got %d", credited)
	}
	if balanceWritten != 1030 {
		t.Fatalf("expected balance 1030, got %d", balanceWritten)
	}
	if accrued.totalEarned != 50 || accrued.daysRemaining != 25 || !accrued.isActive {
		t.Fatalf("unexpected accrual state: %+v", accrued)
	}
	if createdTx.Type != "profit" || createdTx.Amount != 30 {
		t.Fatalf("unexpected transaction: %#v", createdTx)
	}
	if len(hub.calls) != 1 || hub.calls[0].Credited != "0.30" {
		t.Fatalf("unexpected broadcasts: %#v", hub.calls)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{
		updateBalanceFn: func(context.Context, store.Execer, string, int64) error {
			t.Fatal("balance must not change when nothing is owed")
			return nil
		},
	}, stubInvestmentStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			return store.Investment{
				ID: id, UserID: "user-1", DailyReturn: 10, TotalEarned: 50,
				DurationDays: 30, DaysRemaining: 25, IsActive: true,
				CreatedAt: daysAgo(5),
			}, nil
		},
	}, stubTransactionStore{}, &stubHub{}, 1)

	credited, err := service.reconcile(context.Background(), "inv-1", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 0 {
		t.Fatalf("expected no credit, got %d", credited)
	}
}

func TestReconcileClampsToHorizon(t *testing.T) {
	var accruedTotal int64
	var accruedActive bool
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{}, stubInvestmentStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			return store.Investment{
				ID: id, UserID: "user-1", DailyReturn: 125, TotalEarned: 1250,
				DurationDays: 30, DaysRemaining: 20, IsActive: true,
				CreatedAt: daysAgo(35),
			}, nil
		},
		applyAccrualFn: func(_ context.Context, _ store.Execer, _ string, totalEarned int64, _ int, isActive bool, _ time.Time) error {
			accruedTotal = totalEarned
			accruedActive = isActive
			return nil
		},
	}, stubTransactionStore{}, &stubHub{}, 1)

	credited, err := service.reconcile(context.Background(), "inv-1", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 2500 {
		t.Fatalf("expected credit of 2500, got %d", credited)
	}
	if accruedTotal != 3750 {
		t.Fatalf("expected total earned capped at 3750, got %d", accruedTotal)
	}
	if accruedActive {
		t.Fatal("expected investment to be deactivated at horizon")
	}
}

func TestReconcileSameDayCountsOneDay(t *testing.T) {
	var accruedTotal int64
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{}, stubInvestmentStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			return store.Investment{
				ID: id, UserID: "user-1", DailyReturn: 125, TotalEarned: 0,
				DurationDays: 30, DaysRemaining: 30, IsActive: true,
				CreatedAt: testNow.Add(-2 * time.Hour),
			}, nil
		},
		applyAccrualFn: func(_ context.Context, _ store.Execer, _ string, totalEarned int64, _ int, _ bool, _ time.Time) error {
			accruedTotal = totalEarned
			return nil
		},
	}, stubTransactionStore{}, &stubHub{}, 1)

	credited, err := service.reconcile(context.Background(), "inv-1", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 125 || accruedTotal != 125 {
		t.Fatalf("expected one day of returns (125), got credit %d total %d", credited, accruedTotal)
	}
}

func TestReconcileInactiveIsNoop(t *testing.T) {
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (store.User, error) {
			t.Fatal("owner must not be loaded for inactive investment")
			return store.User{}, nil
		},
	}, stubInvestmentStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			return store.Investment{
				ID: id, UserID: "user-1", DailyReturn: 10, TotalEarned: 300,
				DurationDays: 30, DaysRemaining: 0, IsActive: false,
				CreatedAt: daysAgo(40),
			}, nil
		},
	}, stubTransactionStore{}, &stubHub{}, 1)

	credited, err := service.reconcile(context.Background(), "inv-1", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 0 {
		t.Fatalf("expected no credit, got %d", credited)
	}
}

func TestReconcileAllDueSkipsFailures(t *testing.T) {
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.User, error) {
			return store.User{ID: userID, Balance: 0}, nil
		},
	}, stubInvestmentStore{
		listActiveFn: func(context.Context) ([]store.ActiveInvestment, error) {
			return []store.ActiveInvestment{
				{Investment: store.Investment{ID: "inv-ok"}},
				{Investment: store.Investment{ID: "inv-bad"}},
			}, nil
		},
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			if id == "inv-bad" {
				return store.Investment{}, errors.New("boom")
			}
			return store.Investment{
				ID: id, UserID: "user-1", DailyReturn: 125, TotalEarned: 0,
				DurationDays: 30, DaysRemaining: 30, IsActive: true,
				CreatedAt: daysAgo(10),
			}, nil
		},
	}, stubTransactionStore{}, &stubHub{}, 1)
	service.now = func() time.Time { return testNow }

	processed, total := service.ReconcileAllDue(context.Background())
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	if total != 1250 {
		t.Fatalf("expected 1250 credited for 10 days, got %d", total)
	}
}

func TestCheckUserProfits(t *testing.T) {
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.User, error) {
			return store.User{ID: userID, Balance: 0}, nil
		},
	}, stubInvestmentStore{
		listActiveByUserFn: func(_ context.Context, userID string) ([]store.Investment, error) {
			return []store.Investment{{ID: "inv-1"}, {ID: "inv-2"}}, nil
		},
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			return store.Investment{
				ID: id, UserID: "user-1", DailyReturn: 100, TotalEarned: 100,
				DurationDays: 30, DaysRemaining: 29, IsActive: true,
				CreatedAt: daysAgo(3),
			}, nil
		},
	}, stubTransactionStore{}, &stubHub{}, 1)
	service.now = func() time.Time { return testNow }

	credited, message := service.CheckUserProfits(context.Background(), "user-1")
	if credited != 400 {
		t.Fatalf("expected 400 credited across both investments, got %d", credited)
	}
	if message != "credited 4.00 in daily returns" {
		t.Fatalf("unexpected message: %q", message)
	}

	upToDate := NewAccrualService(fakeTxRunner{}, stubUserStore{}, stubInvestmentStore{
		listActiveByUserFn: func(context.Context, string) ([]store.Investment, error) {
			return nil, nil
		},
	}, stubTransactionStore{}, &stubHub{}, 1)
	upToDate.now = func() time.Time { return testNow }
	credited, message = upToDate.CheckUserProfits(context.Background(), "user-1")
	if credited != 0 || message != "profits are up to date" {
		t.Fatalf("unexpected result: %d %q", credited, message)
	}
}

func TestReconcileLocalHourGate(t *testing.T) {
	reconciled := map[string]bool{}
	profitDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	stalePtr := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.User, error) {
			return store.User{ID: userID, Balance: 0}, nil
		},
	}, stubInvestmentStore{
		listActiveFn: func(context.Context) ([]store.ActiveInvestment, error) {
			return []store.ActiveInvestment{
				// 12:00 UTC is 01:xx in Apia (UTC+13): inside the hour.
				{Investment: store.Investment{ID: "inv-due", UserID: "user-due"}, OwnerTimezone: "Pacific/Apia"},
				// 12:00 UTC in UTC itself: outside hour 1.
				{Investment: store.Investment{ID: "inv-offhour", UserID: "user-off"}, OwnerTimezone: "UTC"},
				// Inside the hour but already credited today.
				{Investment: store.Investment{ID: "inv-done", UserID: "user-done", LastProfitDate: &profitDate}, OwnerTimezone: "Pacific/Apia"},
				// Inside the hour, last credit was yesterday.
				{Investment: store.Investment{ID: "inv-stale", UserID: "user-stale", LastProfitDate: &stalePtr}, OwnerTimezone: "Pacific/Apia"},
			}, nil
		},
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			reconciled[id] = true
			return store.Investment{
				ID: id, UserID: "user-1", DailyReturn: 10, TotalEarned: 0,
				DurationDays: 30, DaysRemaining: 30, IsActive: true,
				CreatedAt: daysAgo(1),
			}, nil
		},
	}, stubTransactionStore{}, &stubHub{}, 1)
	service.now = func() time.Time { return testNow }

	service.ReconcileLocalHourDue(context.Background())
	if !reconciled["inv-due"] || !reconciled["inv-stale"] {
		t.Fatalf("expected due investments reconciled, got %#v", reconciled)
	}
	if reconciled["inv-offhour"] || reconciled["inv-done"] {
		t.Fatalf("expected gated investments skipped, got %#v", reconciled)
	}
}

func TestReconcileLocalHourDefaultsTimezone(t *testing.T) {
	persisted := ""
	service := NewAccrualService(fakeTxRunner{}, stubUserStore{
		setTimezoneFn: func(_ context.Context, userID, timezone string) error {
			persisted = userID + ":" + timezone
			return nil
		},
	}, stubInvestmentStore{
		listActiveFn: func(context.Context) ([]store.ActiveInvestment, error) {
			return []store.ActiveInvestment{
				{Investment: store.Investment{ID: "inv-1", UserID: "user-1"}, OwnerTimezone: ""},
			}, nil
		},
		getForUpdateFn: func(_ context.Context, _ store.Getter, id string) (store.Investment, error) {
			return store.Investment{ID: id, IsActive: false}, nil
		},
	}, stubTransactionStore{}, &stubHub{}, 12)
	service.now = func() time.Time { return testNow }

	service.ReconcileLocalHourDue(context.Background())
	if persisted != "user-1:UTC" {
		t.Fatalf("expected UTC default persisted, got %q", persisted)
	}
}

func TestCompletedDays(t *testing.T) {
	cases := []struct {
		name      string
		createdAt time.Time
		horizon   int
		want      int
	}{
		{"same day", testNow.Add(-30 * time.Minute), 30, 1},
		{"one boundary", daysAgo(1), 30, 1},
		{"five days", daysAgo(5), 30, 5},
		{"clamped", daysAgo(45), 30, 30},
		{"clock skew", testNow.Add(2 * time.Hour), 30, 1},
	}
	for _, tc := range cases {
		if got := completedDays(tc.createdAt, testNow, tc.horizon); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}
