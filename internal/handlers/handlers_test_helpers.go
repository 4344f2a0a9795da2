package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"invest/internal/auth"
	"invest/internal/config"
	"invest/internal/middleware"
	"invest/internal/services"
	"invest/internal/store"
	"invest/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn        func(ctx context.Context, tx store.Execer, id, username, email, passwordHash, timezone string) error
	getByEmailFn    func(ctx context.Context, email string) (store.User, error)
	getByIDFn       func(ctx context.Context, userID string) (store.User, error)
	getForUpdateFn  func(ctx context.Context, tx store.Getter, userID string) (store.User, error)
	updateBalanceFn func(ctx context.Context, tx store.Execer, userID string, balance int64) error
	listAllFn       func(ctx context.Context, limit, offset int) ([]store.UserSummary, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash, timezone string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash, timezone)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (store.User, error) {
	if s.getByEmailFn == nil {
		return store.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (store.User, error) {
	if s.getByIDFn == nil {
		return store.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
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

func (s stubUserStore) ListAll(ctx context.Context, limit, offset int) ([]store.UserSummary, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubPlanStore struct {
	listActiveFn func(ctx context.Context) ([]store.Plan, error)
}

func (s stubPlanStore) ListActive(ctx context.Context) ([]store.Plan, error) {
	if s.listActiveFn == nil {
		return nil, nil
	}
	return s.listActiveFn(ctx)
}

type stubInvestmentStore struct {
	listByUserFn       func(ctx context.Context, userID string) ([]store.Investment, error)
	listAllWithUsersFn func(ctx context.Context, limit, offset int) ([]store.InvestmentWithUser, error)
}

func (s stubInvestmentStore) ListByUser(ctx context.Context, userID string) ([]store.Investment, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubInvestmentStore) ListAllWithUsers(ctx context.Context, limit, offset int) ([]store.InvestmentWithUser, error) {
	if s.listAllWithUsersFn == nil {
		return nil, nil
	}
	return s.listAllWithUsersFn(ctx, limit, offset)
}

type stubTransactionStore struct {
	createFn     func(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	listByUserFn func(ctx context.Context, userID, txType string, limit, offset int) ([]store.Transaction, error)
	listAllFn    func(ctx context.Context, limit, offset int) ([]store.Transaction, error)
}

func (s stubTransactionStore) Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubTransactionStore) ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]store.Transaction, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, txType, limit, offset)
}

func (s stubTransactionStore) ListAll(ctx context.Context, limit, offset int) ([]store.Transaction, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubWithdrawalStore struct {
	createFn           func(ctx context.Context, tx store.Execer, id, userID string, amount int64, address string) error
	getForUpdateFn     func(ctx context.Context, tx store.Getter, id string) (store.Withdrawal, error)
	listByUserFn       func(ctx context.Context, userID string) ([]store.Withdrawal, error)
	listAllWithUsersFn func(ctx context.Context, status string, limit, offset int) ([]store.WithdrawalWithUser, error)
	setStatusFn        func(ctx context.Context, tx store.Execer, id, status string) (int64, error)
}

func (s stubWithdrawalStore) Create(ctx context.Context, tx store.Execer, id, userID string, amount int64, address string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, userID, amount, address)
}

func (s stubWithdrawalStore) GetForUpdate(ctx context.Context, tx store.Getter, id string) (store.Withdrawal, error) {
	if s.getForUpdateFn == nil {
		return store.Withdrawal{ID: id}, nil
	}
	return s.getForUpdateFn(ctx, tx, id)
}

func (s stubWithdrawalStore) ListByUser(ctx context.Context, userID string) ([]store.Withdrawal, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubWithdrawalStore) ListAllWithUsers(ctx context.Context, status string, limit, offset int) ([]store.WithdrawalWithUser, error) {
	if s.listAllWithUsersFn == nil {
		return nil, nil
	}
	return s.listAllWithUsersFn(ctx, status, limit, offset)
}

func (s stubWithdrawalStore) SetStatus(ctx context.Context, tx store.Execer, id, status string) (int64, error) {
	if s.setStatusFn == nil {
		return 1, nil
	}
	return s.setStatusFn(ctx, tx, id, status)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn     func(ctx context.Context, userID, role string) (bool, error)
	createAdminFn func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	grantRoleFn   func(ctx context.Context, tx store.Execer, adminUserID, role string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, tx, userID, isSuper, createdBy)
}

func (s stubAdminStore) GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error {
	if s.grantRoleFn == nil {
		return nil
	}
	return s.grantRoleFn(ctx, tx, adminUserID, role)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return false, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubAccrualService struct {
	checkFn func(ctx context.Context, userID string) (int64, string)
	sweepFn func(ctx context.Context) (int, int64)
}

func (s stubAccrualService) CheckUserProfits(ctx context.Context, userID string) (int64, string) {
	if s.checkFn == nil {
		return 0, "profits are up to date"
	}
	return s.checkFn(ctx, userID)
}

func (s stubAccrualService) ReconcileAllDue(ctx context.Context) (int, int64) {
	if s.sweepFn == nil {
		return 0, 0
	}
	return s.sweepFn(ctx)
}

type stubInvestmentService struct {
	investFn func(ctx context.Context, req services.InvestRequest) (string, error)
}

func (s stubInvestmentService) Invest(ctx context.Context, req services.InvestRequest) (string, error) {
	if s.investFn == nil {
		return "", nil
	}
	return s.investFn(ctx, req)
}

type testDeps struct {
	txRunner     fakeTxRunner
	users        stubUserStore
	plans        stubPlanStore
	investments  stubInvestmentStore
	transactions stubTransactionStore
	withdrawals  stubWithdrawalStore
	admin        stubAdminStore
	audit        stubAuditStore
	accrual      stubAccrualService
	invest       stubInvestmentService
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		ProfitHour:     1,
	}
	return New(deps.txRunner, cfg, deps.users, deps.plans, deps.investments, deps.transactions,
		deps.withdrawals, deps.admin, deps.audit, deps.accrual, deps.invest, websocket.NewHub())
}

func serveWithAuth(t *testing.T, handler http.HandlerFunc, userID string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken("secret", userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	rr := httptest.NewRecorder()
	req.Header.Set("Authorization", "Bearer "+token)
	middleware.Auth("secret")(handler).ServeHTTP(rr, req)
	return rr
}
