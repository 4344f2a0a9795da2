package handlers

import (
	"net/http"

	"invest/internal/config"
	"invest/internal/db"
	"invest/internal/middleware"
	"invest/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner     db.TxRunner
	cfg          config.Config
	users        UserStore
	plans        PlanStore
	investments  InvestmentStore
	transactions TransactionStore
	withdrawals  WithdrawalStore
	admin        AdminStore
	audit        AuditStore
	accrual      AccrualService
	invest       InvestmentService
	hub          *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, plans PlanStore, investments InvestmentStore, transactions TransactionStore, withdrawals WithdrawalStore, admin AdminStore, audit AuditStore, accrual AccrualService, invest InvestmentService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:     txRunner,
		cfg:          cfg,
		users:        users,
		plans:        plans,
		investments:  investments,
		transactions: transactions,
		withdrawals:  withdrawals,
		admin:        admin,
		audit:        audit,
		accrual:      accrual,
		invest:       invest,
		hub:          hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.Get("/plans", h.ListPlans)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/investments", h.CreateInvestment)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/investments", h.ListInvestments)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/profits/check", h.CheckProfits)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/wallet", h.GetWallet)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/wallet/deposit", h.Deposit)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/transactions", h.ListTransactions)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/withdrawals", h.RequestWithdrawal)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/withdrawals", h.ListWithdrawals)
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/daily-returns", h.RunDailyReturns)
		r.With(middleware.RequireAdmin(h.admin, "CanViewUsers")).Get("/users", h.AdminListUsers)
		r.With(middleware.RequireAdmin(h.admin, "CanViewInvestments")).Get("/investments", h.AdminListInvestments)
		r.With(middleware.RequireAdmin(h.admin, "CanManageWithdrawals")).Get("/withdrawals", h.AdminListWithdrawals)
		r.With(middleware.RequireAdmin(h.admin, "CanManageWithdrawals")).Post("/withdrawals/{id}/approve", h.ApproveWithdrawal)
		r.With(middleware.RequireAdmin(h.admin, "CanManageWithdrawals")).Post("/withdrawals/{id}/reject", h.RejectWithdrawal)
		r.With(middleware.RequireAdmin(h.admin, "CanViewUsers")).Get("/transactions", h.AdminListTransactions)
		r.With(middleware.RequireAdmin(h.admin, "CanViewUsers")).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/roles/grant", h.GrantRole)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/promote", h.PromoteAdmin)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
