package handlers

import (
	"encoding/json"
	"net/http"

	"invest/internal/middleware"
	"invest/internal/store"
	"invest/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) RunDailyReturns(w http.ResponseWriter, r *http.Request) {
	processed, totalCredited := h.accrual.ReconcileAllDue(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"processed":      processed,
		"total_credited": formatMoney(totalCredited),
	})
}

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, err := h.users.ListAll(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load users")
		return
	}
	normalized := make([]map[string]any, 0, len(users))
	for _, user := range users {
		normalized = append(normalized, map[string]any{
			"id":                 user.ID,
			"username":           user.Username,
			"email":              user.Email,
			"balance":            formatMoney(user.Balance),
			"timezone":           user.Timezone,
			"active_investments": user.ActiveInvestments,
			"total_invested":     formatMoney(user.TotalInvested),
			"created_at":         user.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) AdminListInvestments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	investments, err := h.investments.ListAllWithUsers(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load investments")
		return
	}
	normalized := make([]map[string]any, 0, len(investments))
	for _, inv := range investments {
		item := map[string]any{
			"id":             inv.ID,
			"user_id":        inv.UserID,
			"username":       inv.Username,
			"email":          inv.Email,
			"plan_name":      inv.PlanName,
			"amount":         formatMoney(inv.Amount),
			"daily_return":   formatMoney(inv.DailyReturn),
			"total_earned":   formatMoney(inv.TotalEarned),
			"duration_days":  inv.DurationDays,
			"days_remaining": inv.DaysRemaining,
			"is_active":      inv.IsActive,
			"created_at":     inv.CreatedAt,
		}
		normalized = append(normalized, item)
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) AdminListWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	withdrawals, err := h.withdrawals.ListAllWithUsers(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load withdrawals")
		return
	}
	normalized := make([]map[string]any, 0, len(withdrawals))
	for _, wd := range withdrawals {
		item := normalizeWithdrawal(wd.Withdrawal)
		item["user_id"] = wd.UserID
		item["username"] = wd.Username
		item["email"] = wd.Email
		normalized = append(normalized, item)
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.decideWithdrawal(w, r, "approved")
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.decideWithdrawal(w, r, "rejected")
}

// decideWithdrawal finalizes a pending request. Rejection refunds the
// reserved amount; approval just marks the payout as sent.
func (h *Handler) decideWithdrawal(w http.ResponseWriter, r *http.Request, status string) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	withdrawalID := chi.URLParam(r, "id")
	notPending := false
	var refunded int64
	var refundUserID string
	var balanceAfter int64
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		wd, err := h.withdrawals.GetForUpdate(r.Context(), tx, withdrawalID)
		if err != nil {
			return err
		}
		updated, err := h.withdrawals.SetStatus(r.Context(), tx, withdrawalID, status)
		if err != nil {
			return err
		}
		if updated == 0 {
			notPending = true
			return nil
		}
		if status == "rejected" {
			user, err := h.users.GetForUpdate(r.Context(), tx, wd.UserID)
			if err != nil {
				return err
			}
			balanceAfter = user.Balance + wd.Amount
			if err := h.users.UpdateBalance(r.Context(), tx, wd.UserID, balanceAfter); err != nil {
				return err
			}
			if err := h.transactions.Create(r.Context(), tx, store.TransactionInput{
				ID:          uuid.NewString(),
				UserID:      wd.UserID,
				Type:        "refund",
				Status:      "completed",
				Amount:      wd.Amount,
				ReferenceID: &withdrawalID,
				Metadata:    "{}",
			}); err != nil {
				return err
			}
			refunded = wd.Amount
			refundUserID = wd.UserID
		}
		data, _ := json.Marshal(map[string]string{"status": status})
		return h.audit.Log(r.Context(), tx, actorID, "withdrawal_"+status, "withdrawal", withdrawalID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusNotFound, "withdrawal not found")
		return
	}
	if notPending {
		respondError(w, http.StatusConflict, "withdrawal already decided")
		return
	}
	if refunded > 0 {
		h.hub.BroadcastBalance(refundUserID, websocket.BalanceUpdate{
			Balance:  formatMoney(balanceAfter),
			Credited: formatMoney(refunded),
		})
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"withdrawal_id": withdrawalID,
		"status":        status,
	})
}

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	transactions, err := h.transactions.ListAll(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, normalizeTransactions(transactions))
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	logs, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

type grantRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req grantRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.GrantRole(r.Context(), tx, req.UserID, req.Role); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"role": req.Role})
		return h.audit.Log(r.Context(), tx, actorID, "grant_role", "user", req.UserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to grant role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

type promoteRequest struct {
	UserID string `json:"user_id"`
	Super  bool   `json:"super"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, req.UserID, req.Super, &actorID); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]bool{"super": req.Super})
		return h.audit.Log(r.Context(), tx, actorID, "promote_admin", "user", req.UserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to promote admin")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}
