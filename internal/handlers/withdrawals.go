package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"invest/internal/middleware"
	"invest/internal/money"
	"invest/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type withdrawalRequest struct {
	Amount  string `json:"amount"`
	Address string `json:"address"`
}

// RequestWithdrawal reserves the amount immediately: the wallet is debited
// when the request is created, and refunded only if an admin rejects it.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := money.ParseMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		respondError(w, http.StatusBadRequest, "payout address required")
		return
	}
	withdrawalID := uuid.NewString()
	insufficient := false
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		user, err := h.users.GetForUpdate(r.Context(), tx, userID)
		if err != nil {
			return err
		}
		if user.Balance < amount {
			insufficient = true
			return nil
		}
		if err := h.users.UpdateBalance(r.Context(), tx, userID, user.Balance-amount); err != nil {
			return err
		}
		if err := h.withdrawals.Create(r.Context(), tx, withdrawalID, userID, amount, address); err != nil {
			return err
		}
		if err := h.transactions.Create(r.Context(), tx, store.TransactionInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        "withdrawal",
			Status:      "pending",
			Amount:      amount,
			ReferenceID: &withdrawalID,
			Metadata:    "{}",
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"amount": formatMoney(amount), "address": address})
		return h.audit.Log(r.Context(), tx, userID, "withdrawal_request", "withdrawal", withdrawalID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "withdrawal request failed")
		return
	}
	if insufficient {
		respondError(w, http.StatusUnprocessableEntity, "insufficient funds")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"withdrawal_id": withdrawalID,
		"status":        "pending",
	})
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	withdrawals, err := h.withdrawals.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load withdrawals")
		return
	}
	normalized := make([]map[string]any, 0, len(withdrawals))
	for _, wd := range withdrawals {
		normalized = append(normalized, normalizeWithdrawal(wd))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func normalizeWithdrawal(wd store.Withdrawal) map[string]any {
	item := map[string]any{
		"id":         wd.ID,
		"amount":     formatMoney(wd.Amount),
		"address":    wd.Address,
		"status":     wd.Status,
		"created_at": wd.CreatedAt,
	}
	if wd.DecidedAt != nil {
		item["decided_at"] = *wd.DecidedAt
	}
	return item
}
