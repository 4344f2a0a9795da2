package handlers

import (
	"encoding/json"
	"net/http"

	"invest/internal/middleware"
	"invest/internal/money"
	"invest/internal/store"
	"invest/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"balance":  formatMoney(user.Balance),
		"timezone": user.Timezone,
	})
}

type depositRequest struct {
	Amount string `json:"amount"`
}

// Deposit credits the wallet directly. Payment-gateway plumbing is out of
// scope; deposits are simulated and complete immediately.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req depositRequest
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
	var balanceAfter int64
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		user, err := h.users.GetForUpdate(r.Context(), tx, userID)
		if err != nil {
			return err
		}
		balanceAfter = user.Balance + amount
		if err := h.users.UpdateBalance(r.Context(), tx, userID, balanceAfter); err != nil {
			return err
		}
		if err := h.transactions.Create(r.Context(), tx, store.TransactionInput{
			ID:       uuid.NewString(),
			UserID:   userID,
			Type:     "deposit",
			Status:   "completed",
			Amount:   amount,
			Metadata: "{}",
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"amount": formatMoney(amount)})
		return h.audit.Log(r.Context(), tx, userID, "deposit", "user", userID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "deposit failed")
		return
	}
	h.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		Balance:  formatMoney(balanceAfter),
		Credited: formatMoney(amount),
	})
	respondJSON(w, http.StatusOK, map[string]string{
		"balance": formatMoney(balanceAfter),
	})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r)
	transactions, err := h.transactions.ListByUser(r.Context(), userID, r.URL.Query().Get("type"), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, normalizeTransactions(transactions))
}

func normalizeTransactions(transactions []store.Transaction) []map[string]any {
	normalized := make([]map[string]any, 0, len(transactions))
	for _, tx := range transactions {
		item := map[string]any{
			"id":         tx.ID,
			"user_id":    tx.UserID,
			"type":       tx.Type,
			"status":     tx.Status,
			"amount":     formatMoney(tx.Amount),
			"metadata":   tx.Metadata,
			"created_at": tx.CreatedAt,
		}
		if tx.ReferenceID != nil {
			item["reference_id"] = *tx.ReferenceID
		}
		normalized = append(normalized, item)
	}
	return normalized
}
