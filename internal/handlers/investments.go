package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"invest/internal/middleware"
	"invest/internal/money"
	"invest/internal/services"
	"invest/internal/store"
)

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load plans")
		return
	}
	normalized := make([]map[string]any, 0, len(plans))
	for _, plan := range plans {
		normalized = append(normalized, map[string]any{
			"id":            plan.ID,
			"name":          plan.Name,
			"daily_rate":    plan.DailyRate,
			"duration_days": plan.DurationDays,
			"min_amount":    formatMoney(plan.MinAmount),
			"max_amount":    formatMoney(plan.MaxAmount),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

type createInvestmentRequest struct {
	PlanID string `json:"plan_id"`
	Amount string `json:"amount"`
}

func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := money.ParseMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	investmentID, err := h.invest.Invest(r.Context(), services.InvestRequest{
		UserID: userID,
		PlanID: req.PlanID,
		Amount: amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPlanNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrAmountOutOfRange):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInsufficientFunds):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "investment failed")
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"investment_id": investmentID,
	})
}

func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	investments, err := h.investments.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load investments")
		return
	}
	respondJSON(w, http.StatusOK, normalizeInvestments(investments))
}

func normalizeInvestments(investments []store.Investment) []map[string]any {
	normalized := make([]map[string]any, 0, len(investments))
	for _, inv := range investments {
		item := map[string]any{
			"id":             inv.ID,
			"plan_id":        inv.PlanID,
			"amount":         formatMoney(inv.Amount),
			"daily_return":   formatMoney(inv.DailyReturn),
			"total_earned":   formatMoney(inv.TotalEarned),
			"duration_days":  inv.DurationDays,
			"days_remaining": inv.DaysRemaining,
			"is_active":      inv.IsActive,
			"created_at":     inv.CreatedAt,
		}
		if inv.LastProfitDate != nil {
			item["last_profit_date"] = inv.LastProfitDate.Format("2006-01-02")
		}
		normalized = append(normalized, item)
	}
	return normalized
}

func (h *Handler) CheckProfits(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	credited, message := h.accrual.CheckUserProfits(r.Context(), userID)
	respondJSON(w, http.StatusOK, map[string]any{
		"credited": formatMoney(credited),
		"message":  message,
	})
}
