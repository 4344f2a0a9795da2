package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"invest/internal/services"
	"invest/internal/store"
)

func TestListPlans(t *testing.T) {
	handler := newTestHandler(testDeps{
		plans: stubPlanStore{
			listActiveFn: func(context.Context) ([]store.Plan, error) {
				return []store.Plan{{
					ID: "starter", Name: "Starter", DailyRate: "1.25",
					DurationDays: 30, MinAmount: 1000, MaxAmount: 10000000,
				}}, nil
			},
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	rr := httptest.NewRecorder()
	handler.ListPlans(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload) != 1 || payload[0]["min_amount"] != "10.00" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestCreateInvestmentSuccess(t *testing.T) {
	var got services.InvestRequest
	handler := newTestHandler(testDeps{
		invest: stubInvestmentService{
			investFn: func(_ context.Context, req services.InvestRequest) (string, error) {
				got = req
				return "inv-1", nil
			},
		},
	})
	body := []byte(`{"plan_id":"starter","amount":"1000.00"}`)
	req := httptest.NewRequest(http.MethodPost, "/investments", bytes.NewReader(body))
	rr := serveWithAuth(t, handler.CreateInvestment, "user-1", req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.UserID != "user-1" || got.PlanID != "starter" || got.Amount != 100000 {
		t.Fatalf("unexpected request: %#v", got)
	}
}

func TestCreateInvestmentErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"plan not found", services.ErrPlanNotFound, http.StatusNotFound},
		{"out of range", services.ErrAmountOutOfRange, http.StatusBadRequest},
		{"insufficient funds", services.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		handler := newTestHandler(testDeps{
			invest: stubInvestmentService{
				investFn: func(context.Context, services.InvestRequest) (string, error) {
					return "", tc.err
				},
			},
		})
		body := []byte(`{"plan_id":"starter","amount":"1000.00"}`)
		req := httptest.NewRequest(http.MethodPost, "/investments", bytes.NewReader(body))
		rr := serveWithAuth(t, handler.CreateInvestment, "user-1", req)
		if rr.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, rr.Code)
		}
	}
}

func TestCheckProfits(t *testing.T) {
	handler := newTestHandler(testDeps{
		accrual: stubAccrualService{
			checkFn: func(_ context.Context, userID string) (int64, string) {
				return 1250, "credited 12.50 in daily returns"
			},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/profits/check", nil)
	rr := serveWithAuth(t, handler.CheckProfits, "user-1", req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["credited"] != "12.50" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestListInvestments(t *testing.T) {
	handler := newTestHandler(testDeps{
		investments: stubInvestmentStore{
			listByUserFn: func(_ context.Context, userID string) ([]store.Investment, error) {
				return []store.Investment{{
					ID: "inv-1", PlanID: "starter", Amount: 100000,
					DailyReturn: 1250, TotalEarned: 6250,
					DurationDays: 30, DaysRemaining: 25, IsActive: true,
				}}, nil
			},
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/investments", nil)
	rr := serveWithAuth(t, handler.ListInvestments, "user-1", req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload) != 1 || payload[0]["total_earned"] != "62.50" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}
