package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestUserStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO users") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[0] != "user-1" || args[4] != "Europe/Berlin" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	if err := store.Create(ctx, execer, "user-1", "name", "email@example.com", "hash", "Europe/Berlin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreGetByEmail(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE email = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "email@example.com" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*User) = User{ID: "user-1"}
			return nil
		},
	})
	row, err := store.GetByEmail(ctx, "email@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "user-1" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestUserStoreGetForUpdate(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*User) = User{ID: "user-1", Balance: 1500}
			return nil
		},
	}
	store := NewUserStore(stubDB{})
	row, err := store.GetForUpdate(ctx, getter, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Balance != 1500 {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestUserStoreUpdateBalance(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "UPDATE users") || !strings.Contains(query, "SET balance = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != int64(9900) || args[1] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	if err := store.UpdateBalance(ctx, execer, "user-1", 9900); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreSetTimezone(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET timezone = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != "UTC" || args[1] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	if err := store.SetTimezone(ctx, "user-1", "UTC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreListAll(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "LEFT JOIN investments") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != 50 || args[1] != 0 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]UserSummary) = []UserSummary{{ID: "user-1", ActiveInvestments: 2}}
			return nil
		},
	})
	rows, err := store.ListAll(ctx, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ActiveInvestments != 2 {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}
