package database

import (
	"context"
	"errors"
	"testing"

	"token-checkout-go/internal/store"
)

func TestCreatePayer(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	payer, err := service.CreatePayer(ctx, store.PayerParams{
		Id:    "0b6f4f4e-3f5c-4d3b-9b8e-1d2a6f0c9e71",
		Name:  "  Ada Lovelace ",
		Email: " Ada@Example.com",
	})
	if err != nil {
		t.Fatalf("CreatePayer failed: %v", err)
	}
	if payer.Name != "Ada Lovelace" || payer.Email != "ada@example.com" {
		t.Errorf("expected trimmed name and lowercased email, got %+v", payer)
	}
	if payer.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	found, err := service.GetPayerByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("GetPayerByEmail failed: %v", err)
	}
	if found.Id != payer.Id {
		t.Errorf("expected payer %s, got %s", payer.Id, found.Id)
	}

	_, err = service.CreatePayer(ctx, store.PayerParams{
		Id:    "5c8e2d1a-7b4f-4e2a-8f3d-6a9b0c1d2e3f",
		Name:  "Someone Else",
		Email: "ada@example.com",
	})
	if !errors.Is(err, store.ErrPayerExists) {
		t.Fatalf("expected ErrPayerExists for duplicate email, got %v", err)
	}
}

func TestCreatePayerRejectsInvalidParams(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	tests := []struct {
		name   string
		params store.PayerParams
	}{
		{"bad email", store.PayerParams{Id: "0b6f4f4e-3f5c-4d3b-9b8e-1d2a6f0c9e71", Name: "Ada", Email: "not-an-email"}},
		{"missing name", store.PayerParams{Id: "0b6f4f4e-3f5c-4d3b-9b8e-1d2a6f0c9e71", Name: "   ", Email: "ada@example.com"}},
		{"bad id", store.PayerParams{Id: "payer-1", Name: "Ada", Email: "ada@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.CreatePayer(context.Background(), tt.params); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	payers, err := service.ListPayers(context.Background())
	if err != nil {
		t.Fatalf("ListPayers failed: %v", err)
	}
	if len(payers) != 0 {
		t.Errorf("expected no payers stored, got %d", len(payers))
	}
}

func TestGetPayerNotFound(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.GetPayer(ctx, "missing"); !errors.Is(err, store.ErrPayerNotFound) {
		t.Errorf("expected ErrPayerNotFound by id, got %v", err)
	}
	if _, err := service.GetPayerByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrPayerNotFound) {
		t.Errorf("expected ErrPayerNotFound by email, got %v", err)
	}
}

func TestListPayers(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	a := createPayer(t, service, "a@example.com")
	b := createPayer(t, service, "b@example.com")

	payers, err := service.ListPayers(context.Background())
	if err != nil {
		t.Fatalf("ListPayers failed: %v", err)
	}
	if len(payers) != 2 {
		t.Fatalf("expected 2 payers, got %d", len(payers))
	}
	seen := map[string]bool{}
	for _, p := range payers {
		seen[p.Id] = true
	}
	if !seen[a.Id] || !seen[b.Id] {
		t.Errorf("expected both payers listed, got %+v", payers)
	}
}
