package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupServiceTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service, err := newServiceWithDB(db, false)
	if err != nil {
		t.Fatalf("Failed to initialize service: %v", err)
	}

	return service, func() { db.Close() }
}

func createPayer(t *testing.T, service *Service, email string) *models.Payer {
	t.Helper()
	payer, err := service.CreatePayer(context.Background(), store.PayerParams{
		Id: uuid.NewSHA1(uuid.NameSpaceURL, []byte(email)).String(), Name: "Test Payer", Email: email,
	})
	if err != nil {
		t.Fatalf("CreatePayer failed: %v", err)
	}
	return payer
}

func TestCreditAndDebit(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	payer := createPayer(t, service, "payer@example.com")

	_, err := service.Credit(ctx, store.CreditParams{
		UserId: payer.Id, Asset: models.AssetETH, Amount: decimal.RequireFromString("0.1"), ExternalTxId: "fund-1",
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, err = service.Debit(ctx, store.DebitParams{
		UserId: payer.Id, Asset: models.AssetETH, Amount: decimal.RequireFromString("0.06"), Reference: "attempt-1",
	})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	balance, err := service.GetUserBalance(ctx, payer.Id, models.AssetETH)
	if err != nil {
		t.Fatalf("GetUserBalance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("0.04")) {
		t.Errorf("Expected 0.04 ETH, got %s", balance)
	}

	if err := service.ReconcileUserBalance(ctx, payer.Id, models.AssetETH); err != nil {
		t.Errorf("Reconciliation failed: %v", err)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	payer := createPayer(t, service, "poor@example.com")

	_, err := service.Credit(ctx, store.CreditParams{
		UserId: payer.Id, Asset: models.AssetETH, Amount: decimal.RequireFromString("0.01"), ExternalTxId: "fund-1",
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, err = service.Debit(ctx, store.DebitParams{
		UserId: payer.Id, Asset: models.AssetETH, Amount: decimal.RequireFromString("0.06"), Reference: "attempt-1",
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}
}

func TestReverseDebitIsIdempotent(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	payer := createPayer(t, service, "reverse@example.com")

	_, err := service.Credit(ctx, store.CreditParams{
		UserId: payer.Id, Asset: models.AssetUSDC, Amount: decimal.NewFromInt(200), ExternalTxId: "fund-1",
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	debit := store.DebitParams{UserId: payer.Id, Asset: models.AssetUSDC, Amount: decimal.NewFromInt(120), Reference: "attempt-9"}
	if _, err := service.Debit(ctx, debit); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := service.ReverseDebit(ctx, debit); err != nil {
			t.Fatalf("ReverseDebit #%d failed: %v", i+1, err)
		}
	}

	balance, err := service.GetUserBalance(ctx, payer.Id, models.AssetUSDC)
	if err != nil {
		t.Fatalf("GetUserBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected balance restored to 200, got %s", balance)
	}
}

func TestGetAllUserBalances(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	payer := createPayer(t, service, "multi@example.com")

	credits := []struct {
		asset  models.Asset
		amount string
	}{
		{models.AssetBTC, "0.5"},
		{models.AssetSOL, "12"},
	}
	for i, c := range credits {
		_, err := service.Credit(ctx, store.CreditParams{
			UserId: payer.Id, Asset: c.asset, Amount: decimal.RequireFromString(c.amount),
			ExternalTxId: "fund-" + string(rune('a'+i)),
		})
		if err != nil {
			t.Fatalf("Credit %s failed: %v", c.asset, err)
		}
	}

	balances, err := service.GetAllUserBalances(ctx, payer.Id)
	if err != nil {
		t.Fatalf("GetAllUserBalances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Expected 2 balances, got %d", len(balances))
	}
	if balances[0].Asset != "BTC" || !balances[0].Balance.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Unexpected first balance: %s %s", balances[0].Asset, balances[0].Balance)
	}
}

func TestCreditUnknownPayer(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, err := service.Credit(context.Background(), store.CreditParams{
		UserId: "missing", Asset: models.AssetETH, Amount: decimal.NewFromInt(1),
	})
	if !errors.Is(err, store.ErrPayerNotFound) {
		t.Fatalf("Expected ErrPayerNotFound, got %v", err)
	}
}
