package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestSaveAndGetPayment(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	attempt := &models.PaymentAttempt{
		Id:               "attempt-1",
		Asset:            models.AssetETH,
		FiatAmount:       decimal.NewFromInt(100),
		TotalUSD:         decimal.NewFromInt(120),
		TotalAssetAmount: decimal.RequireFromString("0.06"),
		RecipientAddress: "0x000000000000000000000000000000000000dEaD",
		Status:           models.StatusAwaitingConfirmation,
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	if err := service.SavePayment(ctx, attempt); err != nil {
		t.Fatalf("SavePayment failed: %v", err)
	}

	attempt.Status = models.StatusSubmitted
	attempt.TransactionHash = "0xabc"
	attempt.Path = models.PathEVMNative
	attempt.UpdatedAt = created.Add(time.Minute)
	if err := service.SavePayment(ctx, attempt); err != nil {
		t.Fatalf("SavePayment update failed: %v", err)
	}

	got, err := service.GetPayment(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if got.Status != models.StatusSubmitted {
		t.Errorf("Expected status submitted, got %s", got.Status)
	}
	if got.TransactionHash != "0xabc" {
		t.Errorf("Expected hash 0xabc, got %s", got.TransactionHash)
	}
	if !got.TotalAssetAmount.Equal(decimal.RequireFromString("0.06")) {
		t.Errorf("Expected total 0.06, got %s", got.TotalAssetAmount)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("Expected created_at %v, got %v", created, got.CreatedAt)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, err := service.GetPayment(context.Background(), "nope")
	if !errors.Is(err, store.ErrAttemptNotFound) {
		t.Fatalf("Expected ErrAttemptNotFound, got %v", err)
	}
}

func TestListPaymentsByPayer(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, payer := range []string{"p1", "p2", "p1"} {
		err := service.SavePayment(ctx, &models.PaymentAttempt{
			Id:               "a" + string(rune('0'+i)),
			PayerId:          payer,
			Asset:            models.AssetUSDC,
			FiatAmount:       decimal.NewFromInt(10),
			TotalUSD:         decimal.NewFromInt(18),
			TotalAssetAmount: decimal.NewFromInt(18),
			RecipientAddress: "0x1",
			Status:           models.StatusConfirmed,
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SavePayment failed: %v", err)
		}
	}

	all, err := service.ListPayments(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 payments, got %d", len(all))
	}
	if all[0].Id != "a2" {
		t.Errorf("Expected newest first, got %s", all[0].Id)
	}

	p1, err := service.ListPayments(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(p1) != 2 {
		t.Errorf("Expected 2 payments for p1, got %d", len(p1))
	}
}

func TestLatestRateSnapshots(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := service.SaveRateSnapshots(ctx, []models.RateSnapshot{
		{Asset: models.AssetETH, SpotRate: decimal.NewFromInt(2000), NetworkFeeUSD: decimal.NewFromInt(20), Source: "static", TakenAt: t0},
		{Asset: models.AssetBTC, SpotRate: decimal.NewFromInt(45000), NetworkFeeUSD: decimal.NewFromInt(3), Source: "static", TakenAt: t0},
	})
	if err != nil {
		t.Fatalf("SaveRateSnapshots failed: %v", err)
	}
	err = service.SaveRateSnapshots(ctx, []models.RateSnapshot{
		{Asset: models.AssetETH, SpotRate: decimal.NewFromInt(2100), NetworkFeeUSD: decimal.NewFromInt(18), Source: "coinmarketcap", TakenAt: t0.Add(30 * time.Second)},
	})
	if err != nil {
		t.Fatalf("SaveRateSnapshots failed: %v", err)
	}

	latest, err := service.LatestRateSnapshots(ctx)
	if err != nil {
		t.Fatalf("LatestRateSnapshots failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(latest))
	}
	for _, snap := range latest {
		if snap.Asset == models.AssetETH && !snap.SpotRate.Equal(decimal.NewFromInt(2100)) {
			t.Errorf("Expected latest ETH rate 2100, got %s", snap.SpotRate)
		}
	}
}
