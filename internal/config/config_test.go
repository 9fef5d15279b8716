package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Checkout.PollingInterval != 30*time.Second {
		t.Errorf("expected 30s polling interval, got %v", cfg.Checkout.PollingInterval)
	}
	if cfg.Checkout.ConfirmationTimeout != 10*time.Minute {
		t.Errorf("expected 10m confirmation timeout, got %v", cfg.Checkout.ConfirmationTimeout)
	}
	if !cfg.Checkout.ProcessingFeePercent.IsZero() || !cfg.Checkout.ProcessingFeeFlatUSD.IsZero() {
		t.Errorf("expected zero processing fee by default")
	}
	if cfg.Chain.GasLimitNative != 21000 {
		t.Errorf("expected native gas limit 21000, got %d", cfg.Chain.GasLimitNative)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PRICE_POLL_INTERVAL", "5s")
	t.Setenv("CONFIRMATION_TIMEOUT", "90s")
	t.Setenv("PROCESSING_FEE_PERCENT", "2.5")
	t.Setenv("FEATURE_DEMO_COMPARATOR", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Checkout.PollingInterval != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Checkout.PollingInterval)
	}
	if cfg.Checkout.ConfirmationTimeout != 90*time.Second {
		t.Errorf("expected 90s, got %v", cfg.Checkout.ConfirmationTimeout)
	}
	if !cfg.Checkout.ProcessingFeePercent.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("expected 2.5 percent, got %s", cfg.Checkout.ProcessingFeePercent)
	}
	if !cfg.Checkout.Features.DemoComparator {
		t.Error("expected demo comparator enabled")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "PRICE_POLL_INTERVAL", "soon"},
		{"zero interval", "RECEIPT_POLL_INTERVAL", "0s"},
		{"bad decimal", "PROCESSING_FEE_FLAT_USD", "one"},
		{"negative fee", "PROCESSING_FEE_PERCENT", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
