package common

import (
	"testing"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"120", "$120.00"},
		{"0.005", "$0.01"},
		{"19.999", "$20.00"},
	}
	for _, tt := range tests {
		if got := FormatUSD(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatUSD(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatAssetAmount(t *testing.T) {
	got := FormatAssetAmount(decimal.RequireFromString("0.060000000123"), models.AssetETH)
	if got != "0.06 ETH" {
		t.Errorf("unexpected format: %s", got)
	}
}
