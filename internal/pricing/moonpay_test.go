package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoonPayBuyQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/currencies/eth/buy_quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "pk_test", q.Get("apiKey"))
		assert.Equal(t, "100.00", q.Get("baseCurrencyAmount"))
		assert.Equal(t, "usd", q.Get("baseCurrencyCode"))
		assert.Equal(t, "eth", q.Get("quoteCurrencyCode"))
		assert.Equal(t, "true", q.Get("fixed"))
		_, _ = w.Write([]byte(`{
			"quoteCurrencyCode": "eth",
			"quoteCurrencyAmount": 0.0452,
			"baseCurrencyAmount": 100,
			"totalAmount": 104.99,
			"feeAmount": 3.99,
			"networkFeeAmount": 1,
			"extraFeeAmount": 0
		}`))
	}))
	defer srv.Close()

	client := NewMoonPayClient(newTestClient(srv), models.PricingConfig{MoonPayAPIKey: "pk_test", MoonPayBaseURL: srv.URL})
	quote, err := client.BuyQuote(context.Background(), models.AssetETH, decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.True(t, quote.QuoteCurrencyAmount.Equal(decimal.RequireFromString("0.0452")))
	assert.True(t, quote.TotalFees().Equal(decimal.RequireFromString("4.99")))
	assert.True(t, quote.TotalAmount.Equal(decimal.RequireFromString("104.99")))
}

func TestMoonPayBuyQuoteRequiresKeyAndAmount(t *testing.T) {
	client := NewMoonPayClient(nil, models.PricingConfig{})
	_, err := client.BuyQuote(context.Background(), models.AssetETH, decimal.NewFromInt(10))
	assert.Error(t, err)

	client = NewMoonPayClient(nil, models.PricingConfig{MoonPayAPIKey: "pk"})
	_, err = client.BuyQuote(context.Background(), models.AssetETH, decimal.Zero)
	assert.Error(t, err)
}

func TestMoonPayWidgetURL(t *testing.T) {
	client := NewMoonPayClient(nil, models.PricingConfig{MoonPayAPIKey: "pk_test", MoonPayWidgetURL: "https://buy.moonpay.com"})
	raw := client.WidgetURL(models.AssetUSDC, decimal.RequireFromString("25.5"), "0xabc", "https://shop.example/done")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "buy.moonpay.com", u.Host)
	q := u.Query()
	assert.Equal(t, "usdc", q.Get("currencyCode"))
	assert.Equal(t, "25.50", q.Get("baseCurrencyAmount"))
	assert.Equal(t, "0xabc", q.Get("walletAddress"))
	assert.Equal(t, "https://shop.example/done", q.Get("redirectURL"))
	assert.Equal(t, "#fbbf24", q.Get("colorCode"))
}
