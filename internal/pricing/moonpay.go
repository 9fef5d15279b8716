package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
)

const moonPayAccentColor = "#fbbf24"

// BuyQuote is MoonPay's fee-inclusive price for buying an asset with USD.
type BuyQuote struct {
	QuoteCurrencyCode   string          `json:"quoteCurrencyCode"`
	QuoteCurrencyAmount decimal.Decimal `json:"quoteCurrencyAmount"`
	BaseCurrencyAmount  decimal.Decimal `json:"baseCurrencyAmount"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	FeeAmount           decimal.Decimal `json:"feeAmount"`
	NetworkFeeAmount    decimal.Decimal `json:"networkFeeAmount"`
	ExtraFeeAmount      decimal.Decimal `json:"extraFeeAmount"`
}

// TotalFees is every fee MoonPay adds on top of the base amount.
func (q BuyQuote) TotalFees() decimal.Decimal {
	return q.FeeAmount.Add(q.NetworkFeeAmount).Add(q.ExtraFeeAmount)
}

// MoonPayClient fetches buy quotes shown beside the checkout quote and builds
// the buy widget link.
type MoonPayClient struct {
	http      *HTTPClient
	baseURL   string
	widgetURL string
	apiKey    string
}

func NewMoonPayClient(client *HTTPClient, cfg models.PricingConfig) *MoonPayClient {
	return &MoonPayClient{
		http:      client,
		baseURL:   strings.TrimSuffix(cfg.MoonPayBaseURL, "/"),
		widgetURL: cfg.MoonPayWidgetURL,
		apiKey:    cfg.MoonPayAPIKey,
	}
}

func currencyCode(asset models.Asset) string {
	return strings.ToLower(asset.String())
}

func (m *MoonPayClient) BuyQuote(ctx context.Context, asset models.Asset, fiatAmount decimal.Decimal) (*BuyQuote, error) {
	if m.apiKey == "" {
		return nil, errors.New("moonpay api key not configured")
	}
	if !fiatAmount.IsPositive() {
		return nil, fmt.Errorf("invalid fiat amount %s", fiatAmount)
	}

	code := currencyCode(asset)
	query := url.Values{}
	query.Set("apiKey", m.apiKey)
	query.Set("baseCurrencyAmount", fiatAmount.StringFixed(2))
	query.Set("baseCurrencyCode", "usd")
	query.Set("quoteCurrencyCode", code)
	query.Set("fixed", "true")

	endpoint := fmt.Sprintf("%s/v3/currencies/%s/buy_quote?%s", m.baseURL, url.PathEscape(code), query.Encode())

	var quote BuyQuote
	if err := m.http.GetJSON(ctx, endpoint, nil, &quote); err != nil {
		return nil, fetchError("moonpay", err)
	}
	return &quote, nil
}

// WidgetURL links to the MoonPay buy widget prefilled for the payer.
func (m *MoonPayClient) WidgetURL(asset models.Asset, fiatAmount decimal.Decimal, walletAddress, redirectURL string) string {
	query := url.Values{}
	query.Set("apiKey", m.apiKey)
	query.Set("currencyCode", currencyCode(asset))
	query.Set("baseCurrencyAmount", fiatAmount.StringFixed(2))
	query.Set("baseCurrencyCode", "usd")
	if walletAddress != "" {
		query.Set("walletAddress", walletAddress)
	}
	if redirectURL != "" {
		query.Set("redirectURL", redirectURL)
	}
	query.Set("colorCode", moonPayAccentColor)
	return m.widgetURL + "?" + query.Encode()
}
