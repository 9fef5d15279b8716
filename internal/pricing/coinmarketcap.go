package pricing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cmcQuotesPath = "/v2/cryptocurrency/quotes/latest"

type cmcQuote struct {
	Price       float64 `json:"price"`
	LastUpdated string  `json:"last_updated"`
}

type cmcTokenData struct {
	Id     int                 `json:"id"`
	Symbol string              `json:"symbol"`
	Quote  map[string]cmcQuote `json:"quote"`
}

type cmcStatus struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type cmcResponse struct {
	Status cmcStatus                 `json:"status"`
	Data   map[string][]cmcTokenData `json:"data"`
}

// CoinMarketCapFeed reads USD prices from the CoinMarketCap v2 quotes API.
type CoinMarketCapFeed struct {
	http    *HTTPClient
	baseURL string
	apiKey  string
}

func NewCoinMarketCapFeed(client *HTTPClient, baseURL, apiKey string) *CoinMarketCapFeed {
	return &CoinMarketCapFeed{http: client, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

func (f *CoinMarketCapFeed) Name() string { return "coinmarketcap" }

func (f *CoinMarketCapFeed) GetSpotPrices(ctx context.Context, assets []models.Asset) (models.RateTable, error) {
	if len(assets) == 0 {
		return models.RateTable{}, nil
	}

	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.String()
	}

	query := url.Values{}
	query.Set("symbol", strings.Join(symbols, ","))
	query.Set("convert", "USD")

	var resp cmcResponse
	err := f.http.GetJSON(ctx, f.baseURL+cmcQuotesPath+"?"+query.Encode(),
		map[string]string{"X-CMC_PRO_API_KEY": f.apiKey}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap error %d: %s", resp.Status.ErrorCode, resp.Status.ErrorMessage)
	}

	rates := make(models.RateTable, len(assets))
	for _, a := range assets {
		entries := resp.Data[a.String()]
		if len(entries) == 0 {
			zap.L().Warn("CoinMarketCap returned no data for asset", zap.String("asset", a.String()))
			continue
		}
		// The first entry is the highest ranked token for an ambiguous symbol.
		usd, ok := entries[0].Quote["USD"]
		if !ok || usd.Price <= 0 {
			continue
		}
		rates[a] = decimal.NewFromFloat(usd.Price)
	}

	return rates, nil
}
