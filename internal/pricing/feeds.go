package pricing

import (
	"context"

	"token-checkout-go/internal/models"
)

// PriceFeed returns USD spot prices. Assets missing from the result are
// treated as unavailable for this round.
type PriceFeed interface {
	Name() string
	GetSpotPrices(ctx context.Context, assets []models.Asset) (models.RateTable, error)
}

// FeeFeed returns per-asset network fee estimates in USD. rates is the
// latest spot table, for feeds that price fees in a native coin.
type FeeFeed interface {
	Name() string
	GetNetworkFees(ctx context.Context, assets []models.Asset, rates models.RateTable) (models.FeeTable, error)
}

// StaticPriceFeed serves a fixed table. Used offline and in demos.
type StaticPriceFeed struct {
	Rates models.RateTable
}

func (StaticPriceFeed) Name() string { return "static" }

func (f StaticPriceFeed) GetSpotPrices(_ context.Context, assets []models.Asset) (models.RateTable, error) {
	out := make(models.RateTable, len(assets))
	for _, a := range assets {
		if r, ok := f.Rates[a]; ok {
			out[a] = r
		}
	}
	return out, nil
}

// StaticFeeFeed serves a fixed fee table.
type StaticFeeFeed struct {
	Fees models.FeeTable
}

func (StaticFeeFeed) Name() string { return "static" }

func (f StaticFeeFeed) GetNetworkFees(_ context.Context, assets []models.Asset, _ models.RateTable) (models.FeeTable, error) {
	out := make(models.FeeTable, len(assets))
	for _, a := range assets {
		if fee, ok := f.Fees[a]; ok {
			out[a] = fee
		}
	}
	return out, nil
}
