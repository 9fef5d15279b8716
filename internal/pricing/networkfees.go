package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// BitcoinTxVBytes is the size assumed for a one-input, two-output segwit payment.
	BitcoinTxVBytes = 140
	// SolanaBaseFeeLamports is the signature fee of a simple transfer.
	SolanaBaseFeeLamports = 5000
)

// GasPricer suggests an EVM gas price in wei.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// EVMGasFeeFeed prices native and token transfers on EVM networks as
// suggested gas price times gas limit, converted with the ETH rate.
type EVMGasFeeFeed struct {
	client         GasPricer
	catalog        models.AssetCatalog
	gasLimitNative uint64
	gasLimitToken  uint64
}

func NewEVMGasFeeFeed(client GasPricer, catalog models.AssetCatalog, gasLimitNative, gasLimitToken uint64) *EVMGasFeeFeed {
	return &EVMGasFeeFeed{client: client, catalog: catalog, gasLimitNative: gasLimitNative, gasLimitToken: gasLimitToken}
}

func (f *EVMGasFeeFeed) Name() string { return "evm-gas" }

func (f *EVMGasFeeFeed) GetNetworkFees(ctx context.Context, assets []models.Asset, rates models.RateTable) (models.FeeTable, error) {
	ethRate, ok := rates[models.AssetETH]
	if !ok || !ethRate.IsPositive() {
		return nil, errors.New("no ETH rate to price gas")
	}

	gasPrice, err := f.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to suggest gas price: %w", err)
	}
	wei := decimal.NewFromBigInt(gasPrice, 0)

	fees := make(models.FeeTable, len(assets))
	for _, a := range assets {
		info, ok := f.catalog.Get(a)
		if !ok || !info.Network.IsEVM() {
			continue
		}
		limit := f.gasLimitNative
		if info.Dispatch == models.DispatchToken {
			limit = f.gasLimitToken
		}
		costEth := wei.Mul(decimal.NewFromInt(int64(limit))).Shift(-18)
		fees[a] = costEth.Mul(ethRate).Round(2)
	}
	return fees, nil
}

type mempoolFees struct {
	FastestFee  int64 `json:"fastestFee"`
	HalfHourFee int64 `json:"halfHourFee"`
	HourFee     int64 `json:"hourFee"`
	EconomyFee  int64 `json:"economyFee"`
	MinimumFee  int64 `json:"minimumFee"`
}

// BitcoinFeeFeed prices a BTC payment from the mempool.space recommended
// half-hour fee rate.
type BitcoinFeeFeed struct {
	http *HTTPClient
	url  string
}

func NewBitcoinFeeFeed(client *HTTPClient, url string) *BitcoinFeeFeed {
	return &BitcoinFeeFeed{http: client, url: url}
}

func (f *BitcoinFeeFeed) Name() string { return "mempool" }

func (f *BitcoinFeeFeed) GetNetworkFees(ctx context.Context, assets []models.Asset, rates models.RateTable) (models.FeeTable, error) {
	if !containsAsset(assets, models.AssetBTC) {
		return models.FeeTable{}, nil
	}
	btcRate, ok := rates[models.AssetBTC]
	if !ok || !btcRate.IsPositive() {
		return nil, errors.New("no BTC rate to price fee")
	}

	var recommended mempoolFees
	if err := f.http.GetJSON(ctx, f.url, nil, &recommended); err != nil {
		return nil, err
	}
	if recommended.HalfHourFee <= 0 {
		return nil, fmt.Errorf("mempool returned fee rate %d sat/vB", recommended.HalfHourFee)
	}

	sats := decimal.NewFromInt(recommended.HalfHourFee * BitcoinTxVBytes)
	return models.FeeTable{models.AssetBTC: sats.Shift(-8).Mul(btcRate).Round(2)}, nil
}

// SolanaFeeFeed charges the fixed base signature fee.
type SolanaFeeFeed struct{}

func (SolanaFeeFeed) Name() string { return "solana-base-fee" }

func (SolanaFeeFeed) GetNetworkFees(_ context.Context, assets []models.Asset, rates models.RateTable) (models.FeeTable, error) {
	if !containsAsset(assets, models.AssetSOL) {
		return models.FeeTable{}, nil
	}
	solRate, ok := rates[models.AssetSOL]
	if !ok || !solRate.IsPositive() {
		return nil, errors.New("no SOL rate to price fee")
	}
	fee := decimal.NewFromInt(SolanaBaseFeeLamports).Shift(-9).Mul(solRate)
	return models.FeeTable{models.AssetSOL: fee}, nil
}

// CompositeFeeFeed routes each asset to the feed that prices it and merges
// the results. A failing route does not hide the others: the merged table
// is returned together with the joined errors.
type CompositeFeeFeed struct {
	routes map[models.Asset]FeeFeed
}

func NewCompositeFeeFeed(routes map[models.Asset]FeeFeed) *CompositeFeeFeed {
	return &CompositeFeeFeed{routes: routes}
}

func (f *CompositeFeeFeed) Name() string { return "composite" }

func (f *CompositeFeeFeed) GetNetworkFees(ctx context.Context, assets []models.Asset, rates models.RateTable) (models.FeeTable, error) {
	// Grouped by name: feeds holding tables are not comparable.
	grouped := make(map[string][]models.Asset)
	feeds := make(map[string]FeeFeed)
	var order []string
	for _, a := range assets {
		feed, ok := f.routes[a]
		if !ok {
			continue
		}
		name := feed.Name()
		if _, seen := feeds[name]; !seen {
			feeds[name] = feed
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], a)
	}

	merged := make(models.FeeTable, len(assets))
	var errs []error
	for _, name := range order {
		feed := feeds[name]
		fees, err := feed.GetNetworkFees(ctx, grouped[name], rates)
		if err != nil {
			errs = append(errs, fetchError(feed.Name(), err))
			continue
		}
		for a, fee := range fees {
			merged[a] = fee
		}
	}
	return merged, errors.Join(errs...)
}

func containsAsset(assets []models.Asset, target models.Asset) bool {
	for _, a := range assets {
		if a == target {
			return true
		}
	}
	return false
}
