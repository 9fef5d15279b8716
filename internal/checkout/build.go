package checkout

import (
	"context"

	"token-checkout-go/internal/chain"
	"token-checkout-go/internal/common"
	"token-checkout-go/internal/dispatch"
	"token-checkout-go/internal/metrics"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/pricing"
	"token-checkout-go/internal/wallet"
	"token-checkout-go/internal/watcher"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// BuildOptions select the payer for custodial payments.
type BuildOptions struct {
	PayerEmail string
	Recorder   metrics.Recorder
}

// Built is a wired component and the resources it holds open.
type Built struct {
	*Component
	rpc *ethclient.Client
}

// Close shuts the component down and releases its node connection.
func (b *Built) Close() {
	if b.Component != nil {
		b.Component.Close()
	}
	if b.rpc != nil {
		b.rpc.Close()
	}
}

// Build wires a Component from configuration and initialized services.
// The self-custody wallet is offered when an RPC endpoint and key are
// configured; the custodial wallet when custodial payments are enabled and
// a payer email is given. The keystore ranks first.
func Build(ctx context.Context, cfg *models.Config, services *common.Services, opts BuildOptions) (*Built, error) {
	catalog := services.Catalog

	httpClient, err := pricing.NewHTTPClient(cfg.Pricing)
	if err != nil {
		return nil, err
	}

	built := &Built{}
	if cfg.Chain.RPCURL != "" {
		built.rpc, err = chain.Dial(ctx, cfg.Chain.RPCURL, evmChainID(catalog))
		if err != nil {
			return nil, err
		}
	}

	deps := Deps{
		Catalog:  catalog,
		Prices:   priceFeed(cfg, catalog, httpClient),
		Fees:     feeFeed(cfg, catalog, httpClient, built.rpc),
		Recorder: opts.Recorder,
	}
	if services.DbService != nil {
		deps.Store = services.DbService
	}
	if services.Journal != nil {
		deps.Journal = services.Journal
	}
	if cfg.Checkout.Features.DemoComparator {
		deps.Comparator = pricing.NewMoonPayClient(httpClient, cfg.Pricing)
	}

	watchCfg := watcher.Config{
		PollInterval:     cfg.Checkout.ReceiptPollInterval,
		Timeout:          cfg.Checkout.ConfirmationTimeout,
		MinConfirmations: cfg.Checkout.MinConfirmations,
	}

	var (
		evmDispatcher       *dispatch.EVMDispatcher
		custodialDispatcher *dispatch.CustodialDispatcher
		evmWatcher          watcher.Watcher
		custodialWatcher    watcher.Watcher
	)

	if built.rpc != nil && cfg.Chain.PrivateKey != "" {
		keystore, err := wallet.NewKeystoreAdapter(built.rpc, evmChainID(catalog), cfg.Chain.PrivateKey, catalog)
		if err != nil {
			built.Close()
			return nil, err
		}
		deps.Adapters = append(deps.Adapters, keystore)
		evmDispatcher = dispatch.NewEVMDispatcher(built.rpc, keystore.PrivateKey(), keystore.ChainID(),
			cfg.Chain.GasLimitNative, cfg.Chain.GasLimitToken)
		evmWatcher = watcher.NewEVMWatcher(built.rpc, watchCfg)
	}

	if services.PrimeService != nil && services.Portfolio != nil {
		if opts.PayerEmail != "" && services.DbService != nil {
			deps.Adapters = append(deps.Adapters,
				wallet.NewCustodialAdapter(services.DbService, services.DbService, catalog, opts.PayerEmail))
		}
		custodialDispatcher = dispatch.NewCustodialDispatcher(services.PrimeService, services.DbService, services.Portfolio.Id)
		custodialWatcher = watcher.NewCustodialWatcher(services.PrimeService, services.Portfolio.Id, watchCfg)
	}

	deps.Dispatcher = dispatch.NewRouter(catalog, evmDispatcher, custodialDispatcher,
		dispatch.NewManualDispatcher(cfg.Checkout.Features.QRCode))
	deps.Watcher = watcher.NewRouter(evmWatcher, custodialWatcher)

	component, err := New(cfg.Checkout, deps)
	if err != nil {
		built.Close()
		return nil, err
	}
	built.Component = component

	zap.L().Info("Checkout wired",
		zap.String("version", cfg.Checkout.Version),
		zap.Int("wallet_adapters", len(deps.Adapters)),
		zap.Bool("self_custody", evmDispatcher != nil),
		zap.Bool("custodial", custodialDispatcher != nil),
		zap.String("price_source", deps.Prices.Name()))
	return built, nil
}

func priceFeed(cfg *models.Config, catalog models.AssetCatalog, client *pricing.HTTPClient) pricing.PriceFeed {
	if cfg.Pricing.Source == "static" || cfg.Pricing.CoinMarketCapAPIKey == "" {
		if cfg.Pricing.Source != "static" {
			zap.L().Warn("COINMARKETCAP_API_KEY not set, using static prices")
		}
		return pricing.StaticPriceFeed{Rates: fallbackRates(catalog)}
	}
	return pricing.NewCoinMarketCapFeed(client, cfg.Pricing.CoinMarketCapBaseURL, cfg.Pricing.CoinMarketCapAPIKey)
}

// feeFeed routes EVM assets to live gas prices when a node is connected,
// BTC to mempool fee rates and SOL to the base fee. Anything else gets its
// catalogue fallback fee.
func feeFeed(cfg *models.Config, catalog models.AssetCatalog, client *pricing.HTTPClient, rpc *ethclient.Client) pricing.FeeFeed {
	static := pricing.StaticFeeFeed{Fees: fallbackFees(catalog)}
	if cfg.Pricing.Source == "static" {
		return static
	}

	var gas pricing.FeeFeed
	if rpc != nil {
		gas = pricing.NewEVMGasFeeFeed(rpc, catalog, cfg.Chain.GasLimitNative, cfg.Chain.GasLimitToken)
	}

	routes := make(map[models.Asset]pricing.FeeFeed, len(catalog))
	for asset, info := range catalog {
		switch {
		case info.Network.IsEVM() && gas != nil:
			routes[asset] = gas
		case info.Network == models.NetworkBitcoin:
			routes[asset] = pricing.NewBitcoinFeeFeed(client, cfg.Pricing.BitcoinFeeURL)
		case info.Network == models.NetworkSolana:
			routes[asset] = pricing.SolanaFeeFeed{}
		default:
			routes[asset] = static
		}
	}
	return pricing.NewCompositeFeeFeed(routes)
}

func fallbackRates(catalog models.AssetCatalog) models.RateTable {
	rates := make(models.RateTable, len(catalog))
	for asset, info := range catalog {
		rates[asset] = info.FallbackRate
	}
	return rates
}

func fallbackFees(catalog models.AssetCatalog) models.FeeTable {
	fees := make(models.FeeTable, len(catalog))
	for asset, info := range catalog {
		fees[asset] = info.FallbackFee
	}
	return fees
}

// evmChainID is the chain of the first EVM asset in the catalogue, or 0.
func evmChainID(catalog models.AssetCatalog) int64 {
	for _, asset := range catalog.Assets() {
		if info, _ := catalog.Get(asset); info.Network.IsEVM() {
			return info.Network.ChainID()
		}
	}
	return 0
}
