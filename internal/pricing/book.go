package pricing

import (
	"context"
	"sync"
	"time"

	"token-checkout-go/internal/metrics"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Book holds the latest spot rate and network fee of every catalog asset.
// Reads return copies; refreshes merge per asset, last write wins.
type Book struct {
	catalog  models.AssetCatalog
	prices   PriceFeed
	fees     FeeFeed
	store    store.RateStore
	recorder metrics.Recorder
	now      func() time.Time

	mu        sync.RWMutex
	rates     models.RateTable
	feeTable  models.FeeTable
	updatedAt time.Time
}

type BookOption func(*Book)

// WithRateStore persists a snapshot after every refresh.
func WithRateStore(s store.RateStore) BookOption {
	return func(b *Book) { b.store = s }
}

func WithRecorder(r metrics.Recorder) BookOption {
	return func(b *Book) { b.recorder = r }
}

func NewBook(catalog models.AssetCatalog, prices PriceFeed, fees FeeFeed, opts ...BookOption) *Book {
	b := &Book{
		catalog:  catalog,
		prices:   prices,
		fees:     fees,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
		rates:    make(models.RateTable),
		feeTable: make(models.FeeTable),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Restore seeds the tables from the newest persisted snapshots, so a restart
// serves the last known values instead of fallbacks.
func (b *Book) Restore(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	snapshots, err := b.store.LatestRateSnapshots(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, snap := range snapshots {
		if _, ok := b.catalog.Get(snap.Asset); !ok {
			continue
		}
		if snap.SpotRate.IsPositive() {
			b.rates[snap.Asset] = snap.SpotRate
		}
		if !snap.NetworkFeeUSD.IsNegative() {
			b.feeTable[snap.Asset] = snap.NetworkFeeUSD
		}
		if snap.TakenAt.After(b.updatedAt) {
			b.updatedAt = snap.TakenAt
		}
	}
	zap.L().Info("Rate book restored", zap.Int("snapshots", len(snapshots)))
	return nil
}

// RefreshSpotRates fetches prices and merges them. An asset the feed did not
// price keeps its previous rate; the fallback rate is used only when the
// asset has never been priced. The returned error is informational.
func (b *Book) RefreshSpotRates(ctx context.Context) error {
	assets := b.catalog.Assets()
	start := b.now()
	fetched, err := b.prices.GetSpotPrices(ctx, assets)
	b.recorder.ObserveLatency(metrics.OpSpotRefresh, b.now().Sub(start), nil)
	if err != nil {
		err = fetchError(b.prices.Name(), err)
		b.recorder.IncCounter(metrics.EventFeedFailure, map[string]string{"status": b.prices.Name()})
		zap.L().Warn("Spot price refresh failed, keeping previous rates", zap.Error(err))
	}

	b.mu.Lock()
	for _, asset := range assets {
		if rate, ok := fetched[asset]; ok && rate.IsPositive() {
			b.rates[asset] = rate
			continue
		}
		if _, had := b.rates[asset]; had {
			continue
		}
		info, _ := b.catalog.Get(asset)
		b.rates[asset] = info.FallbackRate
		b.recorder.IncCounter(metrics.EventFallbackUsed, map[string]string{"asset": asset.String(), "status": "rate"})
		zap.L().Info("Using fallback rate", zap.String("asset", asset.String()), zap.String("rate", info.FallbackRate.String()))
	}
	b.updatedAt = b.now()
	b.mu.Unlock()

	b.persist(ctx)
	return err
}

// RefreshNetworkFees fetches fee estimates priced with the current rates.
// Any asset without a fresh estimate gets its fallback fee.
func (b *Book) RefreshNetworkFees(ctx context.Context) error {
	assets := b.catalog.Assets()
	start := b.now()
	fetched, err := b.fees.GetNetworkFees(ctx, assets, b.SpotRates())
	b.recorder.ObserveLatency(metrics.OpFeeRefresh, b.now().Sub(start), nil)
	if err != nil {
		err = fetchError(b.fees.Name(), err)
		b.recorder.IncCounter(metrics.EventFeedFailure, map[string]string{"status": b.fees.Name()})
		zap.L().Warn("Network fee refresh failed, using fallback fees", zap.Error(err))
	}

	b.mu.Lock()
	for _, asset := range assets {
		if fee, ok := fetched[asset]; ok && !fee.IsNegative() {
			b.feeTable[asset] = fee
			continue
		}
		info, _ := b.catalog.Get(asset)
		b.feeTable[asset] = info.FallbackFee
		b.recorder.IncCounter(metrics.EventFallbackUsed, map[string]string{"asset": asset.String(), "status": "fee"})
	}
	b.updatedAt = b.now()
	b.mu.Unlock()

	b.persist(ctx)
	return err
}

func (b *Book) SpotRates() models.RateTable {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(models.RateTable, len(b.rates))
	for a, r := range b.rates {
		out[a] = r
	}
	return out
}

func (b *Book) NetworkFees() models.FeeTable {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(models.FeeTable, len(b.feeTable))
	for a, f := range b.feeTable {
		out[a] = f
	}
	return out
}

func (b *Book) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// Snapshot returns one row per catalog asset with whatever is known.
func (b *Book) Snapshot() []models.RateSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	assets := b.catalog.Assets()
	out := make([]models.RateSnapshot, 0, len(assets))
	for _, asset := range assets {
		rate, hasRate := b.rates[asset]
		fee, hasFee := b.feeTable[asset]
		if !hasRate && !hasFee {
			continue
		}
		if !hasRate {
			rate = decimal.Zero
		}
		if !hasFee {
			fee = decimal.Zero
		}
		out = append(out, models.RateSnapshot{
			Asset:         asset,
			SpotRate:      rate,
			NetworkFeeUSD: fee,
			Source:        b.prices.Name(),
			TakenAt:       b.updatedAt,
		})
	}
	return out
}

func (b *Book) persist(ctx context.Context) {
	if b.store == nil {
		return
	}
	if err := b.store.SaveRateSnapshots(ctx, b.Snapshot()); err != nil {
		zap.L().Warn("Failed to persist rate snapshots", zap.Error(err))
	}
}
