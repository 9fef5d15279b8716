package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPriceFeed struct {
	mu      sync.Mutex
	results []models.RateTable
	errs    []error
	calls   int
}

func (f *scriptedPriceFeed) Name() string { return "scripted" }

func (f *scriptedPriceFeed) GetSpotPrices(context.Context, []models.Asset) (models.RateTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], f.errs[i]
}

type memoryRateStore struct {
	saved [][]models.RateSnapshot
	seed  []models.RateSnapshot
}

func (s *memoryRateStore) SaveRateSnapshots(_ context.Context, snaps []models.RateSnapshot) error {
	s.saved = append(s.saved, snaps)
	return nil
}

func (s *memoryRateStore) LatestRateSnapshots(context.Context) ([]models.RateSnapshot, error) {
	return s.seed, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) IncCounter(name string, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name+"/"+labels["status"]]++
}

func (r *countingRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRefreshSpotRatesKeepsStaleRateOnFailure(t *testing.T) {
	feed := &scriptedPriceFeed{
		results: []models.RateTable{
			{models.AssetETH: d("2100"), models.AssetBTC: d("60000"), models.AssetSOL: d("150"), models.AssetUSDC: d("1")},
			nil,
		},
		errs: []error{nil, errors.New("timeout")},
	}
	book := NewBook(testCatalog(), feed, StaticFeeFeed{})

	require.NoError(t, book.RefreshSpotRates(context.Background()))
	err := book.RefreshSpotRates(context.Background())
	require.Error(t, err)

	var fetchErr *ExternalFetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.True(t, book.SpotRates()[models.AssetETH].Equal(d("2100")))
	assert.True(t, book.SpotRates()[models.AssetBTC].Equal(d("60000")))
}

func TestRefreshSpotRatesFallbackOnlyWithoutPriorValue(t *testing.T) {
	feed := &scriptedPriceFeed{
		results: []models.RateTable{
			{models.AssetETH: d("2100")},
			{models.AssetBTC: d("61000")},
		},
		errs: []error{nil, nil},
	}
	book := NewBook(testCatalog(), feed, StaticFeeFeed{})

	require.NoError(t, book.RefreshSpotRates(context.Background()))
	rates := book.SpotRates()
	assert.True(t, rates[models.AssetETH].Equal(d("2100")))
	assert.True(t, rates[models.AssetBTC].Equal(d("45000")), "never priced, fallback")
	assert.True(t, rates[models.AssetSOL].Equal(d("100")))

	require.NoError(t, book.RefreshSpotRates(context.Background()))
	rates = book.SpotRates()
	assert.True(t, rates[models.AssetETH].Equal(d("2100")), "missing from second round, kept")
	assert.True(t, rates[models.AssetBTC].Equal(d("61000")))
}

func TestRefreshSpotRatesIgnoresNonPositiveRates(t *testing.T) {
	feed := &scriptedPriceFeed{
		results: []models.RateTable{{models.AssetETH: d("2100")}, {models.AssetETH: d("0")}},
		errs:    []error{nil, nil},
	}
	book := NewBook(testCatalog(), feed, StaticFeeFeed{})

	require.NoError(t, book.RefreshSpotRates(context.Background()))
	require.NoError(t, book.RefreshSpotRates(context.Background()))
	assert.True(t, book.SpotRates()[models.AssetETH].Equal(d("2100")))
}

func TestRefreshNetworkFeesSubstitutesFallback(t *testing.T) {
	fees := NewCompositeFeeFeed(map[models.Asset]FeeFeed{
		models.AssetETH: StaticFeeFeed{Fees: models.FeeTable{models.AssetETH: d("1.25")}},
		models.AssetBTC: failingFeeFeed{},
	})
	recorder := &countingRecorder{counts: make(map[string]int)}
	book := NewBook(testCatalog(), StaticPriceFeed{}, fees, WithRecorder(recorder))

	err := book.RefreshNetworkFees(context.Background())
	require.Error(t, err)

	table := book.NetworkFees()
	assert.True(t, table[models.AssetETH].Equal(d("1.25")))
	assert.True(t, table[models.AssetBTC].Equal(d("3")))
	assert.True(t, table[models.AssetSOL].Equal(d("0.01")))
	assert.True(t, table[models.AssetUSDC].Equal(d("8")))

	assert.Equal(t, 1, recorder.counts["feed_failure/composite"])
	assert.Equal(t, 3, recorder.counts["fallback_used/fee"])
}

func TestBookReturnsCopies(t *testing.T) {
	book := NewBook(testCatalog(), StaticPriceFeed{Rates: models.RateTable{models.AssetETH: d("2000")}}, StaticFeeFeed{})
	require.NoError(t, book.RefreshSpotRates(context.Background()))

	rates := book.SpotRates()
	rates[models.AssetETH] = d("1")
	assert.True(t, book.SpotRates()[models.AssetETH].Equal(d("2000")))
}

func TestBookPersistsAndRestores(t *testing.T) {
	store := &memoryRateStore{}
	book := NewBook(testCatalog(), StaticPriceFeed{Rates: models.RateTable{models.AssetETH: d("2000")}},
		StaticFeeFeed{Fees: models.FeeTable{models.AssetETH: d("4")}}, WithRateStore(store))

	require.NoError(t, book.RefreshSpotRates(context.Background()))
	require.NoError(t, book.RefreshNetworkFees(context.Background()))
	require.Len(t, store.saved, 2)

	last := store.saved[1]
	require.NotEmpty(t, last)
	assert.Equal(t, models.AssetETH, last[0].Asset)
	assert.True(t, last[0].NetworkFeeUSD.Equal(d("4")))
	assert.Equal(t, "static", last[0].Source)

	restored := NewBook(testCatalog(), StaticPriceFeed{}, StaticFeeFeed{}, WithRateStore(&memoryRateStore{seed: []models.RateSnapshot{
		{Asset: models.AssetETH, SpotRate: d("2222"), NetworkFeeUSD: d("3"), TakenAt: time.Now()},
		{Asset: models.AssetUSDT, SpotRate: d("1"), NetworkFeeUSD: d("8"), TakenAt: time.Now()},
	}}))
	require.NoError(t, restored.Restore(context.Background()))
	assert.True(t, restored.SpotRates()[models.AssetETH].Equal(d("2222")))
	assert.NotContains(t, restored.SpotRates(), models.AssetUSDT, "not in catalog")
	assert.False(t, restored.UpdatedAt().IsZero())
}
