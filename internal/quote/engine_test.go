package quote

import (
	"errors"
	"testing"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRates struct {
	rates models.RateTable
	fees  models.FeeTable
}

func (s staticRates) SpotRates() models.RateTable  { return s.rates }
func (s staticRates) NetworkFees() models.FeeTable { return s.fees }

func testCatalog() models.AssetCatalog {
	return models.AssetCatalog{
		models.AssetETH:  {Symbol: models.AssetETH, FallbackFee: d("5")},
		models.AssetUSDC: {Symbol: models.AssetUSDC, FallbackFee: d("8")},
	}
}

func TestEngineSelectAssetKeepsFiatAmount(t *testing.T) {
	rates := staticRates{
		rates: models.RateTable{models.AssetETH: d("2000"), models.AssetUSDC: d("1")},
		fees:  models.FeeTable{models.AssetETH: d("20")},
	}
	engine := NewEngine(testCatalog(), rates, FeePolicy{})
	require.Equal(t, models.AssetETH, engine.Asset())

	engine.SetFiatAmount("100")
	session := &models.WalletSession{Connected: true, Balances: map[models.Asset]decimal.Decimal{
		models.AssetETH:  d("0.1"),
		models.AssetUSDC: d("50"),
	}}

	ethQuote := engine.Quote(session)
	assert.True(t, ethQuote.TotalAssetAmount.Equal(d("0.06")))
	assert.True(t, ethQuote.HasSufficientBalance)

	require.NoError(t, engine.SelectAsset(models.AssetUSDC))
	usdcQuote := engine.Quote(session)
	assert.True(t, usdcQuote.FiatAmount.Equal(d("100")))
	assert.True(t, usdcQuote.NetworkFeeUSD.Equal(d("8")), "fallback fee expected, got %s", usdcQuote.NetworkFeeUSD)
	assert.True(t, usdcQuote.TotalAssetAmount.Equal(d("108")))
	// Checked against the USDC balance, not the native one.
	assert.False(t, usdcQuote.HasSufficientBalance)
}

func TestEngineSelectUnknownAsset(t *testing.T) {
	engine := NewEngine(testCatalog(), staticRates{}, FeePolicy{})

	err := engine.SelectAsset(models.AssetBTC)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, CodeMissingAsset, verr.Code)
	assert.Equal(t, models.AssetETH, engine.Asset())
}

func TestCheckSufficientBalance(t *testing.T) {
	session := &models.WalletSession{Balances: map[models.Asset]decimal.Decimal{models.AssetETH: d("0.1")}}

	tests := []struct {
		name     string
		required string
		asset    models.Asset
		session  *models.WalletSession
		want     BalanceCheck
	}{
		{"enough", "0.06", models.AssetETH, session, BalanceCheck{true, ReasonSufficient}},
		{"exactly enough", "0.1", models.AssetETH, session, BalanceCheck{true, ReasonSufficient}},
		{"too little", "0.2", models.AssetETH, session, BalanceCheck{false, ReasonInsufficient}},
		{"not loaded", "1", models.AssetUSDT, session, BalanceCheck{false, ReasonLoading}},
		{"no session", "1", models.AssetETH, nil, BalanceCheck{false, ReasonLoading}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckSufficientBalance(d(tt.required), tt.asset, tt.session))
		})
	}
}
