/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package quote

import (
	"sync"

	"token-checkout-go/internal/models"
)

// RateSource supplies the latest rate and fee snapshots.
type RateSource interface {
	SpotRates() models.RateTable
	NetworkFees() models.FeeTable
}

// Engine holds the active asset and fiat input of one checkout and prices
// them against the current rate snapshots.
type Engine struct {
	catalog models.AssetCatalog
	rates   RateSource
	policy  FeePolicy

	mu         sync.RWMutex
	asset      models.Asset
	fiatAmount string
}

func NewEngine(catalog models.AssetCatalog, rates RateSource, policy FeePolicy) *Engine {
	e := &Engine{catalog: catalog, rates: rates, policy: policy}
	if assets := catalog.Assets(); len(assets) > 0 {
		e.asset = assets[0]
	}
	return e
}

// SelectAsset switches the active asset. The fiat amount is kept.
func (e *Engine) SelectAsset(asset models.Asset) error {
	if _, ok := e.catalog.Get(asset); !ok {
		return NewValidationError(CodeMissingAsset, "asset %q is not offered", asset)
	}
	e.mu.Lock()
	e.asset = asset
	e.mu.Unlock()
	return nil
}

func (e *Engine) SetFiatAmount(raw string) {
	e.mu.Lock()
	e.fiatAmount = raw
	e.mu.Unlock()
}

func (e *Engine) Asset() models.Asset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.asset
}

func (e *Engine) FeePolicy() FeePolicy {
	return e.policy
}

// Quote prices the current input against the latest snapshots, using the
// session balance of the active asset.
func (e *Engine) Quote(session *models.WalletSession) models.Quote {
	e.mu.RLock()
	asset, fiat := e.asset, e.fiatAmount
	e.mu.RUnlock()

	return ComputeQuote(Input{
		FiatAmount:   fiat,
		Asset:        asset,
		Rates:        e.rates.SpotRates(),
		Fees:         e.rates.NetworkFees(),
		FallbackFees: e.fallbackFees(),
		KnownBalance: KnownBalance(session, asset),
		Policy:       e.policy,
	})
}

func (e *Engine) fallbackFees() models.FeeTable {
	fees := make(models.FeeTable, len(e.catalog))
	for asset, info := range e.catalog {
		fees[asset] = info.FallbackFee
	}
	return fees
}
