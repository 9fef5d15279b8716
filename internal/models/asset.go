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

package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Asset is a settlement currency offered at checkout.
type Asset string

const (
	AssetETH  Asset = "ETH"
	AssetBTC  Asset = "BTC"
	AssetSOL  Asset = "SOL"
	AssetUSDC Asset = "USDC"
	AssetUSDT Asset = "USDT"
)

// SupportedAssets lists every asset in display order.
var SupportedAssets = []Asset{AssetETH, AssetBTC, AssetSOL, AssetUSDC, AssetUSDT}

func (a Asset) String() string {
	return string(a)
}

func (a Asset) Valid() bool {
	for _, s := range SupportedAssets {
		if a == s {
			return true
		}
	}
	return false
}

// ParseAsset normalizes a user supplied symbol. Unknown symbols return false.
func ParseAsset(symbol string) (Asset, bool) {
	a := Asset(strings.ToUpper(strings.TrimSpace(symbol)))
	if !a.Valid() {
		return "", false
	}
	return a, true
}

// DefaultFallbackRates are USD spot rates used when no feed value was ever seen.
var DefaultFallbackRates = map[Asset]decimal.Decimal{
	AssetETH:  decimal.NewFromInt(2000),
	AssetBTC:  decimal.NewFromInt(45000),
	AssetSOL:  decimal.NewFromInt(100),
	AssetUSDC: decimal.NewFromInt(1),
	AssetUSDT: decimal.NewFromInt(1),
}

// DefaultFallbackFees are USD network fees used when the fee feed fails.
var DefaultFallbackFees = map[Asset]decimal.Decimal{
	AssetETH:  decimal.NewFromInt(5),
	AssetBTC:  decimal.NewFromInt(3),
	AssetSOL:  decimal.RequireFromString("0.01"),
	AssetUSDC: decimal.NewFromInt(8),
	AssetUSDT: decimal.NewFromInt(8),
}

// DispatchKind tells the router which transfer path serves an asset.
type DispatchKind string

const (
	DispatchNative DispatchKind = "native"
	DispatchToken  DispatchKind = "token"
	DispatchManual DispatchKind = "manual"
)

// AssetInfo is the static description of one asset loaded from assets.yaml.
type AssetInfo struct {
	Symbol       Asset
	Network      Network
	Decimals     int32
	Contract     string // token contract, empty for native assets
	Recipient    string // fixed merchant address for this asset
	Dispatch     DispatchKind
	FallbackRate decimal.Decimal
	FallbackFee  decimal.Decimal
}

// AssetCatalog indexes asset metadata by symbol.
type AssetCatalog map[Asset]AssetInfo

func (c AssetCatalog) Get(a Asset) (AssetInfo, bool) {
	info, ok := c[a]
	return info, ok
}

// Assets returns the configured assets in SupportedAssets order.
func (c AssetCatalog) Assets() []Asset {
	out := make([]Asset, 0, len(c))
	for _, a := range SupportedAssets {
		if _, ok := c[a]; ok {
			out = append(out, a)
		}
	}
	return out
}
