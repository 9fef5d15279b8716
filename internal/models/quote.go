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

import "github.com/shopspring/decimal"

// RateTable maps an asset to its USD spot price.
type RateTable map[Asset]decimal.Decimal

// FeeTable maps an asset to its estimated network fee in USD.
type FeeTable map[Asset]decimal.Decimal

// Quote is the fee-inclusive pricing of a fiat amount in one asset.
type Quote struct {
	FiatAmount           decimal.Decimal `json:"fiat_amount"`
	Asset                Asset           `json:"asset"`
	SpotRate             decimal.Decimal `json:"spot_rate"`
	AssetAmount          decimal.Decimal `json:"asset_amount"`
	NetworkFeeUSD        decimal.Decimal `json:"network_fee_usd"`
	ProcessingFeeUSD     decimal.Decimal `json:"processing_fee_usd"`
	TotalUSD             decimal.Decimal `json:"total_usd"`
	TotalAssetAmount     decimal.Decimal `json:"total_asset_amount"`
	HasSufficientBalance bool            `json:"has_sufficient_balance"`
}

// IsZero reports whether the quote collapsed because of invalid input.
func (q Quote) IsZero() bool {
	return q.FiatAmount.IsZero() && q.TotalAssetAmount.IsZero()
}
