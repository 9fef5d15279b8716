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
	"strings"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
)

// divisionPlaces is the number of decimal places kept when dividing by a spot rate.
const divisionPlaces = 18

// Input is everything a quote depends on.
type Input struct {
	FiatAmount   string
	Asset        models.Asset
	Rates        models.RateTable
	Fees         models.FeeTable
	FallbackFees models.FeeTable     // used when Fees has no entry for Asset
	KnownBalance decimal.NullDecimal // balance in Asset; invalid while unresolved
	Policy       FeePolicy
}

// ParseFiatAmount parses user input as a positive USD amount.
func ParseFiatAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

// ComputeQuote prices a fiat amount in one asset. It never fails: invalid
// amounts, unknown assets and missing or non-positive rates all yield a quote
// whose derived fields are zero and whose balance flag is false.
func ComputeQuote(in Input) models.Quote {
	zero := models.Quote{Asset: in.Asset}

	fiat, ok := ParseFiatAmount(in.FiatAmount)
	if !ok || !in.Asset.Valid() {
		return zero
	}
	rate, ok := in.Rates[in.Asset]
	if !ok || !rate.IsPositive() {
		return zero
	}

	networkFee, ok := in.Fees[in.Asset]
	if !ok {
		networkFee = in.FallbackFees[in.Asset]
	}
	processingFee := in.Policy.Fee(fiat)
	totalUSD := fiat.Add(networkFee).Add(processingFee)
	totalAsset := totalUSD.DivRound(rate, divisionPlaces)

	return models.Quote{
		FiatAmount:           fiat,
		Asset:                in.Asset,
		SpotRate:             rate,
		AssetAmount:          fiat.DivRound(rate, divisionPlaces),
		NetworkFeeUSD:        networkFee,
		ProcessingFeeUSD:     processingFee,
		TotalUSD:             totalUSD,
		TotalAssetAmount:     totalAsset,
		HasSufficientBalance: in.KnownBalance.Valid && in.KnownBalance.Decimal.GreaterThanOrEqual(totalAsset),
	}
}
