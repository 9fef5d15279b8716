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

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// FeePolicy is the single processing fee charged on every dispatch path:
// a percentage of the fiat amount plus a flat USD amount.
type FeePolicy struct {
	Percent decimal.Decimal
	FlatUSD decimal.Decimal
}

// Fee returns the processing fee for a fiat amount, rounded to cents.
func (p FeePolicy) Fee(fiat decimal.Decimal) decimal.Decimal {
	fee := p.FlatUSD
	if !p.Percent.IsZero() {
		fee = fee.Add(fiat.Mul(p.Percent).Div(hundred))
	}
	return fee.Round(2)
}
