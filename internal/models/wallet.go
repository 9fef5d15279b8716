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

// WalletSession is the connection a wallet adapter hands back.
// A missing balance entry means the balance has not resolved yet.
type WalletSession struct {
	Adapter   string
	Address   string
	PayerId   string
	Connected bool
	Balances  map[Asset]decimal.Decimal
}

// Balance returns the known balance for an asset and whether it has resolved.
func (s *WalletSession) Balance(a Asset) (decimal.Decimal, bool) {
	if s == nil || s.Balances == nil {
		return decimal.Zero, false
	}
	b, ok := s.Balances[a]
	return b, ok
}
