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

package common

import (
	"context"
	"fmt"

	"token-checkout-go/internal/store"

	"go.uber.org/zap"
)

// PayerInfo is the slice of a payer record the command-line tools print.
type PayerInfo struct {
	Id    string
	Name  string
	Email string
}

// LoadPayers returns the payer with emailFilter, or every active payer when
// the filter is empty.
func LoadPayers(ctx context.Context, payers store.PayerStore, emailFilter string) ([]PayerInfo, error) {
	if emailFilter != "" {
		zap.L().Info("Looking up payer by email", zap.String("email", emailFilter))
		payer, err := payers.GetPayerByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("payer not found: %w", err)
		}
		return []PayerInfo{{Id: payer.Id, Name: payer.Name, Email: payer.Email}}, nil
	}

	all, err := payers.ListPayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get payers: %w", err)
	}

	out := make([]PayerInfo, 0, len(all))
	for _, p := range all {
		out = append(out, PayerInfo{Id: p.Id, Name: p.Name, Email: p.Email})
	}

	zap.L().Info("Retrieved payers", zap.Int("count", len(out)))
	return out, nil
}
