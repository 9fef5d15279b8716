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

package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNoWalletAvailable = errors.New("no wallet available")
	ErrNotConnected      = errors.New("wallet not connected")
)

// Adapter is one way of reaching the payer's funds.
type Adapter interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Connect(ctx context.Context) (*models.WalletSession, error)
}

// BalanceReader is implemented by adapters that can re-read balances of a
// connected session.
type BalanceReader interface {
	Balances(ctx context.Context, session *models.WalletSession) (map[models.Asset]decimal.Decimal, error)
}

// Registry holds adapters in preference order. The first available one is
// chosen on first use and kept for the lifetime of the registry.
type Registry struct {
	adapters []Adapter

	mu       sync.Mutex
	resolved Adapter
	session  *models.WalletSession
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Resolve returns the chosen adapter, probing the ranked list on first call.
// A failed availability check is not cached.
func (r *Registry) Resolve(ctx context.Context) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(ctx)
}

func (r *Registry) resolveLocked(ctx context.Context) (Adapter, error) {
	if r.resolved != nil {
		return r.resolved, nil
	}

	for _, adapter := range r.adapters {
		if adapter.IsAvailable(ctx) {
			r.resolved = adapter
			zap.L().Info("Wallet adapter resolved", zap.String("adapter", adapter.Name()))
			return adapter, nil
		}
		zap.L().Debug("Wallet adapter unavailable", zap.String("adapter", adapter.Name()))
	}
	return nil, ErrNoWalletAvailable
}

// Connect opens a session on the resolved adapter. An existing session is returned as is.
func (r *Registry) Connect(ctx context.Context) (*models.WalletSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return copySession(r.session), nil
	}

	adapter, err := r.resolveLocked(ctx)
	if err != nil {
		return nil, err
	}

	session, err := adapter.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s connect failed: %w", adapter.Name(), err)
	}
	session.Adapter = adapter.Name()
	session.Connected = true
	r.session = session

	zap.L().Info("Wallet connected",
		zap.String("adapter", session.Adapter),
		zap.String("address", session.Address),
		zap.Int("resolved_balances", len(session.Balances)))
	return copySession(session), nil
}

// RefreshBalances re-reads balances into the session when the adapter supports it.
func (r *Registry) RefreshBalances(ctx context.Context) (*models.WalletSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil, ErrNotConnected
	}
	reader, ok := r.resolved.(BalanceReader)
	if !ok {
		return copySession(r.session), nil
	}

	balances, err := reader.Balances(ctx, copySession(r.session))
	if err != nil {
		return nil, fmt.Errorf("balance refresh failed: %w", err)
	}
	r.session.Balances = balances
	return copySession(r.session), nil
}

// Session returns a copy of the current session, or nil.
func (r *Registry) Session() *models.WalletSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySession(r.session)
}

func (r *Registry) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		zap.L().Info("Wallet disconnected", zap.String("adapter", r.session.Adapter))
	}
	r.session = nil
}

func copySession(s *models.WalletSession) *models.WalletSession {
	if s == nil {
		return nil
	}
	out := *s
	if s.Balances != nil {
		out.Balances = make(map[models.Asset]decimal.Decimal, len(s.Balances))
		for a, b := range s.Balances {
			out.Balances[a] = b
		}
	}
	return &out
}
