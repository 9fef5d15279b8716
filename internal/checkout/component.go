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

package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"token-checkout-go/internal/metrics"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/payment"
	"token-checkout-go/internal/poller"
	"token-checkout-go/internal/pricing"
	"token-checkout-go/internal/quote"
	"token-checkout-go/internal/store"
	"token-checkout-go/internal/wallet"
	"token-checkout-go/internal/watcher"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrFeatureDisabled = errors.New("feature disabled")
	ErrClosed          = errors.New("checkout closed")
)

// Comparator prices the same purchase through a third-party on-ramp.
type Comparator interface {
	BuyQuote(ctx context.Context, asset models.Asset, fiatAmount decimal.Decimal) (*pricing.BuyQuote, error)
}

var _ Comparator = (*pricing.MoonPayClient)(nil)

// Deps are the collaborators of a Component. Optional fields may be nil.
type Deps struct {
	Catalog    models.AssetCatalog
	Prices     pricing.PriceFeed
	Fees       pricing.FeeFeed
	Adapters   []wallet.Adapter
	Dispatcher payment.Dispatcher
	Watcher    watcher.Watcher

	Store      store.CheckoutStore
	Journal    payment.Journal
	Comparator Comparator
	Recorder   metrics.Recorder
}

// Component is one checkout: a rate book kept fresh by pollers, the quote
// engine, the payer's wallet and the payment service.
type Component struct {
	cfg        models.CheckoutConfig
	catalog    models.AssetCatalog
	book       *pricing.Book
	engine     *quote.Engine
	wallets    *wallet.Registry
	payments   *payment.Service
	comparator Comparator

	pollers poller.Group

	mu      sync.Mutex
	started bool
	closed  bool
}

// Comparison is the engine quote next to an on-ramp quote for the same amount.
type Comparison struct {
	Quote    models.Quote
	OnRamp   *pricing.BuyQuote
	SavedUSD decimal.Decimal // on-ramp total minus our total, negative when we cost more
}

// WalletPanel is the debug view of the connected wallet.
type WalletPanel struct {
	Adapter  string
	Address  string
	Balances map[models.Asset]decimal.Decimal
}

func New(cfg models.CheckoutConfig, deps Deps) (*Component, error) {
	if len(deps.Catalog) == 0 {
		return nil, fmt.Errorf("asset catalogue is empty")
	}
	if deps.Prices == nil || deps.Fees == nil {
		return nil, fmt.Errorf("price and fee feeds are required")
	}
	if deps.Dispatcher == nil || deps.Watcher == nil {
		return nil, fmt.Errorf("dispatcher and watcher are required")
	}

	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	bookOpts := []pricing.BookOption{pricing.WithRecorder(recorder)}
	var payments store.PaymentStore
	if deps.Store != nil {
		bookOpts = append(bookOpts, pricing.WithRateStore(deps.Store))
		payments = deps.Store
	}
	book := pricing.NewBook(deps.Catalog, deps.Prices, deps.Fees, bookOpts...)

	policy := quote.FeePolicy{Percent: cfg.ProcessingFeePercent, FlatUSD: cfg.ProcessingFeeFlatUSD}

	var journal payment.Journal
	if cfg.Features.SettlementJournal {
		journal = deps.Journal
	}

	c := &Component{
		cfg:     cfg,
		catalog: deps.Catalog,
		book:    book,
		engine:  quote.NewEngine(deps.Catalog, book, policy),
		wallets: wallet.NewRegistry(deps.Adapters...),
		payments: payment.NewService(payment.ServiceConfig{
			Catalog:    deps.Catalog,
			Dispatcher: deps.Dispatcher,
			Watcher:    deps.Watcher,
			Store:      payments,
			Journal:    journal,
			Recorder:   recorder,
		}),
	}
	if cfg.Features.DemoComparator {
		c.comparator = deps.Comparator
	}
	return c, nil
}

func (c *Component) Version() string { return c.cfg.Version }

func (c *Component) Features() models.Features { return c.cfg.Features }

func (c *Component) Catalog() models.AssetCatalog { return c.catalog }

func (c *Component) Book() *pricing.Book { return c.book }

// Start restores the last stored rates and starts the rate and fee pollers.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return poller.ErrAlreadyStarted
	}

	if err := c.book.Restore(ctx); err != nil {
		zap.L().Warn("Unable to restore rate snapshots", zap.Error(err))
	}

	interval, timeout := c.cfg.PollingInterval, c.cfg.PollTimeout
	if _, err := c.pollers.Go(ctx, "spot-rates", interval, timeout, c.book.RefreshSpotRates); err != nil {
		return err
	}
	if _, err := c.pollers.Go(ctx, "network-fees", interval, timeout, c.book.RefreshNetworkFees); err != nil {
		c.pollers.StopAll()
		return err
	}
	c.started = true

	zap.L().Info("Checkout started",
		zap.String("version", c.cfg.Version),
		zap.Duration("poll_interval", interval),
		zap.Int("assets", len(c.catalog)))
	return nil
}

// Refresh runs one spot rate refresh followed by one fee refresh. Feed
// failures are absorbed by the book and returned for reporting only.
func (c *Component) Refresh(ctx context.Context) error {
	return errors.Join(c.book.RefreshSpotRates(ctx), c.book.RefreshNetworkFees(ctx))
}

func (c *Component) SetFiatAmount(raw string) {
	c.engine.SetFiatAmount(raw)
}

func (c *Component) SelectAsset(asset models.Asset) error {
	return c.engine.SelectAsset(asset)
}

func (c *Component) Asset() models.Asset {
	return c.engine.Asset()
}

// Quote prices the current input with the connected wallet's balances.
func (c *Component) Quote() models.Quote {
	return c.engine.Quote(c.wallets.Session())
}

func (c *Component) ConnectWallet(ctx context.Context) (*models.WalletSession, error) {
	return c.wallets.Connect(ctx)
}

func (c *Component) DisconnectWallet() {
	c.wallets.Disconnect()
}

func (c *Component) Session() *models.WalletSession {
	return c.wallets.Session()
}

// Pay re-reads the wallet balances, prices the current input and dispatches it.
func (c *Component) Pay(ctx context.Context) (*payment.Payment, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	session := c.wallets.Session()
	if session != nil {
		refreshed, err := c.wallets.RefreshBalances(ctx)
		if err != nil {
			zap.L().Warn("Balance refresh before payment failed, using last known balances", zap.Error(err))
		} else {
			session = refreshed
		}
	}

	return c.payments.DispatchPayment(ctx, c.engine.Quote(session), session)
}

// Compare prices the current input through the on-ramp comparator.
func (c *Component) Compare(ctx context.Context) (*Comparison, error) {
	if c.comparator == nil {
		return nil, fmt.Errorf("demo comparator: %w", ErrFeatureDisabled)
	}

	q := c.Quote()
	if q.IsZero() {
		return nil, quote.NewValidationError(quote.CodeMissingAmount, "enter an amount greater than zero")
	}

	onRamp, err := c.comparator.BuyQuote(ctx, q.Asset, q.FiatAmount)
	if err != nil {
		return nil, err
	}
	return &Comparison{
		Quote:    q,
		OnRamp:   onRamp,
		SavedUSD: onRamp.TotalAmount.Sub(q.TotalUSD),
	}, nil
}

// DebugPanel describes the connected wallet when the debug panel is enabled.
func (c *Component) DebugPanel() (*WalletPanel, error) {
	if !c.cfg.Features.DebugWalletPanel {
		return nil, fmt.Errorf("debug wallet panel: %w", ErrFeatureDisabled)
	}
	session := c.wallets.Session()
	if session == nil {
		return nil, wallet.ErrNotConnected
	}
	return &WalletPanel{Adapter: session.Adapter, Address: session.Address, Balances: session.Balances}, nil
}

// LastUpdated reports when the rate book last changed.
func (c *Component) LastUpdated() time.Time {
	return c.book.UpdatedAt()
}

// Close stops the pollers and every payment watcher. In-flight feed requests
// are aborted. It is safe to call more than once.
func (c *Component) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.pollers.StopAll()
	c.payments.Close()
	zap.L().Info("Checkout closed", zap.String("version", c.cfg.Version))
}
