package wallet

import (
	"context"
	"fmt"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const CustodialAdapterName = "custodial"

// CustodialAdapter is a payer account held in custody. Balances come from
// the payer's subledger; spending goes through custody withdrawals.
type CustodialAdapter struct {
	payers   store.PayerStore
	balances store.BalanceStore
	catalog  models.AssetCatalog
	email    string
}

func NewCustodialAdapter(payers store.PayerStore, balances store.BalanceStore, catalog models.AssetCatalog, email string) *CustodialAdapter {
	return &CustodialAdapter{payers: payers, balances: balances, catalog: catalog, email: email}
}

func (c *CustodialAdapter) Name() string { return CustodialAdapterName }

func (c *CustodialAdapter) IsAvailable(ctx context.Context) bool {
	if c.email == "" || c.payers == nil {
		return false
	}
	if _, err := c.payers.GetPayerByEmail(ctx, c.email); err != nil {
		zap.L().Debug("Custodial payer not found", zap.String("email", c.email), zap.Error(err))
		return false
	}
	return true
}

func (c *CustodialAdapter) Connect(ctx context.Context) (*models.WalletSession, error) {
	payer, err := c.payers.GetPayerByEmail(ctx, c.email)
	if err != nil {
		return nil, err
	}

	session := &models.WalletSession{Address: payer.Email, PayerId: payer.Id}
	balances, err := c.Balances(ctx, session)
	if err != nil {
		return nil, err
	}
	session.Balances = balances
	return session, nil
}

// Balances reads the subledger balance of every catalog asset. Assets the
// payer never held resolve to zero.
func (c *CustodialAdapter) Balances(ctx context.Context, session *models.WalletSession) (map[models.Asset]decimal.Decimal, error) {
	if session == nil || session.PayerId == "" {
		return nil, ErrNotConnected
	}

	balances := make(map[models.Asset]decimal.Decimal)
	for _, asset := range c.catalog.Assets() {
		balance, err := c.balances.GetUserBalance(ctx, session.PayerId, asset)
		if err != nil {
			return nil, fmt.Errorf("unable to read %s balance: %w", asset, err)
		}
		balances[asset] = balance
	}
	return balances, nil
}
