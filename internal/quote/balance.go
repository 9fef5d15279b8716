package quote

import (
	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	ReasonLoading      = "insufficient - loading"
	ReasonInsufficient = "insufficient funds"
	ReasonSufficient   = "sufficient"
)

type BalanceCheck struct {
	Sufficient bool
	Reason     string
}

// CheckSufficientBalance compares required against the session balance of
// the same asset. An unresolved balance reports loading, not insufficient funds.
func CheckSufficientBalance(required decimal.Decimal, asset models.Asset, session *models.WalletSession) BalanceCheck {
	balance, ok := session.Balance(asset)
	if !ok {
		return BalanceCheck{Reason: ReasonLoading}
	}
	if balance.LessThan(required) {
		return BalanceCheck{Reason: ReasonInsufficient}
	}
	return BalanceCheck{Sufficient: true, Reason: ReasonSufficient}
}

// KnownBalance returns the session balance of asset as a nullable decimal.
func KnownBalance(session *models.WalletSession, asset models.Asset) decimal.NullDecimal {
	balance, ok := session.Balance(asset)
	return decimal.NullDecimal{Decimal: balance, Valid: ok}
}
