package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/prime"
	"token-checkout-go/internal/quote"
	"token-checkout-go/internal/store"

	"go.uber.org/zap"
)

const (
	// withdrawalLookback widens the listing window for clock skew with Prime.
	withdrawalLookback      = 5 * time.Minute
	withdrawalLookupTimeout = 15 * time.Second
)

// Custody is the part of the Prime service used to pay out of custody.
type Custody interface {
	FindTradingWallet(ctx context.Context, portfolioId, symbol string) (*models.Wallet, error)
	CreateWithdrawal(ctx context.Context, params prime.CreateWithdrawalParams) (*models.Withdrawal, error)
	FindWithdrawal(ctx context.Context, portfolioId, walletId, idempotencyKey string, since time.Time) (*models.PrimeTransaction, error)
}

var _ Custody = (*prime.Service)(nil)

// CustodialDispatcher pays from a custodial payer: the subledger is debited
// first, then a withdrawal is requested. A refused withdrawal reverses the
// debit. When the outcome is unknown the debit is held until Prime lists
// the withdrawal or an operator reconciles it.
type CustodialDispatcher struct {
	custody     Custody
	balances    store.BalanceStore
	portfolioId string
	now         func() time.Time
}

func NewCustodialDispatcher(custody Custody, balances store.BalanceStore, portfolioId string) *CustodialDispatcher {
	return &CustodialDispatcher{custody: custody, balances: balances, portfolioId: portfolioId, now: time.Now}
}

func (d *CustodialDispatcher) Dispatch(ctx context.Context, t Transfer) (*Handle, error) {
	if err := ValidateTransfer(t); err != nil {
		return nil, err
	}
	if t.Session.PayerId == "" {
		return nil, quote.NewValidationError(quote.CodeWalletNotConnected, "custodial session has no payer")
	}

	wallet, err := d.custody.FindTradingWallet(ctx, d.portfolioId, t.Asset.String())
	if err != nil {
		if errors.Is(err, prime.ErrWalletNotFound) {
			return nil, ErrUnsupported
		}
		return nil, fmt.Errorf("unable to find custody wallet: %w", err)
	}

	debit := store.DebitParams{
		UserId:    t.Session.PayerId,
		Asset:     t.Asset,
		Amount:    t.Amount.RoundCeil(t.Info.Decimals),
		Reference: t.AttemptId,
		Recipient: t.Recipient,
	}
	if _, err := d.balances.Debit(ctx, debit); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return nil, &WalletRejectionError{Reason: "insufficient custodial balance", Err: err}
		}
		return nil, fmt.Errorf("unable to debit payer: %w", err)
	}

	requestedAt := d.now()
	withdrawal, err := d.custody.CreateWithdrawal(ctx, prime.CreateWithdrawalParams{
		PortfolioId:        d.portfolioId,
		WalletId:           wallet.Id,
		DestinationAddress: t.Recipient,
		Amount:             debit.Amount.String(),
		Symbol:             t.Asset.String(),
		Network:            t.Info.Network,
		IdempotencyKey:     t.AttemptId,
	})
	if err != nil {
		if errors.Is(err, prime.ErrWithdrawalRejected) {
			d.reverseDebit(ctx, debit)
			return nil, rejection(err)
		}
		return d.resolveWithdrawal(ctx, t, wallet.Id, debit, requestedAt, err)
	}

	return &Handle{
		Path:           models.PathCustodial,
		Asset:          t.Asset,
		ActivityId:     withdrawal.ActivityId,
		WalletId:       wallet.Id,
		IdempotencyKey: t.AttemptId,
		SubmittedAt:    requestedAt,
	}, nil
}

// resolveWithdrawal settles a withdrawal request whose answer was lost by asking
// Prime for it under the attempt's idempotency key.
func (d *CustodialDispatcher) resolveWithdrawal(ctx context.Context, t Transfer, walletId string, debit store.DebitParams, requestedAt time.Time, cause error) (*Handle, error) {
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), withdrawalLookupTimeout)
	defer cancel()
	tx, err := d.custody.FindWithdrawal(lookupCtx, d.portfolioId, walletId, t.AttemptId, requestedAt.Add(-withdrawalLookback))
	switch {
	case err != nil:
		zap.L().Error("Withdrawal outcome unknown, holding payer debit",
			zap.String("attempt_id", t.AttemptId),
			zap.String("user_id", debit.UserId),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return nil, fmt.Errorf("withdrawal outcome unknown, debit held for reconciliation: %w", cause)
	case tx == nil:
		zap.L().Warn("Withdrawal not listed after failed request, holding payer debit",
			zap.String("attempt_id", t.AttemptId),
			zap.String("user_id", debit.UserId),
			zap.Error(cause))
		return nil, fmt.Errorf("withdrawal outcome unknown, debit held for reconciliation: %w", cause)
	case tx.Status == prime.StatusRejected || tx.Status == prime.StatusCancelled:
		d.reverseDebit(ctx, debit)
		return nil, &WalletRejectionError{Reason: "withdrawal " + strings.ToLower(strings.TrimPrefix(tx.Status, "TRANSACTION_")), Err: cause}
	}

	zap.L().Info("Recovered withdrawal after failed request",
		zap.String("attempt_id", t.AttemptId),
		zap.String("transaction_id", tx.Id),
		zap.String("status", tx.Status))
	return &Handle{
		Path:           models.PathCustodial,
		Asset:          t.Asset,
		ActivityId:     tx.Id,
		WalletId:       walletId,
		IdempotencyKey: t.AttemptId,
		SubmittedAt:    requestedAt,
	}, nil
}

func (d *CustodialDispatcher) reverseDebit(ctx context.Context, debit store.DebitParams) {
	// The request context may already be gone; the reversal must still land.
	if err := d.balances.ReverseDebit(context.WithoutCancel(ctx), debit); err != nil {
		zap.L().Error("Failed to reverse debit after rejected withdrawal",
			zap.String("attempt_id", debit.Reference),
			zap.String("user_id", debit.UserId),
			zap.Error(err))
	}
}

// Reverse credits back the debit of a submitted attempt that custody later failed.
func (d *CustodialDispatcher) Reverse(ctx context.Context, t Transfer) error {
	return d.balances.ReverseDebit(ctx, store.DebitParams{
		UserId:    t.Session.PayerId,
		Asset:     t.Asset,
		Amount:    t.Amount.RoundCeil(t.Info.Decimals),
		Reference: t.AttemptId,
		Recipient: t.Recipient,
	})
}
