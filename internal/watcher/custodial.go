package watcher

import (
	"context"
	"strings"
	"time"

	"token-checkout-go/internal/dispatch"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/prime"
)

// lookback widens the listing window for clock skew with the custodian.
const lookback = 5 * time.Minute

// WithdrawalFinder is the part of the Prime service the custodial watcher reads.
type WithdrawalFinder interface {
	FindWithdrawal(ctx context.Context, portfolioId, walletId, idempotencyKey string, since time.Time) (*models.PrimeTransaction, error)
}

var _ WithdrawalFinder = (*prime.Service)(nil)

// CustodialWatcher polls custody wallet transactions for the withdrawal
// created under the handle's idempotency key.
type CustodialWatcher struct {
	custody     WithdrawalFinder
	portfolioId string
	cfg         Config
}

func NewCustodialWatcher(custody WithdrawalFinder, portfolioId string, cfg Config) *CustodialWatcher {
	return &CustodialWatcher{custody: custody, portfolioId: portfolioId, cfg: cfg.withDefaults()}
}

func (w *CustodialWatcher) Watch(ctx context.Context, handle *dispatch.Handle) <-chan Event {
	since := handle.SubmittedAt.Add(-lookback)
	return follow(ctx, "withdrawal:"+handle.ActivityId, w.cfg, func(ctx context.Context) (Event, error) {
		tx, err := w.custody.FindWithdrawal(ctx, w.portfolioId, handle.WalletId, handle.IdempotencyKey, since)
		if err != nil {
			return Event{}, err
		}
		if tx == nil {
			return Event{Status: StatusPending}, nil
		}
		return withdrawalEvent(tx), nil
	})
}

func withdrawalEvent(tx *models.PrimeTransaction) Event {
	switch tx.Status {
	case prime.StatusDone:
		return Event{Status: StatusConfirmed, TxHash: tx.TransactionId}
	case prime.StatusCancelled, prime.StatusRejected, prime.StatusFailed, prime.StatusExpired:
		reason := strings.ToLower(strings.TrimPrefix(tx.Status, "TRANSACTION_"))
		return Event{Status: StatusFailed, Reason: "withdrawal " + reason, TxHash: tx.TransactionId}
	}
	return Event{Status: StatusPending, TxHash: tx.TransactionId}
}
