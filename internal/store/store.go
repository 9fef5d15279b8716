package store

import (
	"context"
	"errors"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrPayerNotFound          = errors.New("payer not found")
	ErrPayerExists            = errors.New("payer already exists")
	ErrAttemptNotFound        = errors.New("payment attempt not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
)

// DebitParams describes a custodial spend taken from a payer's subledger balance.
type DebitParams struct {
	UserId    string
	Asset     models.Asset
	Amount    decimal.Decimal // positive amount to take
	Reference string          // payment attempt id, unique per debit
	Recipient string
}

// CreditParams describes funds added to a payer's subledger balance.
type CreditParams struct {
	UserId       string
	Asset        models.Asset
	Amount       decimal.Decimal
	ExternalTxId string
	Reference    string
}

// PayerParams registers a custodial payer.
type PayerParams struct {
	Id    string `validate:"required,uuid"`
	Name  string `validate:"required,max=100"`
	Email string `validate:"required,email"`
}

// PayerStore holds custodial payers.
type PayerStore interface {
	ListPayers(ctx context.Context) ([]models.Payer, error)
	GetPayer(ctx context.Context, payerId string) (*models.Payer, error)
	GetPayerByEmail(ctx context.Context, email string) (*models.Payer, error)
	CreatePayer(ctx context.Context, params PayerParams) (*models.Payer, error)
}

// BalanceStore is the custodial subledger.
type BalanceStore interface {
	GetUserBalance(ctx context.Context, userId string, asset models.Asset) (decimal.Decimal, error)
	GetAllUserBalances(ctx context.Context, userId string) ([]models.AccountBalance, error)
	Credit(ctx context.Context, params CreditParams) (*models.Transaction, error)
	Debit(ctx context.Context, params DebitParams) (*models.Transaction, error)
	ReverseDebit(ctx context.Context, params DebitParams) error
	GetTransactionHistory(ctx context.Context, userId string, asset models.Asset, limit, offset int) ([]models.Transaction, error)
	ReconcileUserBalance(ctx context.Context, userId string, asset models.Asset) error
}

// PaymentStore keeps the audit trail of payment attempts.
type PaymentStore interface {
	SavePayment(ctx context.Context, attempt *models.PaymentAttempt) error
	GetPayment(ctx context.Context, id string) (*models.PaymentAttempt, error)
	ListPayments(ctx context.Context, payerId string, limit int) ([]models.PaymentAttempt, error)
}

// RateStore persists rate book observations.
type RateStore interface {
	SaveRateSnapshots(ctx context.Context, snapshots []models.RateSnapshot) error
	LatestRateSnapshots(ctx context.Context) ([]models.RateSnapshot, error)
}

// CheckoutStore is the full contract a local backend satisfies.
type CheckoutStore interface {
	PayerStore
	BalanceStore
	PaymentStore
	RateStore

	Close()
}
