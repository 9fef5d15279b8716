package formance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"token-checkout-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The payer account is the source; it may go negative because the funds
// left a wallet outside this ledger.
const numscriptPaymentSettled = `vars {
  asset $asset
  number $amount
  account $payer
  account $merchant
  string $payment_id
  string $transaction_hash
  string $recipient_address
  string $dispatch_path
  string $asset_symbol
  string $amount_human
  string $total_usd
  string $fiat_usd
}

send [$asset $amount] (
  source = $payer allowing unbounded overdraft
  destination = $merchant
)

set_tx_meta("event_type", "payment_settled")
set_tx_meta("payment_id", $payment_id)
set_tx_meta("transaction_hash", $transaction_hash)
set_tx_meta("recipient_address", $recipient_address)
set_tx_meta("dispatch_path", $dispatch_path)
set_tx_meta("asset_symbol", $asset_symbol)
set_tx_meta("amount_human", $amount_human)
set_tx_meta("total_usd", $total_usd)
set_tx_meta("fiat_usd", $fiat_usd)
`

// Settlement is a journaled payment as read back from the ledger.
type Settlement struct {
	Reference       string
	PaymentId       string
	Asset           models.Asset
	Amount          decimal.Decimal
	TransactionHash string
	TotalUSD        decimal.Decimal
	Timestamp       time.Time
}

func settlementReference(paymentId string) string {
	return "payment:" + paymentId
}

func merchantAccount(asset models.Asset) string {
	return "merchant:settlements:" + strings.ToLower(asset.String())
}

// payerAccount names the ledger account of whoever paid: a custodial payer
// by id, otherwise the sending wallet address.
func payerAccount(attempt *models.PaymentAttempt) string {
	if attempt.PayerId != "" {
		return "payers:" + attempt.PayerId
	}
	if attempt.PayerAddress != "" {
		return "wallets:" + strings.ToLower(attempt.PayerAddress)
	}
	return "payers:unknown"
}

// RecordSettlement journals a confirmed payment. Recording the same attempt
// twice is a no-op.
func (j *Journal) RecordSettlement(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt.Status != models.StatusConfirmed {
		return fmt.Errorf("payment %s is %s, only confirmed payments are journaled", attempt.Id, attempt.Status)
	}

	symbol := attempt.Asset.String()
	postTx := shared.V2PostTransaction{
		Reference: strPtr(settlementReference(attempt.Id)),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptPaymentSettled,
			Vars: map[string]string{
				"asset":             formanceAsset(symbol),
				"amount":            toSmallestUnit(attempt.TotalAssetAmount, symbol),
				"payer":             payerAccount(attempt),
				"merchant":          merchantAccount(attempt.Asset),
				"payment_id":        attempt.Id,
				"transaction_hash":  attempt.TransactionHash,
				"recipient_address": attempt.RecipientAddress,
				"dispatch_path":     string(attempt.Path),
				"asset_symbol":      symbol,
				"amount_human":      attempt.TotalAssetAmount.String(),
				"total_usd":         attempt.TotalUSD.StringFixed(2),
				"fiat_usd":          attempt.FiatAmount.StringFixed(2),
			},
		},
	}
	if !attempt.UpdatedAt.IsZero() {
		ts := attempt.UpdatedAt.UTC()
		postTx.Timestamp = &ts
	}

	_, err := j.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            j.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if hasErrorCode(err, shared.V2ErrorsEnumConflict) {
			zap.L().Debug("Settlement already journaled", zap.String("payment_id", attempt.Id))
			return nil
		}
		return fmt.Errorf("error journaling settlement: %w", err)
	}

	zap.L().Info("Settlement journaled",
		zap.String("payment_id", attempt.Id),
		zap.String("asset", symbol),
		zap.String("amount", attempt.TotalAssetAmount.String()))
	return nil
}

// MerchantBalance returns the total settled to the merchant in one asset.
func (j *Journal) MerchantBalance(ctx context.Context, asset models.Asset) (decimal.Decimal, error) {
	resp, err := j.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  j.ledger,
		Address: merchantAccount(asset),
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if hasErrorCode(err, shared.V2ErrorsEnumNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("unable to read merchant account: %w", err)
	}

	bal := volumeBalance(resp.V2AccountResponse.Data.Volumes, formanceAsset(asset.String()))
	return bigIntToDecimal(bal, asset.String()), nil
}

// RecentSettlements lists the newest journaled payments into the merchant
// account of asset.
func (j *Journal) RecentSettlements(ctx context.Context, asset models.Asset, limit int64) ([]Settlement, error) {
	resp, err := j.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
		Ledger:   j.ledger,
		PageSize: &limit,
		RequestBody: map[string]any{
			"$match": map[string]any{"destination": merchantAccount(asset)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list settlements: %w", err)
	}

	return settlementsFrom(resp.V2TransactionsCursorResponse.Cursor.Data), nil
}

// settlementsFrom keeps the payment settlements among txs, skipping reverted ones.
func settlementsFrom(txs []shared.V2Transaction) []Settlement {
	var out []Settlement
	for _, tx := range txs {
		if tx.Reverted || tx.Metadata["event_type"] != "payment_settled" {
			continue
		}
		out = append(out, settlementFromMetadata(tx.Reference, tx.Metadata, tx.Timestamp))
	}
	return out
}

func settlementFromMetadata(reference *string, meta map[string]string, ts time.Time) Settlement {
	s := Settlement{
		PaymentId:       meta["payment_id"],
		Asset:           models.Asset(meta["asset_symbol"]),
		TransactionHash: meta["transaction_hash"],
		Timestamp:       ts,
	}
	if reference != nil {
		s.Reference = *reference
	}
	if amt, err := decimal.NewFromString(meta["amount_human"]); err == nil {
		s.Amount = amt
	}
	if usd, err := decimal.NewFromString(meta["total_usd"]); err == nil {
		s.TotalUSD = usd
	}
	return s
}
