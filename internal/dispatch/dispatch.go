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

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/quote"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrUnsupported means no automated path can move this asset for the
// session; the payer gets manual instructions instead.
var ErrUnsupported = errors.New("no automated transfer path")

// WalletRejectionError is a refusal by the wallet, node or custodian.
// Reason is shown to the payer unchanged.
type WalletRejectionError struct {
	Reason string
	Err    error
}

func (e *WalletRejectionError) Error() string {
	return "wallet rejected payment: " + e.Reason
}

func (e *WalletRejectionError) Unwrap() error {
	return e.Err
}

func rejection(err error) error {
	return &WalletRejectionError{Reason: err.Error(), Err: err}
}

// Transfer is one payment to move: Amount of Asset to Recipient, paid from Session.
type Transfer struct {
	AttemptId string                `validate:"required,uuid"`
	Asset     models.Asset          `validate:"required"`
	Recipient string                `validate:"required"`
	Amount    decimal.Decimal       `validate:"-"`
	Info      models.AssetInfo      `validate:"-"`
	Session   *models.WalletSession `validate:"required"`
}

// Handle identifies a submitted transfer so a watcher can follow it.
type Handle struct {
	Path           models.DispatchPath
	Asset          models.Asset
	TxHash         string
	ActivityId     string
	WalletId       string
	IdempotencyKey string
	SubmittedAt    time.Time
	Manual         *models.ManualInstructions
}

// Reference is the handle shown to the payer and stored on the attempt.
func (h *Handle) Reference() string {
	if h.TxHash != "" {
		return h.TxHash
	}
	return h.ActivityId
}

type Dispatcher interface {
	Dispatch(ctx context.Context, t Transfer) (*Handle, error)
}

var (
	validate = validator.New()

	// Bitcoin alphabet: no 0, O, I or l.
	base58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

func init() {
	if err := validate.RegisterValidation("base58", func(fl validator.FieldLevel) bool {
		return base58Regex.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("unable to register base58 validator: %v", err))
	}
}

// ValidateTransfer rejects a malformed transfer before any wallet is called.
func ValidateTransfer(t Transfer) error {
	if err := validate.Struct(t); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			field := fieldErrs[0]
			if field.Field() == "Recipient" {
				return quote.NewValidationError(quote.CodeInvalidRecipient, "recipient address is required")
			}
			return quote.NewValidationError(quote.CodeInvalidAmount, "invalid transfer %s: %s", field.Field(), field.Tag())
		}
		return fmt.Errorf("unable to validate transfer: %w", err)
	}
	if !t.Amount.IsPositive() {
		return quote.NewValidationError(quote.CodeInvalidAmount, "amount must be positive, got %s", t.Amount)
	}
	return ValidateRecipient(t.Info.Network, t.Recipient)
}

// ValidateRecipient checks the address format expected on network.
func ValidateRecipient(network models.Network, address string) error {
	var tag string
	switch {
	case network.IsEVM():
		tag = "required,eth_addr"
	case network == models.NetworkBitcoin:
		tag = "required,btc_addr|btc_addr_bech32"
	case network == models.NetworkSolana:
		tag = "required,min=32,max=44,base58"
	default:
		tag = "required"
	}
	if err := validate.Var(address, tag); err != nil {
		return quote.NewValidationError(quote.CodeInvalidRecipient, "malformed %s address %q", network, address)
	}
	return nil
}
