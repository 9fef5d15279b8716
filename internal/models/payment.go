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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	StatusIdle                  PaymentStatus = "idle"
	StatusAwaitingConfirmation  PaymentStatus = "awaiting-wallet-confirmation"
	StatusSubmitted             PaymentStatus = "submitted"
	StatusConfirming            PaymentStatus = "confirming"
	StatusConfirmed             PaymentStatus = "confirmed"
	StatusFailed                PaymentStatus = "failed"
	StatusManualPaymentRequired PaymentStatus = "manual-payment-required"
)

// IsTerminal reports whether no further transition can leave this status.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusManualPaymentRequired:
		return true
	}
	return false
}

// DispatchPath records which transfer path handled an attempt.
type DispatchPath string

const (
	PathEVMNative DispatchPath = "evm-native"
	PathEVMToken  DispatchPath = "evm-token"
	PathCustodial DispatchPath = "custodial"
	PathManual    DispatchPath = "manual"
)

// ManualInstructions is what the payer needs to send funds by hand.
type ManualInstructions struct {
	Asset      Asset           `json:"asset"`
	Network    Network         `json:"network"`
	Address    string          `json:"address"`
	Amount     decimal.Decimal `json:"amount"`
	PaymentURI string          `json:"payment_uri"`
	QRCode     string          `json:"qr_code,omitempty"` // data:image/png;base64,...
}

// PaymentAttempt is one user initiated send.
type PaymentAttempt struct {
	Id               string              `db:"id"`
	PayerId          string              `db:"payer_id"`
	PayerAddress     string              `db:"payer_address"`
	Asset            Asset               `db:"asset"`
	FiatAmount       decimal.Decimal     `db:"fiat_amount"`
	TotalUSD         decimal.Decimal     `db:"total_usd"`
	TotalAssetAmount decimal.Decimal     `db:"total_asset_amount"`
	RecipientAddress string              `db:"recipient_address"`
	TransactionHash  string              `db:"transaction_hash"`
	Status           PaymentStatus       `db:"status"`
	FailureReason    string              `db:"failure_reason"`
	Path             DispatchPath        `db:"dispatch_path"`
	Manual           *ManualInstructions `db:"-"`
	CreatedAt        time.Time           `db:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at"`
}
