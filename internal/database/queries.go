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

package database

const (
	// Payer queries
	payerColumns = `id, name, email, created_at, updated_at`

	queryListPayers = `
		SELECT ` + payerColumns + `
		FROM payers
		WHERE active = 1
		ORDER BY created_at, id`

	queryInsertPayer = `
		INSERT INTO payers (id, name, email) VALUES (?, ?, ?)`

	queryInsertDemoPayer = `
		INSERT OR IGNORE INTO payers (id, name, email) VALUES (?, ?, ?)`

	queryGetPayer = `
		SELECT ` + payerColumns + `
		FROM payers
		WHERE id = ? AND active = 1`

	queryGetPayerByEmail = `
		SELECT ` + payerColumns + `
		FROM payers
		WHERE email = ? AND active = 1`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryGetAllUserBalances = `
		SELECT id, user_id, asset, balance, last_transaction_id, version, updated_at
		FROM account_balances
		WHERE user_id = ? AND balance != '0'
		ORDER BY asset`

	queryReconcileAmounts = `
		SELECT amount
		FROM transactions
		WHERE user_id = ? AND asset = ? AND status = 'confirmed'`

	// Subledger transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM transactions WHERE external_transaction_id = ? LIMIT 1`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, user_id, asset, balance, version)
		VALUES (?, ?, ?, ?, ?)`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, asset, transaction_type, amount, balance_before, balance_after,
			external_transaction_id, address, reference, status, created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, user_id, asset, transaction_type, amount, balance_before, balance_after,
		          external_transaction_id, address, reference, status, created_at, processed_at`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND asset = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, user_id, asset, transaction_type, amount, balance_before, balance_after,
		       external_transaction_id, address, reference, status, created_at, processed_at
		FROM transactions
		WHERE user_id = ? AND asset = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	// Payment attempt queries
	queryUpsertPayment = `
		INSERT INTO payments (
			id, payer_id, payer_address, asset, fiat_amount, total_usd, total_asset_amount,
			recipient_address, transaction_hash, status, failure_reason, dispatch_path, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			transaction_hash = excluded.transaction_hash,
			status = excluded.status,
			failure_reason = excluded.failure_reason,
			dispatch_path = excluded.dispatch_path,
			updated_at = excluded.updated_at`

	querySelectPaymentColumns = `
		SELECT id, payer_id, payer_address, asset, fiat_amount, total_usd, total_asset_amount, recipient_address,
		       transaction_hash, status, failure_reason, dispatch_path, created_at, updated_at
		FROM payments`

	queryGetPayment = querySelectPaymentColumns + `
		WHERE id = ?`

	queryListPayments = querySelectPaymentColumns + `
		WHERE (? = '' OR payer_id = ?)
		ORDER BY created_at DESC
		LIMIT ?`

	// Rate snapshot queries
	queryInsertRateSnapshot = `
		INSERT INTO rate_snapshots (id, asset, spot_rate, network_fee_usd, source, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryLatestRateSnapshots = `
		SELECT r.asset, r.spot_rate, r.network_fee_usd, r.source, r.taken_at
		FROM rate_snapshots r
		JOIN (
			SELECT asset, MAX(taken_at) AS taken_at FROM rate_snapshots GROUP BY asset
		) latest ON latest.asset = r.asset AND latest.taken_at = r.taken_at
		ORDER BY r.asset`
)
