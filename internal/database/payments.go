package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"token-checkout-go/internal/models"
	"token-checkout-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SavePayment inserts or updates the audit row for a payment attempt.
func (s *Service) SavePayment(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt == nil || attempt.Id == "" {
		return fmt.Errorf("payment attempt requires an id")
	}

	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := attempt.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.db.ExecContext(ctx, queryUpsertPayment,
		attempt.Id, attempt.PayerId, attempt.PayerAddress, attempt.Asset.String(),
		attempt.FiatAmount.String(), attempt.TotalUSD.String(), attempt.TotalAssetAmount.String(),
		attempt.RecipientAddress, attempt.TransactionHash, string(attempt.Status),
		attempt.FailureReason, string(attempt.Path), createdAt.UTC(), updatedAt.UTC())
	if err != nil {
		zap.L().Error("Failed to save payment attempt",
			zap.String("payment_id", attempt.Id),
			zap.String("status", string(attempt.Status)),
			zap.Error(err))
		return fmt.Errorf("unable to save payment attempt: %w", err)
	}

	zap.L().Debug("Payment attempt saved",
		zap.String("payment_id", attempt.Id),
		zap.String("status", string(attempt.Status)))
	return nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*models.PaymentAttempt, error) {
	row := s.db.QueryRowContext(ctx, queryGetPayment, id)
	attempt, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrAttemptNotFound, id)
		}
		return nil, fmt.Errorf("unable to load payment attempt: %w", err)
	}
	return attempt, nil
}

// ListPayments returns the most recent attempts, optionally for one payer.
func (s *Service) ListPayments(ctx context.Context, payerId string, limit int) ([]models.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, queryListPayments, payerId, payerId, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to list payments: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var attempts []models.PaymentAttempt
	for rows.Next() {
		attempt, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan payment row: %w", err)
		}
		attempts = append(attempts, *attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}

	return attempts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*models.PaymentAttempt, error) {
	var (
		attempt                          models.PaymentAttempt
		asset, status, path              string
		fiatStr, totalUsdStr, totalAsset string
	)

	err := row.Scan(&attempt.Id, &attempt.PayerId, &attempt.PayerAddress, &asset, &fiatStr, &totalUsdStr, &totalAsset,
		&attempt.RecipientAddress, &attempt.TransactionHash, &status, &attempt.FailureReason,
		&path, &attempt.CreatedAt, &attempt.UpdatedAt)
	if err != nil {
		return nil, err
	}

	attempt.Asset = models.Asset(asset)
	attempt.Status = models.PaymentStatus(status)
	attempt.Path = models.DispatchPath(path)

	if attempt.FiatAmount, err = decimal.NewFromString(fiatStr); err != nil {
		return nil, fmt.Errorf("invalid fiat amount %q: %w", fiatStr, err)
	}
	if attempt.TotalUSD, err = decimal.NewFromString(totalUsdStr); err != nil {
		return nil, fmt.Errorf("invalid total usd %q: %w", totalUsdStr, err)
	}
	if attempt.TotalAssetAmount, err = decimal.NewFromString(totalAsset); err != nil {
		return nil, fmt.Errorf("invalid total asset amount %q: %w", totalAsset, err)
	}

	return &attempt, nil
}
