package database

import (
	"context"
	"database/sql"
	"fmt"

	"token-checkout-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaveRateSnapshots stores one row per asset in a single transaction.
func (s *Service) SaveRateSnapshots(ctx context.Context, snapshots []models.RateSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, snap := range snapshots {
		_, err := tx.ExecContext(ctx, queryInsertRateSnapshot,
			uuid.New().String(), snap.Asset.String(), snap.SpotRate.String(),
			snap.NetworkFeeUSD.String(), snap.Source, snap.TakenAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert rate snapshot for %s: %w", snap.Asset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rate snapshots: %w", err)
	}

	zap.L().Debug("Rate snapshots saved", zap.Int("count", len(snapshots)))
	return nil
}

// LatestRateSnapshots returns the newest snapshot of every asset.
func (s *Service) LatestRateSnapshots(ctx context.Context) ([]models.RateSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, queryLatestRateSnapshots)
	if err != nil {
		return nil, fmt.Errorf("unable to query rate snapshots: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var snapshots []models.RateSnapshot
	for rows.Next() {
		var snap models.RateSnapshot
		var asset, rateStr, feeStr string
		if err := rows.Scan(&asset, &rateStr, &feeStr, &snap.Source, &snap.TakenAt); err != nil {
			return nil, fmt.Errorf("unable to scan rate snapshot: %w", err)
		}
		snap.Asset = models.Asset(asset)
		if snap.SpotRate, err = decimal.NewFromString(rateStr); err != nil {
			return nil, fmt.Errorf("invalid spot rate %q: %w", rateStr, err)
		}
		if snap.NetworkFeeUSD, err = decimal.NewFromString(feeStr); err != nil {
			return nil, fmt.Errorf("invalid network fee %q: %w", feeStr, err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rate snapshot rows: %w", err)
	}

	return snapshots, nil
}
