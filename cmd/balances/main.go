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
package main

import (
	"context"
	"flag"
	"fmt"

	"token-checkout-go/internal/common"
	"token-checkout-go/internal/config"
	"token-checkout-go/internal/database"
	"token-checkout-go/internal/formance"
	"token-checkout-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalPayers        int
	totalBalances      int
	payersWithBalances int
	totalPayments      int
}

func shortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}

func printBalance(balance models.AccountBalance, isLast bool) {
	fmt.Printf("%s %-6s: %24s (v%d, last_tx: %s, updated: %s)\n",
		common.BoxPrefix(isLast),
		balance.Asset,
		balance.Balance.String(),
		balance.Version,
		shortId(balance.LastTransactionId),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printPayment(p models.PaymentAttempt, isLast bool) {
	line := fmt.Sprintf("%s %s %-26s %s (%s) tx: %s",
		common.BoxPrefix(isLast),
		p.CreatedAt.Format("2006-01-02 15:04"),
		p.Status,
		common.FormatAssetAmount(p.TotalAssetAmount, p.Asset),
		common.FormatUSD(p.TotalUSD),
		shortId(p.TransactionHash))
	if p.FailureReason != "" {
		line += " reason: " + p.FailureReason
	}
	fmt.Println(line)
}

func processPayer(ctx context.Context, payer common.PayerInfo, dbService *database.Service, paymentLimit int) (int, int, error) {
	balances, err := dbService.GetAllUserBalances(ctx, payer.Id)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get balances: %w", err)
	}

	payments, err := dbService.ListPayments(ctx, payer.Id, paymentLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list payments: %w", err)
	}

	if len(balances) == 0 && len(payments) == 0 {
		return 0, 0, nil
	}

	fmt.Printf("\n┌─ Payer: %s (%s)\n", payer.Name, payer.Email)
	fmt.Printf("│  ID: %s\n", payer.Id)
	common.PrintBoxSeparator(78)
	for i, balance := range balances {
		printBalance(balance, i == len(balances)-1 && len(payments) == 0)
	}

	if len(payments) > 0 {
		fmt.Printf("│  Recent payments: %d\n", len(payments))
		for i, p := range payments {
			printPayment(p, i == len(payments)-1)
		}
	}

	return len(balances), len(payments), nil
}

// printMerchantSettlements reports what the journal holds for the merchant
// in each catalogue asset, with the newest settlements.
func printMerchantSettlements(ctx context.Context, journal *formance.Journal, assets []models.Asset, limit int64) (int, error) {
	fmt.Printf("\n┌─ Merchant settlements\n")
	common.PrintBoxSeparator(78)

	listed := 0
	for i, asset := range assets {
		balance, err := journal.MerchantBalance(ctx, asset)
		if err != nil {
			return listed, fmt.Errorf("failed to read %s merchant balance: %w", asset, err)
		}
		settlements, err := journal.RecentSettlements(ctx, asset, limit)
		if err != nil {
			return listed, fmt.Errorf("failed to list %s settlements: %w", asset, err)
		}

		fmt.Printf("%s %-6s: %24s (%d recent)\n",
			common.BoxPrefix(i == len(assets)-1), asset, balance.String(), len(settlements))
		for _, st := range settlements {
			fmt.Printf("│     %s %s (%s) payment: %s tx: %s\n",
				st.Timestamp.Format("2006-01-02 15:04"),
				common.FormatAssetAmount(st.Amount, st.Asset),
				common.FormatUSD(st.TotalUSD),
				shortId(st.PaymentId),
				shortId(st.TransactionHash))
		}
		listed += len(settlements)
	}
	return listed, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by payer email (optional)")
	limitFlag := flag.Int("payments", 5, "Recent payments to show per payer")
	merchantFlag := flag.Bool("merchant", true, "Include merchant settlements from the journal when enabled")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only: no custody connection needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	payers, err := common.LoadPayers(ctx, dbService, *emailFlag)
	if err != nil {
		logger.Fatal("Failed to load payers", zap.Error(err))
	}

	common.PrintHeader("PAYER BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, payer := range payers {
		stats.totalPayers++

		balanceCount, paymentCount, err := processPayer(ctx, payer, dbService, *limitFlag)
		if err != nil {
			logger.Error("Failed to process payer",
				zap.String("payer_id", payer.Id),
				zap.String("email", payer.Email),
				zap.Error(err))
			continue
		}
		if balanceCount > 0 {
			stats.payersWithBalances++
			stats.totalBalances += balanceCount
		}
		stats.totalPayments += paymentCount
	}

	settlementCount := 0
	if *merchantFlag && cfg.Checkout.Features.SettlementJournal {
		catalog, err := common.LoadAssetCatalog(cfg.Checkout.AssetsFile, cfg.AppEnv)
		if err != nil {
			logger.Fatal("Failed to load asset catalogue", zap.Error(err))
		}
		journal, err := formance.NewJournal(ctx, cfg.Formance)
		if err != nil {
			logger.Fatal("Failed to connect to settlement journal", zap.Error(err))
		}
		settlementCount, err = printMerchantSettlements(ctx, journal, catalog.Assets(), int64(*limitFlag))
		if err != nil {
			logger.Error("Failed to report merchant settlements", zap.Error(err))
		}
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d payers with balances (%d balances, %d recent payments across %d payers)",
		stats.payersWithBalances, stats.totalBalances, stats.totalPayments, stats.totalPayers), common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("payers_queried", stats.totalPayers),
		zap.Int("payers_with_balances", stats.payersWithBalances),
		zap.Int("payments_listed", stats.totalPayments),
		zap.Int("settlements_listed", settlementCount))
}
