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
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-checkout-go/internal/checkout"
	"token-checkout-go/internal/common"
	"token-checkout-go/internal/config"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/quote"

	"go.uber.org/zap"
)

func printUpdate(p models.PaymentAttempt) {
	fmt.Printf("%s  %-28s", p.UpdatedAt.Format("15:04:05"), p.Status)
	if p.TransactionHash != "" {
		fmt.Printf(" tx: %s", p.TransactionHash)
	}
	if p.FailureReason != "" {
		fmt.Printf(" reason: %s", p.FailureReason)
	}
	fmt.Println()
}

func printInstructions(m *models.ManualInstructions) {
	common.PrintHeader("SEND MANUALLY", common.DefaultWidth)
	common.PrintField("Network", m.Network)
	common.PrintField("Address", m.Address)
	common.PrintField("Amount", common.FormatAssetAmount(m.Amount, m.Asset))
	common.PrintField("Payment URI", m.PaymentURI)
	if m.QRCode != "" {
		common.PrintField("QR code", fmt.Sprintf("PNG data URL, %d bytes", len(m.QRCode)))
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func main() {
	amountFlag := flag.String("amount", "", "USD amount to pay (required)")
	assetFlag := flag.String("asset", "ETH", "Settlement asset")
	emailFlag := flag.String("email", "", "Custodial payer email, used when no keystore wallet is configured")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	asset, ok := models.ParseAsset(*assetFlag)
	if !ok {
		zap.L().Fatal("Unsupported asset", zap.String("asset", *assetFlag))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	recorder, metricsCleanup := common.InitializeMetrics(cfg.Metrics)
	defer metricsCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	built, err := checkout.Build(ctx, cfg, services, checkout.BuildOptions{PayerEmail: *emailFlag, Recorder: recorder})
	if err != nil {
		zap.L().Fatal("Failed to build checkout", zap.Error(err))
	}
	defer built.Close()

	if err := built.Refresh(ctx); err != nil {
		zap.L().Warn("Some feeds failed, quoting with fallback values", zap.Error(err))
	}
	if err := built.SelectAsset(asset); err != nil {
		zap.L().Fatal("Asset not offered", zap.Error(err))
	}
	built.SetFiatAmount(*amountFlag)

	session, err := built.ConnectWallet(ctx)
	if err != nil {
		zap.L().Fatal("Failed to connect wallet", zap.Error(err))
	}
	zap.L().Info("Paying",
		zap.String("wallet", session.Adapter),
		zap.String("from", session.Address),
		zap.String("asset", asset.String()),
		zap.String("amount_usd", *amountFlag))

	payment, err := built.Pay(ctx)
	if err != nil {
		var vErr *quote.ValidationError
		if errors.As(err, &vErr) {
			zap.L().Fatal("Payment not sent", zap.String("code", vErr.Code), zap.String("reason", vErr.Message))
		}
		zap.L().Fatal("Payment failed", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zap.L().Warn("Interrupted, stopping confirmation watch; the transfer may still settle")
		built.Close()
	}()

	for update := range payment.Updates() {
		printUpdate(update)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	final, _ := payment.Wait(waitCtx)

	switch final.Status {
	case models.StatusManualPaymentRequired:
		printInstructions(final.Manual)
	case models.StatusConfirmed:
		fmt.Printf("Paid %s (%s) in tx %s\n",
			common.FormatAssetAmount(final.TotalAssetAmount, final.Asset),
			common.FormatUSD(final.TotalUSD),
			final.TransactionHash)
	case models.StatusFailed:
		zap.L().Error("Payment failed", zap.String("reason", final.FailureReason))
		os.Exit(1)
	default:
		fmt.Printf("Payment %s is %s; check later with the balances tool\n", final.Id, final.Status)
	}
}
