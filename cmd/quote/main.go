package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"token-checkout-go/internal/checkout"
	"token-checkout-go/internal/common"
	"token-checkout-go/internal/config"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/quote"

	"go.uber.org/zap"
)

func printQuote(q models.Quote, session *models.WalletSession) {
	common.PrintHeader(fmt.Sprintf("QUOTE: %s in %s", common.FormatUSD(q.FiatAmount), q.Asset), common.DefaultWidth)
	common.PrintField("Spot rate", common.FormatUSD(q.SpotRate))
	common.PrintField("Amount", common.FormatAssetAmount(q.AssetAmount, q.Asset))
	common.PrintField("Network fee", common.FormatUSD(q.NetworkFeeUSD))
	common.PrintField("Processing fee", common.FormatUSD(q.ProcessingFeeUSD))
	common.PrintField("Total", common.FormatUSD(q.TotalUSD))
	common.PrintField("Total to send", common.FormatAssetAmount(q.TotalAssetAmount, q.Asset))

	if session == nil {
		common.PrintField("Balance", "no wallet connected")
		return
	}
	check := quote.CheckSufficientBalance(q.TotalAssetAmount, q.Asset, session)
	common.PrintField("Balance", check.Reason)
}

func printComparison(cmp *checkout.Comparison) {
	common.PrintBoxSeparator(40)
	common.PrintField("MoonPay total", common.FormatUSD(cmp.OnRamp.TotalAmount))
	common.PrintField("MoonPay fees", common.FormatUSD(cmp.OnRamp.TotalFees()))
	common.PrintField("MoonPay amount", common.FormatAssetAmount(cmp.OnRamp.QuoteCurrencyAmount, cmp.Quote.Asset))
	common.PrintField("You save", common.FormatUSD(cmp.SavedUSD))
}

func main() {
	amountFlag := flag.String("amount", "", "USD amount to price (required)")
	assetFlag := flag.String("asset", "ETH", "Settlement asset")
	emailFlag := flag.String("email", "", "Custodial payer email, used when no keystore wallet is configured")
	connectFlag := flag.Bool("connect", false, "Connect the wallet and check its balance")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	asset, ok := models.ParseAsset(*assetFlag)
	if !ok {
		zap.L().Fatal("Unsupported asset", zap.String("asset", *assetFlag))
	}
	if _, ok := quote.ParseFiatAmount(*amountFlag); !ok {
		zap.L().Fatal("Amount must be a positive number", zap.String("amount", *amountFlag))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	built, err := checkout.Build(ctx, cfg, services, checkout.BuildOptions{PayerEmail: *emailFlag})
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

	if *connectFlag {
		if _, err := built.ConnectWallet(ctx); err != nil {
			zap.L().Fatal("Failed to connect wallet", zap.Error(err))
		}
	}

	printQuote(built.Quote(), built.Session())

	if built.Features().DemoComparator {
		cmp, err := built.Compare(ctx)
		if err != nil {
			zap.L().Warn("MoonPay comparison unavailable", zap.Error(err))
		} else {
			printComparison(cmp)
		}
	}

	if panel, err := built.DebugPanel(); err == nil {
		common.PrintBoxSeparator(40)
		common.PrintField("Wallet", panel.Adapter+" "+panel.Address)
		for _, a := range built.Catalog().Assets() {
			if balance, ok := panel.Balances[a]; ok {
				common.PrintField(a.String(), balance.String())
			}
		}
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
