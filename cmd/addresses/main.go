package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"token-checkout-go/internal/common"
	"token-checkout-go/internal/config"
	"token-checkout-go/internal/dispatch"
	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

type reportStats struct {
	totalAssets   int
	validAddress  int
	qrCodesWritten int
}

func writeQRCode(dir string, asset models.Asset, uri string) (string, error) {
	path := filepath.Join(dir, strings.ToLower(asset.String())+".png")
	if err := qrcode.WriteFile(uri, qrcode.Medium, 256, path); err != nil {
		return "", fmt.Errorf("failed to write QR code: %w", err)
	}
	return path, nil
}

func main() {
	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	qrDir := flag.String("qr", "", "Write a PNG payment QR code per asset into this directory (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	catalog, err := common.LoadAssetCatalog(cfg.Checkout.AssetsFile, cfg.AppEnv)
	if err != nil {
		logger.Fatal("Failed to load asset catalogue", zap.Error(err))
	}

	if *qrDir != "" {
		if err := os.MkdirAll(*qrDir, 0o755); err != nil {
			logger.Fatal("Failed to create QR directory", zap.Error(err))
		}
	}

	common.PrintHeader("MERCHANT RECIPIENT ADDRESSES", common.DefaultWidth)

	stats := reportStats{}
	for _, asset := range catalog.Assets() {
		info, _ := catalog.Get(asset)
		stats.totalAssets++

		fmt.Printf("\n┌─ %s on %s (%s)\n", asset, info.Network, info.Dispatch)
		common.PrintField("Recipient", info.Recipient)
		if info.Contract != "" {
			common.PrintField("Token contract", info.Contract)
		}

		if err := dispatch.ValidateRecipient(info.Network, info.Recipient); err != nil {
			common.PrintField("Status", "INVALID: "+err.Error())
			logger.Error("Recipient address rejected",
				zap.String("asset", asset.String()),
				zap.Error(err))
			continue
		}
		stats.validAddress++
		common.PrintField("Status", "valid")

		uri := dispatch.PaymentURI(info.Network, info.Recipient, decimal.Zero)
		common.PrintField("Payment URI", uri)

		if *qrDir != "" {
			path, err := writeQRCode(*qrDir, asset, uri)
			if err != nil {
				logger.Error("QR code not written", zap.String("asset", asset.String()), zap.Error(err))
				continue
			}
			stats.qrCodesWritten++
			common.PrintField("QR code", path)
		}
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d of %d recipient addresses valid, %d QR codes written",
		stats.validAddress, stats.totalAssets, stats.qrCodesWritten), common.DefaultWidth)

	if stats.validAddress != stats.totalAssets {
		os.Exit(1)
	}
}
