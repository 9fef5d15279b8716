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
	"token-checkout-go/internal/models"

	"go.uber.org/zap"
)

// checkCustodyWallets confirms a Prime trading wallet exists for every
// automated catalogue asset; custodial payments of a missing asset fall back
// to manual instructions.
func checkCustodyWallets(ctx context.Context, services *common.Services) (found, missing []string) {
	for _, asset := range services.Catalog.Assets() {
		info, _ := services.Catalog.Get(asset)
		if info.Dispatch == models.DispatchManual {
			continue
		}

		wallet, err := services.PrimeService.FindTradingWallet(ctx, services.Portfolio.Id, asset.String())
		if err != nil {
			zap.L().Warn("No trading wallet for asset",
				zap.String("asset", asset.String()),
				zap.Error(err))
			missing = append(missing, asset.String())
			continue
		}

		zap.L().Info("Trading wallet found",
			zap.String("asset", asset.String()),
			zap.String("wallet_id", wallet.Id))
		found = append(found, asset.String())
	}
	return found, missing
}

func printPayers(ctx context.Context, services *common.Services) {
	payers, err := common.LoadPayers(ctx, services.DbService, "")
	if err != nil {
		zap.L().Fatal("Failed to read payers from database", zap.Error(err))
	}
	fmt.Printf("Payers: %d\n", len(payers))
	for i, p := range payers {
		fmt.Printf("%s %-24s %s\n", common.BoxPrefix(i == len(payers)-1), p.Name, p.Email)
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	demoFlag := flag.Bool("demo", false, "Create demo payers")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	if *demoFlag {
		cfg.Database.CreateDemoPayers = true
	}

	// Opening the services creates the schema, the journal ledger and
	// resolves the Prime portfolio.
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	common.PrintHeader("CHECKOUT SETUP", common.DefaultWidth)
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Printf("Assets:   %d\n", len(services.Catalog))
	for _, asset := range services.Catalog.Assets() {
		info, _ := services.Catalog.Get(asset)
		fmt.Printf("│  %-5s %-18s %-7s → %s\n", asset, info.Network, info.Dispatch, info.Recipient)
	}
	printPayers(ctx, services)

	if services.PrimeService != nil {
		found, missing := checkCustodyWallets(ctx, services)
		fmt.Printf("Custody:  portfolio %s, %d wallets found, %d missing %v\n",
			services.Portfolio.Name, len(found), len(missing), missing)
	}
	if services.Journal != nil {
		fmt.Println("Journal:  settlement ledger ready")
	}
	common.PrintSeparator("=", common.DefaultWidth)

	zap.L().Info("Setup complete")
}
