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
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-checkout-go/internal/checkout"
	"token-checkout-go/internal/common"
	"token-checkout-go/internal/config"

	"go.uber.org/zap"
)

func printSnapshot(c *checkout.Component) {
	rates := c.Book().SpotRates()
	fees := c.Book().NetworkFees()

	fmt.Printf("\n┌─ Rates at %s\n", c.LastUpdated().Format(time.RFC3339))
	assets := c.Catalog().Assets()
	for i, asset := range assets {
		fmt.Printf("%s %-5s %14s   fee %8s\n",
			common.BoxPrefix(i == len(assets)-1),
			asset,
			common.FormatUSD(rates[asset]),
			common.FormatUSD(fees[asset]))
	}
}

func main() {
	printEvery := flag.Duration("print", 30*time.Second, "How often to print the rate table")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	recorder, metricsCleanup := common.InitializeMetrics(cfg.Metrics)
	defer metricsCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	built, err := checkout.Build(ctx, cfg, services, checkout.BuildOptions{Recorder: recorder})
	if err != nil {
		zap.L().Fatal("Failed to build checkout", zap.Error(err))
	}

	if err := built.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start pollers", zap.Error(err))
	}
	zap.L().Info("Rate watch running, press Ctrl+C to stop",
		zap.String("version", built.Version()),
		zap.Duration("poll_interval", cfg.Checkout.PollingInterval))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*printEvery)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			printSnapshot(built.Component)
		case <-sigChan:
			break loop
		}
	}

	zap.L().Info("Shutdown signal received, stopping pollers")

	done := make(chan struct{})
	go func() {
		built.Close()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Pollers stopped gracefully")
	case <-time.After(30 * time.Second):
		zap.L().Warn("Forced shutdown after timeout")
	}
}
