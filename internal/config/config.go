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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
)

const checkoutVersion = "v12"

func Load() (*models.Config, error) {
	pollingInterval, err := getEnvDuration("PRICE_POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pollTimeout, err := getEnvDuration("PRICE_POLL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	receiptPollInterval, err := getEnvDuration("RECEIPT_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}

	confirmationTimeout, err := getEnvDuration("CONFIRMATION_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("PRICING_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	feePercent, err := getEnvDecimal("PROCESSING_FEE_PERCENT", decimal.Zero)
	if err != nil {
		return nil, err
	}

	feeFlat, err := getEnvDecimal("PROCESSING_FEE_FLAT_USD", decimal.Zero)
	if err != nil {
		return nil, err
	}

	if pollingInterval <= 0 || receiptPollInterval <= 0 {
		return nil, fmt.Errorf("polling intervals must be positive")
	}
	if feePercent.IsNegative() || feeFlat.IsNegative() {
		return nil, fmt.Errorf("processing fee cannot be negative")
	}

	return &models.Config{
		AppEnv: getEnvString("APP_ENV", "production"),
		Database: models.DatabaseConfig{
			Path:             getEnvString("DATABASE_PATH", "checkout.db"),
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  connMaxLifetime,
			ConnMaxIdleTime:  connMaxIdleTime,
			PingTimeout:      pingTimeout,
			CreateDemoPayers: getEnvBool("CREATE_DEMO_PAYERS", false),
		},
		Checkout: models.CheckoutConfig{
			Version:              getEnvString("CHECKOUT_VERSION", checkoutVersion),
			AssetsFile:           getEnvString("ASSETS_FILE", "assets.yaml"),
			PollingInterval:      pollingInterval,
			PollTimeout:          pollTimeout,
			ReceiptPollInterval:  receiptPollInterval,
			ConfirmationTimeout:  confirmationTimeout,
			MinConfirmations:     getEnvInt("MIN_CONFIRMATIONS", 1),
			ProcessingFeePercent: feePercent,
			ProcessingFeeFlatUSD: feeFlat,
			Features: models.Features{
				DemoComparator:    getEnvBool("FEATURE_DEMO_COMPARATOR", false),
				QRCode:            getEnvBool("FEATURE_QR_CODE", true),
				DebugWalletPanel:  getEnvBool("FEATURE_DEBUG_WALLET_PANEL", false),
				CustodialPayments: getEnvBool("FEATURE_CUSTODIAL_PAYMENTS", false),
				SettlementJournal: getEnvBool("FEATURE_SETTLEMENT_JOURNAL", false),
			},
		},
		Pricing: models.PricingConfig{
			Source:               getEnvString("PRICE_SOURCE", "coinmarketcap"),
			CoinMarketCapAPIKey:  os.Getenv("COINMARKETCAP_API_KEY"),
			CoinMarketCapBaseURL: getEnvString("COINMARKETCAP_BASE_URL", "https://pro-api.coinmarketcap.com"),
			MoonPayAPIKey:        os.Getenv("MOONPAY_API_KEY"),
			MoonPayBaseURL:       getEnvString("MOONPAY_BASE_URL", "https://api.moonpay.com"),
			MoonPayWidgetURL:     getEnvString("MOONPAY_WIDGET_URL", "https://buy.moonpay.com"),
			BitcoinFeeURL:        getEnvString("BITCOIN_FEE_URL", "https://mempool.space/api/v1/fees/recommended"),
			RequestsPerSecond:    getEnvInt("PRICING_REQUESTS_PER_SECOND", 2),
			Burst:                getEnvInt("PRICING_BURST", 4),
			MaxRetries:           getEnvInt("PRICING_MAX_RETRIES", 3),
			RequestTimeout:       requestTimeout,
		},
		Chain: models.ChainConfig{
			RPCURL:         os.Getenv("EVM_RPC_URL"),
			PrivateKey:     os.Getenv("WALLET_PRIVATE_KEY"),
			GasLimitNative: uint64(getEnvInt("GAS_LIMIT_NATIVE", 21000)),
			GasLimitToken:  uint64(getEnvInt("GAS_LIMIT_TOKEN", 65000)),
		},
		Prime: models.PrimeConfig{
			PortfolioId:   os.Getenv("PRIME_PORTFOLIO_ID"),
			PortfolioName: getEnvString("PRIME_PORTFOLIO_NAME", "Default Portfolio"),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "token-checkout"),
		},
		Metrics: models.MetricsConfig{
			Enabled:    getEnvBool("METRICS_ENABLED", false),
			Namespace:  getEnvString("METRICS_NAMESPACE", "checkout"),
			ListenAddr: os.Getenv("METRICS_ADDR"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
