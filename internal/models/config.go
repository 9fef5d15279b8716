package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	AppEnv   string
	Database DatabaseConfig
	Checkout CheckoutConfig
	Pricing  PricingConfig
	Chain    ChainConfig
	Prime    PrimeConfig
	Formance FormanceConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path             string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	CreateDemoPayers bool
}

// Features enumerates the optional parts of the checkout component.
type Features struct {
	DemoComparator    bool
	QRCode            bool
	DebugWalletPanel  bool
	CustodialPayments bool
	SettlementJournal bool
}

// CheckoutConfig holds quote and dispatch settings
type CheckoutConfig struct {
	Version              string
	AssetsFile           string
	PollingInterval      time.Duration
	PollTimeout          time.Duration
	ReceiptPollInterval  time.Duration
	ConfirmationTimeout  time.Duration
	MinConfirmations     int
	ProcessingFeePercent decimal.Decimal
	ProcessingFeeFlatUSD decimal.Decimal
	Features             Features
}

// PricingConfig holds price and fee feed settings
type PricingConfig struct {
	Source               string // "coinmarketcap" or "static"
	CoinMarketCapAPIKey  string
	CoinMarketCapBaseURL string
	MoonPayAPIKey        string
	MoonPayBaseURL       string
	MoonPayWidgetURL     string
	BitcoinFeeURL        string
	RequestsPerSecond    int
	Burst                int
	MaxRetries           int
	RequestTimeout       time.Duration
}

// ChainConfig holds EVM connectivity for the self-custody wallet
type ChainConfig struct {
	RPCURL         string
	PrivateKey     string
	GasLimitNative uint64
	GasLimitToken  uint64
}

// PrimeConfig holds custodial settings; credentials are read separately
type PrimeConfig struct {
	PortfolioId   string
	PortfolioName string
}

// FormanceConfig holds settlement journal connectivity
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// MetricsConfig holds prometheus settings
type MetricsConfig struct {
	Enabled    bool
	Namespace  string
	ListenAddr string // serve /metrics when set
}
