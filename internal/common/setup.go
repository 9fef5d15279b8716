package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"token-checkout-go/internal/database"
	"token-checkout-go/internal/formance"
	"token-checkout-go/internal/metrics"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/prime"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Catalog   models.AssetCatalog

	// Set only when custodial payments are enabled.
	PrimeService *prime.Service
	Portfolio    *models.Portfolio

	// Set only when the settlement journal is enabled.
	Journal *formance.Journal
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeMetrics returns the recorder the config asks for. When a listen
// address is set, /metrics is served until the returned cleanup runs.
func InitializeMetrics(cfg models.MetricsConfig) (metrics.Recorder, func()) {
	if !cfg.Enabled {
		return metrics.NoopRecorder{}, func() {}
	}

	recorder := metrics.NewPrometheusRecorder(cfg.Namespace)
	if cfg.ListenAddr == "" {
		return recorder, func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		zap.L().Info("Serving metrics", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Metrics server stopped", zap.Error(err))
		}
	}()

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zap.L().Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
	return recorder, cleanup
}

// InitializeServices opens the store, loads the asset catalogue and connects
// the optional custody and journal backends the feature flags ask for.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	catalog, err := LoadAssetCatalog(cfg.Checkout.AssetsFile, cfg.AppEnv)
	if err != nil {
		return nil, fmt.Errorf("unable to load asset catalogue: %w", err)
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{DbService: dbService, Catalog: catalog}

	if cfg.Checkout.Features.CustodialPayments {
		zap.L().Info("Loading Prime API credentials")
		creds, err := loadPrimeCredentials()
		if err != nil {
			services.Close()
			return nil, err
		}

		primeService, err := prime.NewService(creds)
		if err != nil {
			services.Close()
			return nil, err
		}

		portfolio, err := primeService.FindPortfolio(ctx, cfg.Prime.PortfolioId, cfg.Prime.PortfolioName)
		if err != nil {
			services.Close()
			return nil, err
		}
		zap.L().Info("Using portfolio",
			zap.String("name", portfolio.Name),
			zap.String("id", portfolio.Id))

		services.PrimeService = primeService
		services.Portfolio = portfolio
	}

	if cfg.Checkout.Features.SettlementJournal {
		journal, err := formance.NewJournal(ctx, cfg.Formance)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.Journal = journal
	}

	return services, nil
}

// InitializeDatabaseOnly opens just the store, for tools that never touch
// custody or the journal.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database)
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func loadPrimeCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
