package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"regexp"
	"strings"

	"token-checkout-go/internal/common"
	"token-checkout-go/internal/config"
	"token-checkout-go/internal/models"
	"token-checkout-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

// parseCredits reads "ETH=0.5,USDC=100" into per-asset opening balances.
func parseCredits(raw string) (map[models.Asset]decimal.Decimal, error) {
	credits := make(map[models.Asset]decimal.Decimal)
	if strings.TrimSpace(raw) == "" {
		return credits, nil
	}
	for _, part := range strings.Split(raw, ",") {
		symbol, amount, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("expected ASSET=AMOUNT, got %q", part)
		}
		asset, ok := models.ParseAsset(symbol)
		if !ok {
			return nil, fmt.Errorf("unsupported asset %q", symbol)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil || !value.IsPositive() {
			return nil, fmt.Errorf("invalid amount for %s: %q", asset, amount)
		}
		credits[asset] = value
	}
	return credits, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "Payer's full name (required)")
	emailFlag := flag.String("email", "", "Payer's email address (required)")
	creditFlag := flag.String("credit", "", "Opening custodial balances, e.g. ETH=0.5,USDC=100")
	flag.Parse()

	if err := validateName(*nameFlag); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}
	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}
	credits, err := parseCredits(*creditFlag)
	if err != nil {
		zap.L().Fatal("Invalid credit", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	payer, err := dbService.CreatePayer(ctx, store.PayerParams{Id: uuid.New().String(), Name: *nameFlag, Email: *emailFlag})
	if err != nil {
		if errors.Is(err, store.ErrPayerExists) {
			zap.L().Fatal("Payer already exists with this email", zap.String("email", *emailFlag))
		}
		zap.L().Fatal("Failed to create payer", zap.Error(err))
	}

	common.PrintHeader("PAYER CREATED", common.DefaultWidth)
	fmt.Printf("ID:    %s\n", payer.Id)
	fmt.Printf("Name:  %s\n", payer.Name)
	fmt.Printf("Email: %s\n", payer.Email)

	var failed []string
	for asset, amount := range credits {
		_, err := dbService.Credit(ctx, store.CreditParams{
			UserId:       payer.Id,
			Asset:        asset,
			Amount:       amount,
			ExternalTxId: "opening-" + uuid.New().String(),
			Reference:    "opening balance",
		})
		if err != nil {
			zap.L().Error("Failed to credit opening balance",
				zap.String("asset", asset.String()),
				zap.Error(err))
			failed = append(failed, asset.String())
			continue
		}
		fmt.Printf("✓ %s credited\n", common.FormatAssetAmount(amount, asset))
	}
	common.PrintSeparator("=", common.DefaultWidth)

	if len(failed) > 0 {
		zap.L().Fatal("Some opening balances were not credited", zap.Strings("assets", failed))
	}
	zap.L().Info("Payer created", zap.String("id", payer.Id), zap.Int("credits", len(credits)))
}
