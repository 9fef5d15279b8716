package common

import (
	"fmt"
	"os"
	"path/filepath"

	"token-checkout-go/internal/dispatch"
	"token-checkout-go/internal/models"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("network", func(fl validator.FieldLevel) bool {
		return models.Network(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("unable to register network validator: %v", err))
	}
}

// AssetConfig is one entry of assets.yaml.
type AssetConfig struct {
	Symbol       string `yaml:"symbol" validate:"required,oneof=ETH BTC SOL USDC USDT"`
	Network      string `yaml:"network" validate:"required,network"`
	Decimals     int32  `yaml:"decimals" validate:"gte=0,lte=18"`
	Dispatch     string `yaml:"dispatch" validate:"required,oneof=native token manual"`
	Contract     string `yaml:"contract" validate:"required_if=Dispatch token"`
	Recipient    string `yaml:"recipient" validate:"required"`
	FallbackRate string `yaml:"fallback_rate" validate:"omitempty,numeric"`
	FallbackFee  string `yaml:"fallback_fee" validate:"omitempty,numeric"`
}

type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets" validate:"required,min=1,dive"`
}

func LoadAssetConfig(assetsFile string) ([]AssetConfig, error) {
	var assetsPath string
	if filepath.IsAbs(assetsFile) {
		assetsPath = assetsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		assetsPath = filepath.Join(wd, assetsFile)
	}

	data, err := os.ReadFile(assetsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	return ParseAssetConfig(data)
}

func ParseAssetConfig(data []byte) ([]AssetConfig, error) {
	var config AssetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse assets file: %w", err)
	}

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid assets file: %w", err)
	}

	return config.Assets, nil
}

// LoadAssetCatalog reads assets.yaml and builds the catalogue for the given
// environment. Networks not allowed in appEnv are rejected.
func LoadAssetCatalog(assetsFile, appEnv string) (models.AssetCatalog, error) {
	assets, err := LoadAssetConfig(assetsFile)
	if err != nil {
		return nil, err
	}
	return BuildAssetCatalog(assets, appEnv)
}

func BuildAssetCatalog(assets []AssetConfig, appEnv string) (models.AssetCatalog, error) {
	catalog := make(models.AssetCatalog, len(assets))
	for i, a := range assets {
		symbol := models.Asset(a.Symbol)
		if _, dup := catalog[symbol]; dup {
			return nil, fmt.Errorf("asset %s configured twice", symbol)
		}

		network := models.Network(a.Network)
		if !network.Allowed(appEnv) {
			return nil, fmt.Errorf("asset at index %d: network %s not allowed in %s", i, network, appEnv)
		}
		if a.Dispatch != string(models.DispatchManual) && !network.IsEVM() {
			return nil, fmt.Errorf("asset %s: %s dispatch needs an EVM network, got %s", symbol, a.Dispatch, network)
		}
		if network.IsEVM() && !gethcommon.IsHexAddress(a.Recipient) {
			return nil, fmt.Errorf("asset %s: recipient %q is not an EVM address", symbol, a.Recipient)
		}
		if err := dispatch.ValidateRecipient(network, a.Recipient); err != nil {
			return nil, fmt.Errorf("asset %s: recipient %q is not a valid %s address", symbol, a.Recipient, network)
		}
		if a.Dispatch == string(models.DispatchToken) && !gethcommon.IsHexAddress(a.Contract) {
			return nil, fmt.Errorf("asset %s: contract %q is not an EVM address", symbol, a.Contract)
		}

		info := models.AssetInfo{
			Symbol:       symbol,
			Network:      network,
			Decimals:     a.Decimals,
			Contract:     a.Contract,
			Recipient:    a.Recipient,
			Dispatch:     models.DispatchKind(a.Dispatch),
			FallbackRate: models.DefaultFallbackRates[symbol],
			FallbackFee:  models.DefaultFallbackFees[symbol],
		}
		if a.FallbackRate != "" {
			info.FallbackRate = decimal.RequireFromString(a.FallbackRate)
		}
		if a.FallbackFee != "" {
			info.FallbackFee = decimal.RequireFromString(a.FallbackFee)
		}

		catalog[symbol] = info
	}

	return catalog, nil
}
