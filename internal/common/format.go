package common

import (
	"fmt"
	"strings"

	"token-checkout-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a line of char repeated width times.
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator for sub-sections.
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the box-drawing prefix for a list item.
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// PrintField prints an aligned "label: value" line inside a box.
func PrintField(label string, value any) {
	fmt.Printf("│  %-22s %v\n", label+":", value)
}

// FormatUSD renders a dollar amount with two decimals.
func FormatUSD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// FormatAssetAmount renders an asset amount with up to 8 decimals and no
// trailing zeros.
func FormatAssetAmount(d decimal.Decimal, asset models.Asset) string {
	return d.Round(8).String() + " " + asset.String()
}
