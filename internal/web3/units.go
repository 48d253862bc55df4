package web3

import (
	"fmt"
	"math/big"
	"strings"
)

// EtherDecimals is the number of decimals of native EVM currencies.
const EtherDecimals = 18

// ParseUnits converts a decimal string such as "0.001" into its integer
// representation with the given number of decimals.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("金额不能为空")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("金额不能为负数: %s", amount)
	}
	amount = strings.TrimPrefix(amount, "+")

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		if strings.Trim(frac[decimals:], "0") != "" {
			return nil, fmt.Errorf("金额 %s 的小数位超过 %d 位", amount, decimals)
		}
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	digits := whole + frac
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("金额格式无效: %s", amount)
		}
	}

	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("金额格式无效: %s", amount)
	}
	return value, nil
}

// FormatUnits renders an integer amount as a decimal string, trimming
// trailing zeros of the fractional part.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(value)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	digits := abs.String()
	if decimals == 0 {
		return sign + digits
	}
	if len(digits) <= int(decimals) {
		digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
	}
	cut := len(digits) - int(decimals)
	whole, frac := digits[:cut], strings.TrimRight(digits[cut:], "0")
	if frac == "" {
		return sign + whole
	}
	return sign + whole + "." + frac
}
