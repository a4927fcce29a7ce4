// Package token provides fixed-point amount handling for ERC-20 values.
// Raw on-chain values are unscaled big integers; display strings are decimal
// at the token's precision. Conversions round-trip exactly.
package token

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatUnits converts a raw integer value to a decimal display string at
// the given precision. Trailing fractional zeros are trimmed, so
// 1500000000000000000 at 18 decimals formats as "1.5".
func FormatUnits(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	if decimals <= 0 {
		return raw.String()
	}

	value := new(big.Int).Abs(raw)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(value, scale, frac)

	sign := ""
	if raw.Sign() < 0 {
		sign = "-"
	}

	if frac.Sign() == 0 {
		return sign + whole.String()
	}

	fracStr := strings.TrimRight(fmt.Sprintf("%0*s", decimals, frac.String()), "0")
	return fmt.Sprintf("%s%s.%s", sign, whole.String(), fracStr)
}

// ParseUnits converts a decimal string to the raw integer value at the given
// precision. It rejects malformed input and fractional parts with more
// digits than the token carries.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	parts := strings.SplitN(s, ".", 2)
	wholeStr := parts[0]
	fracStr := ""
	if len(parts) == 2 {
		fracStr = parts[1]
	}

	if wholeStr == "" && fracStr == "" {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	if wholeStr == "" {
		wholeStr = "0"
	}
	if len(fracStr) > decimals {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", s, decimals)
	}

	whole, ok := new(big.Int).SetString(wholeStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	raw := new(big.Int).Mul(whole, scale)

	if fracStr != "" {
		// Right-pad the fractional part to the full precision
		padded := fracStr + strings.Repeat("0", decimals-len(fracStr))
		frac, ok := new(big.Int).SetString(padded, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount: %q", s)
		}
		raw.Add(raw, frac)
	}

	if negative {
		raw.Neg(raw)
	}

	return raw, nil
}
