package utils

import (
	"fmt"
	"strings"
)

var placeholderMarkers = []string{"your_", "your-", "_here", "changeme", "xxx", "placeholder"}

// IsPlaceholder reports whether a credential is unset or still the sample
// value from an example env file.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	for _, m := range placeholderMarkers {
		if strings.Contains(v, m) {
			return true
		}
	}
	return false
}

// SplitPair splits "BTC/USDT" (or "BTC_USDT", "BTC-USDT") into base and quote.
func SplitPair(symbol string) (base, quote string, err error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "_", "-"} {
		if parts := strings.Split(s, sep); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
	}
	return "", "", fmt.Errorf("invalid trading pair %q, expected BASE/QUOTE", symbol)
}
