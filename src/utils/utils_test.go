package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 42, 17, 500, time.FixedZone("BRT", -3*3600))
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), StartOfDay(ts))

	late := time.Date(2025, 6, 1, 22, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	require.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), StartOfDay(late))
}

func TestIsPlaceholder(t *testing.T) {
	tests := map[string]bool{
		"":                     true,
		"  ":                   true,
		"your_api_key_here":    true,
		"YOUR-TOKEN":           true,
		"sk-live-abc123":       false,
		"1234567890:AAFxyzAbc": false,
	}
	for in, want := range tests {
		require.Equal(t, want, IsPlaceholder(in), in)
	}
}

func TestSplitPair(t *testing.T) {
	tests := []struct {
		in          string
		base, quote string
		wantErr     bool
	}{
		{"BTC/USDT", "BTC", "USDT", false},
		{"eth_usdt", "ETH", "USDT", false},
		{"SOL-USDT", "SOL", "USDT", false},
		{"BTCUSDT", "", "", true},
		{"/USDT", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			base, quote, err := SplitPair(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.base, base)
			require.Equal(t, tt.quote, quote)
		})
	}
}
