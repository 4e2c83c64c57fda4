package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatAmountIndonesianRupiah(t *testing.T) {
	out := FormatAmount("IDR", 12500000)
	require.True(t, strings.Contains(out, "Rp") || strings.Contains(out, "IDR"), "got %q", out)
	require.NotContains(t, out, "%!")
}

func TestFormatAmountFallsBackOnUnknownCode(t *testing.T) {
	out := FormatAmount("???", 100)
	require.Equal(t, "??? 100.00", out)
}

func TestFormatAmountKnownForeignCurrency(t *testing.T) {
	out := FormatAmount("CNY", 480000)
	require.NotEmpty(t, out)
	require.NotContains(t, out, "%!")
}
