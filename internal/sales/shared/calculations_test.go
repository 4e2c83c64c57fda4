package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateLineTotals(t *testing.T) {
	net, tax, total := CalculateLineTotals(2, 500, 11)
	require.InDelta(t, 1000.0, net, 0.001)
	require.InDelta(t, 110.0, tax, 0.001)
	require.InDelta(t, 1110.0, total, 0.001)
}

func TestCalculateLineTotalsZeroTax(t *testing.T) {
	net, tax, total := CalculateLineTotals(3, 250, 0)
	require.InDelta(t, 750.0, net, 0.001)
	require.Zero(t, tax)
	require.InDelta(t, 750.0, total, 0.001)
}
