package indicators

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_CalculateRSI(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 95, 100}
	rsi := CalculateRSI(closes, 2)

	require.Len(t, rsi, len(closes))
	// Warmup entries stay zero.
	require.Equal(t, 0.0, rsi[0])
	require.Equal(t, 0.0, rsi[1])
	// Straight gains read 100.
	require.Equal(t, 100.0, rsi[2])
	require.Equal(t, 100.0, rsi[3])
	// The 103 -> 95 drop: avgGain 0.5, avgLoss 4.
	require.InDelta(t, 11.111, rsi[4], 0.001)
	require.InDelta(t, 57.894, rsi[5], 0.001)
}

func Test_CalculateRSI_TooShort(t *testing.T) {
	rsi := CalculateRSI([]float64{100, 101}, 14)
	require.Equal(t, []float64{0, 0}, rsi)
}

func Test_CalculateEMA(t *testing.T) {
	data := []float64{100, 101, 102, 103, 95, 100}
	ema := CalculateEMA(data, 3)

	require.Len(t, ema, len(data))
	require.Equal(t, 0.0, ema[0])
	require.Equal(t, 0.0, ema[1])
	// Seeded with the simple average of the first period.
	require.Equal(t, 101.0, ema[2])
	require.Equal(t, 102.0, ema[3])
	require.Equal(t, 98.5, ema[4])
	require.Equal(t, 99.25, ema[5])
}

func Test_CalculateEMA_TooShort(t *testing.T) {
	ema := CalculateEMA([]float64{100}, 3)
	require.Equal(t, []float64{0}, ema)
}
