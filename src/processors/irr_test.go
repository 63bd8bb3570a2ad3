package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternalRateOfReturn(t *testing.T) {
	// -100k out, two 60k returns: solves to roughly 13.07% per period.
	rate, ok := InternalRateOfReturn([]float64{-100000, 60000, 60000})
	require.True(t, ok)
	assert.InDelta(t, 0.1307, rate, 0.001)
}

func TestInternalRateOfReturnBreakEven(t *testing.T) {
	rate, ok := InternalRateOfReturn([]float64{-1000, 1000})
	require.True(t, ok)
	assert.InDelta(t, 0.0, rate, 1e-6)
}

func TestInternalRateOfReturnNegative(t *testing.T) {
	// More invested than returned yields a negative rate above -1.
	rate, ok := InternalRateOfReturn([]float64{-100000, 40000, 40000})
	require.True(t, ok)
	assert.Less(t, rate, 0.0)
	assert.Greater(t, rate, -1.0)
}

func TestInternalRateOfReturnNoSignChange(t *testing.T) {
	_, ok := InternalRateOfReturn([]float64{-100, -200, -300})
	assert.False(t, ok)

	_, ok = InternalRateOfReturn([]float64{100, 200, 300})
	assert.False(t, ok)
}

func TestInternalRateOfReturnTooFewFlows(t *testing.T) {
	_, ok := InternalRateOfReturn([]float64{-100})
	assert.False(t, ok)

	_, ok = InternalRateOfReturn(nil)
	assert.False(t, ok)
}
