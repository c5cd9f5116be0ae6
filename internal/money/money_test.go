package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantizeHalfUp(t *testing.T) {
	m, err := NewFromString("0.005")
	require.NoError(t, err)
	assert.Equal(t, "0.01", m.Quantize().String())
}

func TestEqualAfterQuantize(t *testing.T) {
	dr, err := NewFromString("0.005")
	require.NoError(t, err)
	cr, err := NewFromString("0.01")
	require.NoError(t, err)
	// 0.005 rounds to 0.01 HALF_UP, so these are equal.
	assert.True(t, dr.Equal(cr))
}

func TestUnbalancedAfterQuantize(t *testing.T) {
	dr, err := NewFromString("0.005")
	require.NoError(t, err)
	cr, err := NewFromString("0.00")
	require.NoError(t, err)
	assert.False(t, dr.Equal(cr))
}

func TestSumQuantizesOnce(t *testing.T) {
	a := NewFromFloat(0.01)
	b := NewFromFloat(0.01)
	total := Sum([]Money{a, b})
	assert.Equal(t, "0.02", total.String())
}

func TestArithmetic(t *testing.T) {
	a := NewFromFloat(100)
	b := NewFromFloat(40)
	assert.Equal(t, "60.00", a.Sub(b).String())
	assert.Equal(t, "140.00", a.Add(b).String())
	assert.True(t, a.GreaterThan(b))
	assert.True(t, b.LessThan(a))
	assert.True(t, Zero.IsZero())
}

func TestJSONRoundTrip(t *testing.T) {
	m := NewFromFloat(1180.5)
	b, err := m.MarshalJSON()
	require.NoError(t, err)

	var out Money
	require.NoError(t, out.UnmarshalJSON(b))
	assert.True(t, m.Equal(out))
}
