package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"1000000000000000000", 1},
		{"3000000000000000000", 3},
		{"500000000000000000", 0.5},
		{"1", 1e-18},
	}

	for _, tt := range tests {
		got, err := ToDecimal(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-30, tt.in)
	}
}

func TestToDecimalRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "-1", "1.5"} {
		_, err := ToDecimal(in)
		assert.Error(t, err, in)
	}
}

func TestToMinorUnitsTruncatesTowardZero(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.5", "500000000000000000"},
		{"1.0000000000000000019", "1000000000000000001"},
		{"0.0000000000000000009", "0"},
		{"123456789.123456789123456789", "123456789123456789123456789"},
	}

	for _, tt := range tests {
		got, err := ToMinorUnits(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ToMinorUnits("-0.1")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ToMinorUnits("")
	assert.ErrorIs(t, err, ErrEmptyAmount)
}

func TestFormatDecimal(t *testing.T) {
	got, err := FormatDecimal("1234500000000000000", DefaultPrecision)
	require.NoError(t, err)
	assert.Equal(t, "1.2345", got)

	got, err = FormatDecimal("0", DefaultPrecision)
	require.NoError(t, err)
	assert.Equal(t, "0.0000", got)

	got, err = FormatDecimal("1500000000000000000", 0)
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestSumIsExactBeyondFloat64(t *testing.T) {
	// 2^60 + 1 is not representable as a float64.
	a := "1152921504606846977"
	got, err := Sum(a, a, a, "0")
	require.NoError(t, err)
	assert.Equal(t, "3458764513820540931", got)

	got, err = Sum()
	require.NoError(t, err)
	assert.Equal(t, "0", got)

	_, err = Sum("1", "x")
	assert.Error(t, err)
}

func TestCanonical(t *testing.T) {
	got, err := Canonical(" 007 ")
	require.NoError(t, err)
	assert.Equal(t, "7", got)

	_, err = Canonical("1.5")
	assert.ErrorIs(t, err, ErrFractionalMinorUnits)
}
