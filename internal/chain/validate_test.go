package chain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wnt/memescore/internal/models"
)

func TestNormalizeAddress(t *testing.T) {
	got, ok := NormalizeAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
	assert.True(t, ok)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", got)

	got, ok = NormalizeAddress("")
	assert.True(t, ok)
	assert.Equal(t, models.NativeTokenAddress, got)

	for _, bad := range []string{"0x123", "abcdef0123456789abcdef0123456789abcdef01", "0xZZcdef0123456789abcdef0123456789abcdef01"} {
		_, ok := NormalizeAddress(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalizeTxHash(t *testing.T) {
	hash := "0x" + strings.Repeat("Ab", 32)
	got, ok := NormalizeTxHash(hash)
	assert.True(t, ok)
	assert.Equal(t, strings.ToLower(hash), got)

	for _, bad := range []string{"", "0x1234", strings.Repeat("a", 66), "0x" + strings.Repeat("g", 64)} {
		_, ok := NormalizeTxHash(bad)
		assert.False(t, ok, bad)
	}
}
