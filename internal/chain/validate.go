// Package chain validates on-chain identifiers and optionally verifies tip
// transactions against EVM JSON-RPC endpoints.
package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/wnt/memescore/internal/models"
)

const txHashHexLength = 2 + 2*common.HashLength

// NormalizeAddress validates an EVM address and returns it lower-cased. An
// empty address is the native-currency sentinel.
func NormalizeAddress(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.NativeTokenAddress, true
	}
	if !common.IsHexAddress(address) || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), true
}

// NormalizeTxHash validates a 0x-prefixed 32-byte transaction hash and returns it lower-cased
func NormalizeTxHash(hash string) (string, bool) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) != txHashHexLength || !strings.HasPrefix(hash, "0x") {
		return "", false
	}
	for _, r := range hash[2:] {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", false
		}
	}
	return hash, true
}
