package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/metrics"
)

// ReceiptClient is the part of ethclient.Client the verifier needs
type ReceiptClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Verifier checks that a tip transaction is mined and succeeded before it is
// recorded. When a tip contract is configured the receipt must also carry a
// log emitted by that contract.
type Verifier struct {
	pool       *Pool
	contract   *common.Address
	maxRetries int
	baseDelay  time.Duration
	logger     zerolog.Logger
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithBackoff sets retry count and base delay for transport failures
func WithBackoff(maxRetries int, baseDelay time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.maxRetries = maxRetries
		v.baseDelay = baseDelay
	}
}

// NewVerifier creates a receipt verifier. tipContract may be empty.
func NewVerifier(pool *Pool, tipContract string, logger zerolog.Logger, opts ...VerifierOption) (*Verifier, error) {
	v := &Verifier{
		pool:       pool,
		maxRetries: 3,
		baseDelay:  250 * time.Millisecond,
		logger:     logger.With().Str("component", "tip_verifier").Logger(),
	}

	if strings.TrimSpace(tipContract) != "" {
		if !common.IsHexAddress(tipContract) {
			return nil, fmt.Errorf("invalid tip contract address: %s", tipContract)
		}
		addr := common.HexToAddress(tipContract)
		v.contract = &addr
	}

	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// VerifyTip fetches the receipt of txHash and checks it. Unmined or reverted
// transactions are validation failures; RPC failures are external fetch errors.
func (v *Verifier) VerifyTip(ctx context.Context, txHash string) error {
	const op = "chain.VerifyTip"

	normalized, ok := NormalizeTxHash(txHash)
	if !ok {
		return apperr.Validation(op, "tx_hash must be a 0x-prefixed 32-byte hex string")
	}
	hash := common.HexToHash(normalized)

	receipt, err := v.fetchReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return apperr.Validation(op, "transaction is not confirmed")
	}
	if err != nil {
		return apperr.ExternalFetch(op, err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return apperr.Validation(op, "transaction reverted")
	}

	if v.contract != nil && !emittedBy(receipt, *v.contract) {
		return apperr.Validation(op, "transaction did not interact with the tip contract")
	}

	return nil
}

func emittedBy(receipt *types.Receipt, contract common.Address) bool {
	for _, log := range receipt.Logs {
		if log != nil && log.Address == contract {
			return true
		}
	}
	return false
}

// fetchReceipt retries transport failures with exponential backoff. A missing
// receipt is returned immediately.
func (v *Verifier) fetchReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var lastErr error

	for attempt := 0; attempt <= v.maxRetries; attempt++ {
		receipt, err := v.fetchReceiptOnce(ctx, hash)
		if err == nil {
			metrics.RecordExternalRequest("rpc", "success")
			return receipt, nil
		}
		if errors.Is(err, ethereum.NotFound) {
			metrics.RecordExternalRequest("rpc", "not_found")
			return nil, err
		}
		lastErr = err

		v.logger.Warn().
			Err(err).
			Str("tx_hash", hash.Hex()).
			Int("attempt", attempt+1).
			Msg("Failed to fetch receipt")

		if attempt == v.maxRetries {
			break
		}

		delay := v.baseDelay * time.Duration(1<<attempt)
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			metrics.RecordExternalRequest("rpc", "cancelled")
			return nil, ctx.Err()
		}
	}

	metrics.RecordExternalRequest("rpc", "failed")
	return nil, fmt.Errorf("failed to fetch receipt after %d attempts: %w", v.maxRetries+1, lastErr)
}

func (v *Verifier) fetchReceiptOnce(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	client, endpoint, err := v.pool.GetClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get RPC client: %w", err)
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		v.pool.MarkHealthy(endpoint)
		return nil, err
	}
	if err != nil {
		v.handleError(endpoint, err)
		return nil, err
	}

	v.pool.MarkHealthy(endpoint)
	return receipt, nil
}

func (v *Verifier) handleError(endpoint string, err error) {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit") {
		v.logger.Warn().Str("endpoint", endpoint).Msg("Rate limited by endpoint")
		v.pool.SetCooldown(endpoint, 5*time.Minute)
		return
	}
	v.pool.MarkUnhealthy(endpoint)
}
