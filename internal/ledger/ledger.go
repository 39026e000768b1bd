// Package ledger is the append-only, deduplicated store of confirmed tips.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/chain"
	"github.com/wnt/memescore/internal/metrics"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/units"
	"gorm.io/gorm"
)

// RecordInput is one confirmed transfer to be recorded
type RecordInput struct {
	ToCreatorID   uint
	FromCreatorID *uint
	TokenAddress  string
	Amount        string
	TxHash        string
}

// Aggregate is the count and exact total of a set of tips
type Aggregate struct {
	Count       int64  `json:"count"`
	TotalAmount string `json:"total_amount"`
}

// DestinationTotal is the tips one source sent to one destination
type DestinationTotal struct {
	ToCreatorID uint   `json:"to_creator_id"`
	TotalAmount string `json:"amount_total"`
	Count       int64  `json:"count"`
}

// Ledger records tips and aggregates them. Amounts are summed in Go with
// arbitrary precision; the database only filters rows.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the clock used to timestamp new tips
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger on top of db
func New(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record validates and inserts a tip. A second call with the same transaction
// hash returns a DuplicateTip error; the unique index on tx_hash decides races.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (models.Tip, error) {
	const op = "ledger.Record"

	tip, err := l.validate(in)
	if err != nil {
		return models.Tip{}, err
	}

	if err := l.db.WithContext(ctx).Create(&tip).Error; err != nil {
		if isUniqueViolation(err) {
			metrics.RecordDatabaseOperation("insert_tip", "duplicate")
			return models.Tip{}, apperr.DuplicateTip(op, tip.TxHash, err)
		}
		metrics.RecordDatabaseOperation("insert_tip", "failed")
		return models.Tip{}, apperr.Internal(op, err)
	}

	metrics.RecordDatabaseOperation("insert_tip", "success")
	return tip, nil
}

func (l *Ledger) validate(in RecordInput) (models.Tip, error) {
	const op = "ledger.Record"

	if in.ToCreatorID == 0 {
		return models.Tip{}, apperr.Validation(op, "destination creator is required")
	}
	if in.FromCreatorID != nil && *in.FromCreatorID == 0 {
		in.FromCreatorID = nil
	}

	txHash, ok := chain.NormalizeTxHash(in.TxHash)
	if !ok {
		return models.Tip{}, apperr.Validation(op, "tx_hash must be a 0x-prefixed 32-byte hex string")
	}

	token, ok := chain.NormalizeAddress(in.TokenAddress)
	if !ok {
		return models.Tip{}, apperr.Validation(op, "token_address is not a valid address")
	}

	amount, err := units.Canonical(in.Amount)
	if err != nil {
		return models.Tip{}, apperr.Validation(op, "amount: "+err.Error())
	}

	return models.Tip{
		ToCreatorID:   in.ToCreatorID,
		FromCreatorID: in.FromCreatorID,
		TokenAddress:  token,
		Amount:        amount,
		TxHash:        txHash,
		CreatedAt:     l.now().UTC(),
	}, nil
}

// WindowAggregate counts and sums the tips a creator received at or after windowStart
func (l *Ledger) WindowAggregate(ctx context.Context, toCreatorID uint, windowStart time.Time) (Aggregate, error) {
	const op = "ledger.WindowAggregate"

	var amounts []string
	err := l.db.WithContext(ctx).
		Model(&models.Tip{}).
		Where("to_creator_id = ? AND created_at >= ?", toCreatorID, windowStart.UTC()).
		Pluck("amount", &amounts).Error
	if err != nil {
		return Aggregate{}, apperr.Internal(op, err)
	}

	total, err := units.Sum(amounts...)
	if err != nil {
		return Aggregate{}, apperr.Internal(op, err)
	}

	return Aggregate{Count: int64(len(amounts)), TotalAmount: total}, nil
}

// GroupedBySource totals the tips a creator sent, per destination. Results are
// ordered by total descending, then destination id ascending.
func (l *Ledger) GroupedBySource(ctx context.Context, fromCreatorID uint) ([]DestinationTotal, error) {
	const op = "ledger.GroupedBySource"

	var rows []models.Tip
	err := l.db.WithContext(ctx).
		Select("to_creator_id", "amount").
		Where("from_creator_id = ?", fromCreatorID).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Internal(op, err)
	}

	totals := make(map[uint]decimal.Decimal)
	counts := make(map[uint]int64)
	for _, row := range rows {
		amount, err := units.ParseMinorUnits(row.Amount)
		if err != nil {
			return nil, apperr.Internal(op, err)
		}
		totals[row.ToCreatorID] = totals[row.ToCreatorID].Add(amount)
		counts[row.ToCreatorID]++
	}

	ids := make([]uint, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if c := totals[ids[i]].Cmp(totals[ids[j]]); c != 0 {
			return c > 0
		}
		return ids[i] < ids[j]
	})

	out := make([]DestinationTotal, 0, len(ids))
	for _, id := range ids {
		out = append(out, DestinationTotal{
			ToCreatorID: id,
			TotalAmount: totals[id].String(),
			Count:       counts[id],
		})
	}
	return out, nil
}

// Recent returns the newest tips a creator received
func (l *Ledger) Recent(ctx context.Context, toCreatorID uint, limit int) ([]models.Tip, error) {
	var tips []models.Tip
	err := l.db.WithContext(ctx).
		Where("to_creator_id = ?", toCreatorID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&tips).Error
	if err != nil {
		return nil, apperr.Internal("ledger.Recent", err)
	}
	return tips, nil
}

// FindByTxHash looks up a recorded tip by transaction hash
func (l *Ledger) FindByTxHash(ctx context.Context, txHash string) (models.Tip, error) {
	const op = "ledger.FindByTxHash"

	normalized, ok := chain.NormalizeTxHash(txHash)
	if !ok {
		return models.Tip{}, apperr.Validation(op, "tx_hash must be a 0x-prefixed 32-byte hex string")
	}

	var tip models.Tip
	err := l.db.WithContext(ctx).Where("tx_hash = ?", normalized).First(&tip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Tip{}, apperr.NotFound(op, "tip not found")
	}
	if err != nil {
		return models.Tip{}, apperr.Internal(op, err)
	}
	return tip, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
