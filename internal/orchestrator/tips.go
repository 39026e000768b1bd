package orchestrator

import (
	"context"

	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/ledger"
	"github.com/wnt/memescore/internal/logger"
	"github.com/wnt/memescore/internal/metrics"
	"github.com/wnt/memescore/internal/models"
)

// TipNotification reports one confirmed on-chain tip
type TipNotification struct {
	ToCreatorID   uint
	FromCreatorID *uint
	TokenAddress  string
	Amount        string
	TxHash        string
}

// TipResult is the recorded tip and the destination's fresh snapshot
type TipResult struct {
	Tip      models.Tip
	Snapshot models.ScoreSnapshot
}

// NotifyTip records a tip and synchronously recomputes the destination
// creator. A repeated transaction hash fails with DuplicateTip and triggers
// no recompute, with the already recorded tip in the result. A zero source
// id means no source creator. If the recompute fails the tip stays recorded and the error
// is returned.
func (o *Orchestrator) NotifyTip(ctx context.Context, n TipNotification) (TipResult, error) {
	const op = "orchestrator.NotifyTip"
	log := logger.WithTxHash(logger.WithCreator(o.logger, n.ToCreatorID), n.TxHash)

	if n.FromCreatorID != nil && *n.FromCreatorID == 0 {
		n.FromCreatorID = nil
	}
	if _, err := o.creators.Get(ctx, n.ToCreatorID); err != nil {
		metrics.RecordTip("rejected")
		return TipResult{}, err
	}
	if n.FromCreatorID != nil {
		if _, err := o.creators.Get(ctx, *n.FromCreatorID); err != nil {
			metrics.RecordTip("rejected")
			if apperr.Is(err, apperr.KindNotFound) {
				return TipResult{}, apperr.Validation(op, "source creator does not exist")
			}
			return TipResult{}, err
		}
	}

	if o.verifier != nil {
		if err := o.verifier.VerifyTip(ctx, n.TxHash); err != nil {
			metrics.RecordTip("rejected")
			log.Warn().Err(err).Msg("Tip failed on-chain verification")
			return TipResult{}, err
		}
	}

	tip, err := o.ledger.Record(ctx, ledger.RecordInput{
		ToCreatorID:   n.ToCreatorID,
		FromCreatorID: n.FromCreatorID,
		TokenAddress:  n.TokenAddress,
		Amount:        n.Amount,
		TxHash:        n.TxHash,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindDuplicateTip) {
			metrics.RecordTip("duplicate")
			log.Info().Msg("Tip already recorded")
			existing, ferr := o.ledger.FindByTxHash(ctx, n.TxHash)
			if ferr != nil {
				log.Warn().Err(ferr).Msg("Failed to load recorded tip")
				return TipResult{}, err
			}
			return TipResult{Tip: existing}, err
		}
		metrics.RecordTip("rejected")
		return TipResult{}, err
	}
	metrics.RecordTip("recorded")

	snap, err := o.RecomputeOne(ctx, n.ToCreatorID)
	if err != nil {
		log.Error().Err(err).Msg("Tip recorded but recompute failed")
		return TipResult{Tip: tip}, err
	}

	return TipResult{Tip: tip, Snapshot: snap}, nil
}
