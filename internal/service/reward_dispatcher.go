package service

import (
	"context"
	"time"

	"quest_engine_backend/internal/model"
	"quest_engine_backend/pkg/logger"
	"quest_engine_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// RewardOutbox yields unissued ledger entries under lock and marks the ones
// publish accepted.
type RewardOutbox interface {
	DispatchUnissued(ctx context.Context, limit int, now time.Time, publish func(model.RewardLedgerEntry) error) (int, error)
}

type RewardPublisher interface {
	PublishReward(ctx context.Context, entry model.RewardLedgerEntry) error
}

// RewardDispatcher moves reward intents from the ledger to the currency
// service. Handoff is at-least-once.
type RewardDispatcher struct {
	Outbox    RewardOutbox
	Publisher RewardPublisher
	BatchSize int
	Now       func() time.Time
}

func NewRewardDispatcher(outbox RewardOutbox, publisher RewardPublisher, batchSize int) *RewardDispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RewardDispatcher{
		Outbox:    outbox,
		Publisher: publisher,
		BatchSize: batchSize,
		Now:       time.Now,
	}
}

// DispatchOnce publishes one batch and returns how many entries were handed off.
func (d *RewardDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	n, err := d.Outbox.DispatchUnissued(ctx, d.BatchSize, d.Now(), func(e model.RewardLedgerEntry) error {
		return d.Publisher.PublishReward(ctx, e)
	})
	if n > 0 {
		monitoring.RewardsDispatched.Add(float64(n))
	}
	return n, err
}

// Run drains the ledger every interval until ctx is done. A full batch is
// followed immediately by another one.
func (d *RewardDispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, err := d.DispatchOnce(ctx)
				if err != nil {
					logger.Log.Error("reward dispatch failed", zap.Int("dispatched", n), zap.Error(err))
					break
				}
				if n > 0 {
					logger.Log.Debug("rewards dispatched", zap.Int("count", n))
				}
				if n < d.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}
