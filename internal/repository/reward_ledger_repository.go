package repository

import (
	"context"
	"time"

	"quest_engine_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardLedgerRepository struct {
	DB *gorm.DB
}

func NewRewardLedgerRepository(db *gorm.DB) *RewardLedgerRepository {
	return &RewardLedgerRepository{DB: db}
}

// DispatchUnissued locks up to limit unissued entries (skipping rows another
// dispatcher holds), hands each to publish in id order and marks the published
// ones issued in the same transaction. A publish error stops the batch; entries
// published before it are still marked and the error is returned.
func (r *RewardLedgerRepository) DispatchUnissued(ctx context.Context, limit int, now time.Time, publish func(model.RewardLedgerEntry) error) (int, error) {
	var (
		dispatched int
		publishErr error
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []model.RewardLedgerEntry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("issued = ?", false).
			Order("id ASC").
			Limit(limit).
			Find(&entries).Error; err != nil {
			return err
		}

		ids := make([]uint, 0, len(entries))
		for _, e := range entries {
			if err := publish(e); err != nil {
				publishErr = err
				break
			}
			ids = append(ids, e.ID)
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Model(&model.RewardLedgerEntry{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{"issued": true, "issued_at": now}).Error; err != nil {
			return err
		}
		dispatched = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return dispatched, publishErr
}

func (r *RewardLedgerRepository) CountUnissued(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.RewardLedgerEntry{}).Where("issued = ?", false).Count(&count).Error
	return count, err
}
