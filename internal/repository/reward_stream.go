package repository

import (
	"context"
	"strconv"

	"quest_engine_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

// RewardStream hands ledger entries to the currency service through a Redis
// stream. Delivery is at-least-once; consumers dedupe on entry_id.
type RewardStream struct {
	Client *redis.Client
	Stream string
	MaxLen int64
}

func NewRewardStream(rdb *redis.Client, stream string) *RewardStream {
	return &RewardStream{Client: rdb, Stream: stream, MaxLen: 100000}
}

func (s *RewardStream) PublishReward(ctx context.Context, entry model.RewardLedgerEntry) error {
	return s.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.Stream,
		MaxLen: s.MaxLen,
		Approx: true,
		Values: RewardStreamValues(entry),
	}).Err()
}

func RewardStreamValues(entry model.RewardLedgerEntry) map[string]interface{} {
	return map[string]interface{}{
		"entry_id":   strconv.FormatUint(uint64(entry.ID), 10),
		"attempt_id": strconv.FormatUint(uint64(entry.AttemptID), 10),
		"attempt_no": strconv.Itoa(entry.AttemptNo),
		"user_id":    entry.UserID,
		"quest_id":   entry.QuestID,
		"reward":     string(entry.Reward),
	}
}
