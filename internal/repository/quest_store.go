package repository

import (
	"context"
	"time"

	"quest_engine_backend/internal/model"
)

// QuestFilter narrows a catalog listing. An empty Type lists every type.
type QuestFilter struct {
	Type model.QuestType
}

// QuestStore is the durable home of the quest catalog, attempt records and
// the reward ledger. Mutations happen only inside Transaction.
type QuestStore interface {
	// ListForUser returns eligible active quests joined with userID's attempt,
	// ordered by type then newest first. It never writes.
	ListForUser(ctx context.Context, userID string, filter QuestFilter, now time.Time) ([]model.QuestListRow, error)
	// Transaction runs fn in one database transaction. Any error from fn rolls
	// everything back.
	Transaction(ctx context.Context, fn func(tx QuestTx) error) error
}

// AttemptFinish describes the terminal write for an in-progress attempt.
type AttemptFinish struct {
	Status           model.AttemptStatus
	SubmittedAt      time.Time
	SelectedOption   *int
	IsSuccess        bool
	TimeTakenSeconds int
	FailReason       *model.FailReason
}

// QuestTx is the set of row operations available inside a quest transaction.
// Lock* methods take row-level exclusive locks held until commit and return
// nil without error when the row does not exist.
type QuestTx interface {
	LockQuest(questID string) (*model.Quest, error)
	LockAttempt(questID, userID string) (*model.QuestAttempt, error)

	// InsertAttempt creates the first attempt record. It reports false when a
	// record for the same (quest, user) already exists.
	InsertAttempt(attempt *model.QuestAttempt) (bool, error)
	// RestartAttempt opens a new cycle on a non-completed record and returns
	// the number of rows changed.
	RestartAttempt(attemptID uint, startedAt time.Time) (int64, error)
	// FinishAttempt applies fin only while the record is in progress and
	// returns the number of rows changed.
	FinishAttempt(attemptID uint, fin AttemptFinish) (int64, error)

	// InsertReward appends a ledger entry. It reports false when the attempt
	// already owns one.
	InsertReward(entry *model.RewardLedgerEntry) (bool, error)
	RewardExists(attemptID uint) (bool, error)
}
