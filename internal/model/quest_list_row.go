package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuestListRow is the typed projection of quests LEFT JOIN quest_attempts for
// one caller. Attempt columns are nil when the caller never started the quest.
type QuestListRow struct {
	ID               string
	Title            string
	Description      string
	Type             QuestType
	Options          datatypes.JSON
	TimeLimitSeconds int
	AttemptsAllowed  int
	StartAt          *time.Time
	ExpireAt         *time.Time
	CreatedAt        time.Time

	AttemptStatus      *string
	AttemptCount       *int
	AttemptStartedAt   *time.Time
	AttemptSubmittedAt *time.Time
	AttemptIsSuccess   *bool
}

// ListRowFromQuest builds a row with no attempt attached.
func ListRowFromQuest(q *Quest) QuestListRow {
	return QuestListRow{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		Type:             q.Type,
		Options:          q.Options,
		TimeLimitSeconds: q.TimeLimitSeconds,
		AttemptsAllowed:  q.AttemptsAllowed,
		StartAt:          q.StartAt,
		ExpireAt:         q.ExpireAt,
		CreatedAt:        q.CreatedAt,
	}
}
