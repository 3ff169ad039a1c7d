package model

import "time"

type AttemptStatus string

const (
	// AttemptIdle is never stored; it is reported when no record exists.
	AttemptIdle       AttemptStatus = "idle"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptFailed     AttemptStatus = "failed"
)

func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptFailed
}

type FailReason string

const (
	FailReasonManual  FailReason = "manual"
	FailReasonTimeout FailReason = "timeout"
)

func (r FailReason) Valid() bool {
	return r == FailReasonManual || r == FailReasonTimeout
}

// swagger:model QuestAttempt
type QuestAttempt struct {
	BaseModel

	QuestID          string        `gorm:"type:varchar(36);not null;uniqueIndex:uk_quest_attempts_quest_user" json:"questId"`
	UserID           string        `gorm:"size:64;not null;uniqueIndex:uk_quest_attempts_quest_user;index" json:"userId"`
	Status           AttemptStatus `gorm:"size:20;not null" json:"status"`
	Attempts         int           `gorm:"not null;default:0" json:"attempts"`
	StartedAt        time.Time     `json:"startedAt"`
	SubmittedAt      *time.Time    `json:"submittedAt,omitempty"`
	SelectedOption   *int          `json:"selectedOption,omitempty"`
	IsSuccess        *bool         `json:"isSuccess,omitempty"`
	TimeTakenSeconds *int          `json:"timeTakenSeconds,omitempty"`
	FailReason       *FailReason   `gorm:"size:20" json:"failReason,omitempty"`

	Quest *Quest `gorm:"foreignKey:QuestID;constraint:OnDelete:CASCADE" json:"-"`
}

func (QuestAttempt) TableName() string {
	return "quest_attempts"
}

// TimeTaken is the whole number of seconds between startedAt and now, never negative.
func (a *QuestAttempt) TimeTaken(now time.Time) int {
	if a.StartedAt.IsZero() {
		return 0
	}
	secs := int(now.Sub(a.StartedAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}
