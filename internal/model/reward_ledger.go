package model

import (
	"time"

	"gorm.io/datatypes"
)

// RewardLedgerEntry 奖励发放意图，每个成功的挑战记录最多一条
type RewardLedgerEntry struct {
	BaseModel

	AttemptID uint           `gorm:"not null;uniqueIndex:uk_quest_reward_ledger_attempt" json:"attemptId"`
	UserID    string         `gorm:"size:64;not null;index" json:"userId"`
	QuestID   string         `gorm:"type:varchar(36);not null;index" json:"questId"`
	AttemptNo int            `gorm:"not null" json:"attemptNo"`
	Reward    datatypes.JSON `gorm:"not null" json:"reward"`
	Issued    bool           `gorm:"not null;default:false;index" json:"issued"`
	IssuedAt  *time.Time     `json:"issuedAt,omitempty"`

	Attempt *QuestAttempt `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"-"`
}

func (RewardLedgerEntry) TableName() string {
	return "quest_reward_ledger"
}
