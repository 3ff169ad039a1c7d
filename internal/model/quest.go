package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type QuestType string

const (
	QuestTypeDaily   QuestType = "daily"
	QuestTypeWeekly  QuestType = "weekly"
	QuestTypeMonthly QuestType = "monthly"
	QuestTypePremium QuestType = "premium"
	QuestTypeEvent   QuestType = "event"
)

// QuestTypes lists the catalog types in display order.
var QuestTypes = []QuestType{
	QuestTypeDaily,
	QuestTypeWeekly,
	QuestTypeMonthly,
	QuestTypePremium,
	QuestTypeEvent,
}

func (t QuestType) Valid() bool {
	for _, qt := range QuestTypes {
		if qt == t {
			return true
		}
	}
	return false
}

type QuestStatus string

const (
	QuestStatusActive   QuestStatus = "active"
	QuestStatusInactive QuestStatus = "inactive"
)

const (
	QuestOptionCount = 5
	MinOption        = 1
	MaxOption        = QuestOptionCount
)

// ValidOption reports whether n addresses one of the five quest options.
func ValidOption(n int) bool {
	return n >= MinOption && n <= MaxOption
}

// swagger:model Quest
type Quest struct {
	UUIDBase

	Title            string         `gorm:"size:255;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	Type             QuestType      `gorm:"size:20;not null;index" json:"type"`
	Options          datatypes.JSON `gorm:"not null" json:"options"`
	CorrectOption    int            `gorm:"not null" json:"-"`
	Reward           datatypes.JSON `json:"-"`
	TimeLimitSeconds int            `gorm:"not null;default:0" json:"timeLimitSeconds"`
	AttemptsAllowed  int            `gorm:"not null;default:1" json:"attemptsAllowed"`
	StartAt          *time.Time     `gorm:"index" json:"startAt,omitempty"`
	ExpireAt         *time.Time     `gorm:"index" json:"expireAt,omitempty"`
	Status           QuestStatus    `gorm:"size:20;not null;default:'active';index" json:"status"`
}

func (Quest) TableName() string {
	return "quests"
}

// OptionList decodes the stored options in display order.
func (q *Quest) OptionList() ([]string, error) {
	return DecodeOptions(q.Options)
}

func DecodeOptions(raw datatypes.JSON) ([]string, error) {
	var opts []string
	if len(raw) == 0 {
		return nil, errors.New("quest options missing")
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("decode quest options: %w", err)
	}
	return opts, nil
}

func EncodeOptions(opts []string) datatypes.JSON {
	b, _ := json.Marshal(opts)
	return datatypes.JSON(b)
}

// HasReward reports whether the quest carries a reward payload worth a ledger entry.
func (q *Quest) HasReward() bool {
	return HasPayload(q.Reward)
}

func HasPayload(raw datatypes.JSON) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// Timed reports whether submissions are subject to the time limit.
func (q *Quest) Timed() bool {
	return q.TimeLimitSeconds > 0
}

// NotYetAvailable and Expired evaluate the validity window at now.
func (q *Quest) NotYetAvailable(now time.Time) bool {
	return q.StartAt != nil && q.StartAt.After(now)
}

func (q *Quest) Expired(now time.Time) bool {
	return q.ExpireAt != nil && !q.ExpireAt.After(now)
}

func (q *Quest) Validate() error {
	if q.Title == "" {
		return errors.New("title required")
	}
	if !q.Type.Valid() {
		return fmt.Errorf("unknown quest type %q", q.Type)
	}
	if q.Status != QuestStatusActive && q.Status != QuestStatusInactive {
		return fmt.Errorf("unknown quest status %q", q.Status)
	}
	opts, err := q.OptionList()
	if err != nil {
		return err
	}
	if len(opts) != QuestOptionCount {
		return fmt.Errorf("quest must have exactly %d options, got %d", QuestOptionCount, len(opts))
	}
	if !ValidOption(q.CorrectOption) {
		return fmt.Errorf("correct option %d out of range", q.CorrectOption)
	}
	if q.AttemptsAllowed < 1 {
		return errors.New("attemptsAllowed must be at least 1")
	}
	if q.TimeLimitSeconds < 0 {
		return errors.New("timeLimitSeconds must not be negative")
	}
	if q.StartAt != nil && q.ExpireAt != nil && !q.StartAt.Before(*q.ExpireAt) {
		return errors.New("startAt must be before expireAt")
	}
	return nil
}
