package repository

import (
	"context"
	"errors"
	"time"

	"quest_engine_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestRepository struct {
	DB *gorm.DB
}

func NewQuestRepository(db *gorm.DB) *QuestRepository {
	return &QuestRepository{DB: db}
}

var _ QuestStore = (*QuestRepository)(nil)

const questListColumns = `q.id, q.title, q.description, q.type, q.options, q.time_limit_seconds, q.attempts_allowed,
	q.start_at, q.expire_at, q.created_at,
	a.status AS attempt_status, a.attempts AS attempt_count, a.started_at AS attempt_started_at,
	a.submitted_at AS attempt_submitted_at, a.is_success AS attempt_is_success`

func (r *QuestRepository) ListForUser(ctx context.Context, userID string, filter QuestFilter, now time.Time) ([]model.QuestListRow, error) {
	query := r.DB.WithContext(ctx).
		Table("quests AS q").
		Select(questListColumns).
		Joins("LEFT JOIN quest_attempts AS a ON a.quest_id = q.id AND a.user_id = ?", userID).
		Where("q.status = ?", model.QuestStatusActive).
		Where("(q.start_at IS NULL OR q.start_at <= ?)", now).
		Where("(q.expire_at IS NULL OR q.expire_at > ?)", now)
	if filter.Type != "" {
		query = query.Where("q.type = ?", filter.Type)
	}

	var rows []model.QuestListRow
	err := query.Order("q.type ASC").Order("q.created_at DESC").Scan(&rows).Error
	return rows, err
}

func (r *QuestRepository) Transaction(ctx context.Context, fn func(tx QuestTx) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&questTx{db: tx})
	})
}

func (r *QuestRepository) Create(ctx context.Context, q *model.Quest) error {
	if err := q.Validate(); err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *QuestRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Quest{}).Count(&count).Error
	return count, err
}

type questTx struct {
	db *gorm.DB
}

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func (t *questTx) LockQuest(questID string) (*model.Quest, error) {
	var q model.Quest
	err := t.db.Clauses(forUpdate()).Where("id = ?", questID).Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (t *questTx) LockAttempt(questID, userID string) (*model.QuestAttempt, error) {
	var a model.QuestAttempt
	err := t.db.Clauses(forUpdate()).
		Where("quest_id = ? AND user_id = ?", questID, userID).
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *questTx) InsertAttempt(attempt *model.QuestAttempt) (bool, error) {
	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(attempt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (t *questTx) RestartAttempt(attemptID uint, startedAt time.Time) (int64, error) {
	res := t.db.Model(&model.QuestAttempt{}).
		Where("id = ? AND status <> ?", attemptID, model.AttemptCompleted).
		Updates(map[string]interface{}{
			"status":     model.AttemptInProgress,
			"attempts":   gorm.Expr("attempts + ?", 1),
			"started_at": startedAt,
		})
	return res.RowsAffected, res.Error
}

func (t *questTx) FinishAttempt(attemptID uint, fin AttemptFinish) (int64, error) {
	res := t.db.Model(&model.QuestAttempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":             fin.Status,
			"submitted_at":       fin.SubmittedAt,
			"selected_option":    fin.SelectedOption,
			"is_success":         fin.IsSuccess,
			"time_taken_seconds": fin.TimeTakenSeconds,
			"fail_reason":        fin.FailReason,
		})
	return res.RowsAffected, res.Error
}

func (t *questTx) InsertReward(entry *model.RewardLedgerEntry) (bool, error) {
	res := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}},
		DoNothing: true,
	}).Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (t *questTx) RewardExists(attemptID uint) (bool, error) {
	var count int64
	err := t.db.Model(&model.RewardLedgerEntry{}).Where("attempt_id = ?", attemptID).Count(&count).Error
	return count > 0, err
}
