package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"quest_engine_backend/internal/model"
	"quest_engine_backend/internal/repository"
	"quest_engine_backend/internal/util"
	"quest_engine_backend/pkg/logger"
	"quest_engine_backend/pkg/monitoring"
	"quest_engine_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ErrStoreUnavailable is the cause attached to mutations attempted while the
// service runs on the built-in seed catalog.
var ErrStoreUnavailable = errors.New("quest store not configured")

var errAttemptChanged = errors.New("attempt record changed concurrently")

// QuestService implements the quest attempt lifecycle. Every mutation runs in
// one store transaction holding row locks on the quest and the caller's attempt.
// A nil Store puts the service in degraded mode.
type QuestService struct {
	Store repository.QuestStore
	Seed  []model.Quest
	Now   func() time.Time
}

func NewQuestService(store repository.QuestStore) *QuestService {
	return &QuestService{Store: store, Now: time.Now}
}

// NewSeedQuestService serves the built-in catalog read-only.
func NewSeedQuestService() *QuestService {
	return &QuestService{Seed: model.SeedQuests(), Now: time.Now}
}

func (s *QuestService) Degraded() bool {
	return s.Store == nil
}

func (s *QuestService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

type QuestTimer struct {
	LimitSeconds int        `json:"limitSeconds"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	StartsAt     *time.Time `json:"startsAt"`
}

type QuestProgress struct {
	Status            model.AttemptStatus `json:"status"`
	Attempts          int                 `json:"attempts"`
	RemainingAttempts int                 `json:"remainingAttempts"`
	StartedAt         *time.Time          `json:"startedAt"`
	SubmittedAt       *time.Time          `json:"submittedAt"`
	IsSuccess         *bool               `json:"isSuccess"`
}

type QuestListItem struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Type            model.QuestType `json:"type"`
	Options         []string        `json:"options"`
	AttemptsAllowed int             `json:"attemptsAllowed"`
	Timer           QuestTimer      `json:"timer"`
	Progress        QuestProgress   `json:"progress"`
}

type StartResult struct {
	QuestID           string              `json:"questId"`
	Status            model.AttemptStatus `json:"status"`
	Attempts          int                 `json:"attempts"`
	RemainingAttempts int                 `json:"remainingAttempts"`
	StartedAt         time.Time           `json:"startedAt"`
	TimeLimitSeconds  int                 `json:"timeLimitSeconds"`
	ExpiresAt         *time.Time          `json:"expiresAt"`
	// Deadline is startedAt plus the time limit, set only for timed quests.
	Deadline *time.Time `json:"deadline,omitempty"`
}

type SubmitResult struct {
	QuestID          string              `json:"questId"`
	Status           model.AttemptStatus `json:"status"`
	IsSuccess        bool                `json:"isSuccess"`
	TimeTakenSeconds int                 `json:"timeTakenSeconds"`
	RewardIssued     bool                `json:"rewardIssued"`
	Reason           *model.FailReason   `json:"reason,omitempty"`
	Reward           datatypes.JSON      `json:"reward,omitempty"`
}

type FailResult struct {
	QuestID          string              `json:"questId"`
	Status           model.AttemptStatus `json:"status"`
	IsSuccess        bool                `json:"isSuccess"`
	Reason           model.FailReason    `json:"reason"`
	TimeTakenSeconds int                 `json:"timeTakenSeconds"`
}

// BuildQuestListItem normalizes one joined catalog row into the caller-facing
// shape. It never exposes the correct option or the reward payload.
func BuildQuestListItem(row model.QuestListRow) (QuestListItem, error) {
	opts, err := model.DecodeOptions(row.Options)
	if err != nil {
		return QuestListItem{}, err
	}

	progress := QuestProgress{
		Status:            model.AttemptIdle,
		RemainingAttempts: row.AttemptsAllowed,
	}
	if row.AttemptStatus != nil {
		progress.Status = model.AttemptStatus(*row.AttemptStatus)
		if row.AttemptCount != nil {
			progress.Attempts = *row.AttemptCount
		}
		progress.RemainingAttempts = row.AttemptsAllowed - progress.Attempts
		if progress.RemainingAttempts < 0 {
			progress.RemainingAttempts = 0
		}
		progress.StartedAt = row.AttemptStartedAt
		progress.SubmittedAt = row.AttemptSubmittedAt
		progress.IsSuccess = row.AttemptIsSuccess
	}

	return QuestListItem{
		ID:              row.ID,
		Title:           row.Title,
		Description:     row.Description,
		Type:            row.Type,
		Options:         opts,
		AttemptsAllowed: row.AttemptsAllowed,
		Timer: QuestTimer{
			LimitSeconds: row.TimeLimitSeconds,
			ExpiresAt:    row.ExpireAt,
			StartsAt:     row.StartAt,
		},
		Progress: progress,
	}, nil
}

func questEligible(q *model.Quest, now time.Time) bool {
	return q.Status == model.QuestStatusActive && !q.NotYetAvailable(now) && !q.Expired(now)
}

// ListQuests returns the eligible catalog with the caller's progress. questType
// may be empty; any other value must name a known type.
func (s *QuestService) ListQuests(ctx context.Context, userID, questType string) (items []QuestListItem, err error) {
	ctx, span := s.begin(ctx, "QuestService.ListQuests", userID, "")
	defer func() { s.end(span, "list", err) }()

	if userID == "" {
		return nil, util.ErrUnauthorized
	}
	filter := repository.QuestFilter{Type: model.QuestType(questType)}
	if questType != "" && !filter.Type.Valid() {
		return nil, util.ErrInvalidPayload
	}

	now := s.now()
	var rows []model.QuestListRow
	if s.Degraded() {
		rows = s.seedRows(filter, now)
	} else {
		rows, err = s.Store.ListForUser(ctx, userID, filter, now)
		if err != nil {
			return nil, classify(err, util.ErrQuestListFailed)
		}
	}

	items = make([]QuestListItem, 0, len(rows))
	for _, row := range rows {
		item, err := BuildQuestListItem(row)
		if err != nil {
			return nil, classify(err, util.ErrQuestListFailed)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *QuestService) seedRows(filter repository.QuestFilter, now time.Time) []model.QuestListRow {
	rows := make([]model.QuestListRow, 0, len(s.Seed))
	for i := range s.Seed {
		q := &s.Seed[i]
		if !questEligible(q, now) {
			continue
		}
		if filter.Type != "" && q.Type != filter.Type {
			continue
		}
		rows = append(rows, model.ListRowFromQuest(q))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Type != rows[j].Type {
			return rows[i].Type < rows[j].Type
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows
}

// StartQuest opens a new attempt cycle for the caller.
func (s *QuestService) StartQuest(ctx context.Context, userID, questID string) (res *StartResult, err error) {
	ctx, span := s.begin(ctx, "QuestService.StartQuest", userID, questID)
	defer func() { s.end(span, "start", err) }()

	if userID == "" {
		return nil, util.ErrUnauthorized
	}
	if questID == "" {
		return nil, util.ErrInvalidPayload
	}
	if s.Degraded() {
		return nil, classify(ErrStoreUnavailable, util.ErrQuestStartFailed)
	}

	now := s.now()
	err = s.Store.Transaction(ctx, func(tx repository.QuestTx) error {
		quest, err := tx.LockQuest(questID)
		if err != nil {
			return err
		}
		if quest == nil || quest.Status != model.QuestStatusActive {
			return util.ErrQuestNotFound
		}
		if quest.NotYetAvailable(now) {
			return util.ErrQuestNotAvailableYet
		}
		if quest.Expired(now) {
			return util.ErrQuestExpired
		}

		attempt, err := tx.LockAttempt(questID, userID)
		if err != nil {
			return err
		}

		if attempt == nil {
			attempt = &model.QuestAttempt{
				QuestID:   questID,
				UserID:    userID,
				Status:    model.AttemptInProgress,
				Attempts:  1,
				StartedAt: now,
			}
			inserted, err := tx.InsertAttempt(attempt)
			if err != nil {
				return err
			}
			if !inserted {
				return util.ErrQuestAlreadyInProgress
			}
		} else {
			if attempt.Status == model.AttemptCompleted {
				return util.ErrQuestAlreadyCompleted
			}
			if !attempt.Status.Terminal() {
				return util.ErrQuestAlreadyInProgress
			}
			if attempt.Attempts >= quest.AttemptsAllowed {
				return util.ErrQuestAttemptsExhausted
			}

			n, err := tx.RestartAttempt(attempt.ID, now)
			if err != nil {
				return err
			}
			if n == 0 {
				return classify(errAttemptChanged, util.ErrQuestStartFailed)
			}
			attempt, err = tx.LockAttempt(questID, userID)
			if err != nil {
				return err
			}
			if attempt == nil {
				return classify(errAttemptChanged, util.ErrQuestStartFailed)
			}
		}

		if attempt.Attempts > quest.AttemptsAllowed {
			return util.ErrQuestAttemptsExhausted
		}

		res = newStartResult(quest, attempt)
		return nil
	})
	if err != nil {
		return nil, classify(err, util.ErrQuestStartFailed)
	}

	logger.Log.Info("quest started",
		zap.String("quest_id", questID),
		zap.String("user_id", userID),
		zap.Int("attempts", res.Attempts))
	return res, nil
}

func newStartResult(q *model.Quest, a *model.QuestAttempt) *StartResult {
	res := &StartResult{
		QuestID:           q.ID,
		Status:            a.Status,
		Attempts:          a.Attempts,
		RemainingAttempts: q.AttemptsAllowed - a.Attempts,
		StartedAt:         a.StartedAt,
		TimeLimitSeconds:  q.TimeLimitSeconds,
		ExpiresAt:         q.ExpireAt,
	}
	if q.Timed() {
		deadline := a.StartedAt.Add(time.Duration(q.TimeLimitSeconds) * time.Second)
		res.Deadline = &deadline
	}
	return res
}

// SubmitQuest scores the caller's in-progress attempt. A submission arriving
// after the time limit fails regardless of the option chosen.
func (s *QuestService) SubmitQuest(ctx context.Context, userID, questID string, selectedOption int) (res *SubmitResult, err error) {
	ctx, span := s.begin(ctx, "QuestService.SubmitQuest", userID, questID)
	defer func() { s.end(span, "submit", err) }()

	if userID == "" {
		return nil, util.ErrUnauthorized
	}
	if questID == "" || !model.ValidOption(selectedOption) {
		return nil, util.ErrInvalidPayload
	}
	if s.Degraded() {
		return nil, classify(ErrStoreUnavailable, util.ErrQuestSubmitFailed)
	}

	now := s.now()
	err = s.Store.Transaction(ctx, func(tx repository.QuestTx) error {
		quest, err := tx.LockQuest(questID)
		if err != nil {
			return err
		}
		if quest == nil {
			return util.ErrQuestNotFound
		}

		attempt, err := tx.LockAttempt(questID, userID)
		if err != nil {
			return err
		}
		if attempt == nil {
			return util.ErrQuestNotStarted
		}
		if attempt.Status != model.AttemptInProgress {
			return util.ErrQuestNotInProgress
		}

		selected := selectedOption
		fin := repository.AttemptFinish{
			SubmittedAt:      now,
			SelectedOption:   &selected,
			TimeTakenSeconds: attempt.TimeTaken(now),
		}
		if quest.Timed() && fin.TimeTakenSeconds > quest.TimeLimitSeconds {
			reason := model.FailReasonTimeout
			fin.Status = model.AttemptFailed
			fin.FailReason = &reason
		} else {
			fin.IsSuccess = selected == quest.CorrectOption
			fin.Status = model.AttemptFailed
			if fin.IsSuccess {
				fin.Status = model.AttemptCompleted
			}
		}

		n, err := tx.FinishAttempt(attempt.ID, fin)
		if err != nil {
			return err
		}
		if n == 0 {
			return classify(errAttemptChanged, util.ErrQuestSubmitFailed)
		}

		res = &SubmitResult{
			QuestID:          questID,
			Status:           fin.Status,
			IsSuccess:        fin.IsSuccess,
			TimeTakenSeconds: fin.TimeTakenSeconds,
			Reason:           fin.FailReason,
		}
		if !fin.IsSuccess {
			return nil
		}

		res.Reward = quest.Reward
		if !quest.HasReward() {
			return nil
		}
		inserted, err := tx.InsertReward(&model.RewardLedgerEntry{
			AttemptID: attempt.ID,
			UserID:    userID,
			QuestID:   questID,
			AttemptNo: attempt.Attempts,
			Reward:    quest.Reward,
		})
		if err != nil {
			return err
		}
		if inserted {
			res.RewardIssued = true
			return nil
		}
		res.RewardIssued, err = tx.RewardExists(attempt.ID)
		return err
	})
	if err != nil {
		return nil, classify(err, util.ErrQuestSubmitFailed)
	}

	logger.Log.Info("quest submitted",
		zap.String("quest_id", questID),
		zap.String("user_id", userID),
		zap.String("status", string(res.Status)),
		zap.Bool("reward_issued", res.RewardIssued))
	return res, nil
}

// FailQuest abandons the caller's in-progress attempt. An empty reason means manual.
func (s *QuestService) FailQuest(ctx context.Context, userID, questID, reason string) (res *FailResult, err error) {
	ctx, span := s.begin(ctx, "QuestService.FailQuest", userID, questID)
	defer func() { s.end(span, "fail", err) }()

	if userID == "" {
		return nil, util.ErrUnauthorized
	}
	failReason := model.FailReason(reason)
	if failReason == "" {
		failReason = model.FailReasonManual
	}
	if questID == "" || !failReason.Valid() {
		return nil, util.ErrInvalidPayload
	}
	if s.Degraded() {
		return nil, classify(ErrStoreUnavailable, util.ErrQuestFailUpdateFailed)
	}

	now := s.now()
	err = s.Store.Transaction(ctx, func(tx repository.QuestTx) error {
		attempt, err := tx.LockAttempt(questID, userID)
		if err != nil {
			return err
		}
		if attempt == nil {
			return util.ErrQuestNotStarted
		}
		if attempt.Status != model.AttemptInProgress {
			return util.ErrQuestNotInProgress
		}

		fin := repository.AttemptFinish{
			Status:           model.AttemptFailed,
			SubmittedAt:      now,
			TimeTakenSeconds: attempt.TimeTaken(now),
			FailReason:       &failReason,
		}
		n, err := tx.FinishAttempt(attempt.ID, fin)
		if err != nil {
			return err
		}
		if n == 0 {
			return classify(errAttemptChanged, util.ErrQuestFailUpdateFailed)
		}

		res = &FailResult{
			QuestID:          questID,
			Status:           model.AttemptFailed,
			Reason:           failReason,
			TimeTakenSeconds: fin.TimeTakenSeconds,
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, util.ErrQuestFailUpdateFailed)
	}

	logger.Log.Info("quest failed",
		zap.String("quest_id", questID),
		zap.String("user_id", userID),
		zap.String("reason", string(failReason)))
	return res, nil
}

// classify keeps domain codes and wraps anything else in the operation's
// generic failure.
func classify(err error, fallback *util.QuestError) error {
	if _, ok := util.QuestErrorCodeOf(err); ok {
		return err
	}
	return util.NewQuestError(fallback.Code, err)
}

func (s *QuestService) begin(ctx context.Context, name, userID, questID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("user.id", userID)}
	if questID != "" {
		attrs = append(attrs, attribute.String("quest.id", questID))
	}
	return tracing.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *QuestService) end(span trace.Span, operation string, err error) {
	defer span.End()

	result := "ok"
	if err != nil {
		code, ok := util.QuestErrorCodeOf(err)
		result = string(code)
		if !ok {
			result = "error"
		}
		span.RecordError(err)
		if code.HTTPStatus() >= 500 {
			span.SetStatus(codes.Error, result)
		}
	}
	monitoring.ObserveQuest(operation, result)
}
