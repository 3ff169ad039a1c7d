package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"quest_engine_backend/internal/model"
	"quest_engine_backend/internal/repository"
)

// memStore is a transactional in-memory QuestStore. Transaction holds one
// store-wide lock, so concurrent callers serialize the way row locks on a
// single (quest, user) pair would, and state is committed only when fn
// returns nil.
type memStore struct {
	mu sync.Mutex

	quests   map[string]model.Quest
	attempts map[string]model.QuestAttempt
	rewards  map[uint]model.RewardLedgerEntry
	nextID   uint

	// zeroRows makes RestartAttempt/FinishAttempt report no affected rows.
	zeroRows bool
	// lockErr is returned by every Lock* call when set.
	lockErr error
	// insertConflict makes InsertAttempt behave as if another transaction
	// inserted the row after LockAttempt saw none.
	insertConflict bool
	// listCalls counts ListForUser invocations.
	listCalls int
}

func newMemStore(quests ...model.Quest) *memStore {
	s := &memStore{
		quests:   make(map[string]model.Quest),
		attempts: make(map[string]model.QuestAttempt),
		rewards:  make(map[uint]model.RewardLedgerEntry),
	}
	for _, q := range quests {
		s.quests[q.ID] = q
	}
	return s
}

func attemptKey(questID, userID string) string {
	return questID + "|" + userID
}

func (s *memStore) ListForUser(_ context.Context, userID string, filter repository.QuestFilter, now time.Time) ([]model.QuestListRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++

	var rows []model.QuestListRow
	for _, q := range s.quests {
		q := q
		if !questEligible(&q, now) {
			continue
		}
		if filter.Type != "" && q.Type != filter.Type {
			continue
		}
		row := model.ListRowFromQuest(&q)
		if a, ok := s.attempts[attemptKey(q.ID, userID)]; ok {
			status := string(a.Status)
			count := a.Attempts
			started := a.StartedAt
			row.AttemptStatus = &status
			row.AttemptCount = &count
			row.AttemptStartedAt = &started
			row.AttemptSubmittedAt = a.SubmittedAt
			row.AttemptIsSuccess = a.IsSuccess
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Type != rows[j].Type {
			return rows[i].Type < rows[j].Type
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows, nil
}

func (s *memStore) Transaction(_ context.Context, fn func(tx repository.QuestTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		attempts: make(map[string]model.QuestAttempt, len(s.attempts)),
		rewards:  make(map[uint]model.RewardLedgerEntry, len(s.rewards)),
		nextID:   s.nextID,
	}
	for k, v := range s.attempts {
		tx.attempts[k] = v
	}
	for k, v := range s.rewards {
		tx.rewards[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}
	s.attempts = tx.attempts
	s.rewards = tx.rewards
	s.nextID = tx.nextID
	return nil
}

func (s *memStore) attempt(questID, userID string) (model.QuestAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptKey(questID, userID)]
	return a, ok
}

func (s *memStore) rewardCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rewards)
}

type memTx struct {
	store    *memStore
	attempts map[string]model.QuestAttempt
	rewards  map[uint]model.RewardLedgerEntry
	nextID   uint
}

func (t *memTx) LockQuest(questID string) (*model.Quest, error) {
	if t.store.lockErr != nil {
		return nil, t.store.lockErr
	}
	q, ok := t.store.quests[questID]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (t *memTx) LockAttempt(questID, userID string) (*model.QuestAttempt, error) {
	if t.store.lockErr != nil {
		return nil, t.store.lockErr
	}
	a, ok := t.attempts[attemptKey(questID, userID)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (t *memTx) InsertAttempt(a *model.QuestAttempt) (bool, error) {
	if t.store.insertConflict {
		return false, nil
	}
	key := attemptKey(a.QuestID, a.UserID)
	if _, ok := t.attempts[key]; ok {
		return false, nil
	}
	t.nextID++
	a.ID = t.nextID
	t.attempts[key] = *a
	return true, nil
}

func (t *memTx) byID(id uint) (string, model.QuestAttempt, bool) {
	for k, a := range t.attempts {
		if a.ID == id {
			return k, a, true
		}
	}
	return "", model.QuestAttempt{}, false
}

func (t *memTx) RestartAttempt(id uint, startedAt time.Time) (int64, error) {
	if t.store.zeroRows {
		return 0, nil
	}
	key, a, ok := t.byID(id)
	if !ok || a.Status == model.AttemptCompleted {
		return 0, nil
	}
	a.Status = model.AttemptInProgress
	a.Attempts++
	a.StartedAt = startedAt
	t.attempts[key] = a
	return 1, nil
}

func (t *memTx) FinishAttempt(id uint, fin repository.AttemptFinish) (int64, error) {
	if t.store.zeroRows {
		return 0, nil
	}
	key, a, ok := t.byID(id)
	if !ok || a.Status != model.AttemptInProgress {
		return 0, nil
	}
	submitted := fin.SubmittedAt
	success := fin.IsSuccess
	taken := fin.TimeTakenSeconds
	a.Status = fin.Status
	a.SubmittedAt = &submitted
	a.SelectedOption = fin.SelectedOption
	a.IsSuccess = &success
	a.TimeTakenSeconds = &taken
	a.FailReason = fin.FailReason
	t.attempts[key] = a
	return 1, nil
}

func (t *memTx) InsertReward(e *model.RewardLedgerEntry) (bool, error) {
	for _, existing := range t.rewards {
		if existing.AttemptID == e.AttemptID {
			return false, nil
		}
	}
	t.nextID++
	e.ID = t.nextID
	t.rewards[e.ID] = *e
	return true, nil
}

func (t *memTx) RewardExists(attemptID uint) (bool, error) {
	for _, e := range t.rewards {
		if e.AttemptID == attemptID {
			return true, nil
		}
	}
	return false, nil
}

var errStoreDown = errors.New("connection refused")

// fakeClock is an adjustable time source for the service.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
