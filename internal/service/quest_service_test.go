package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"quest_engine_backend/internal/model"
	"quest_engine_backend/internal/util"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const testUser = "user-1"

func testQuest(id string, attemptsAllowed, limitSeconds, correct int) model.Quest {
	q := model.Quest{
		Title:            "复利的力量",
		Type:             model.QuestTypeDaily,
		Options:          model.EncodeOptions([]string{"a", "b", "c", "d", "e"}),
		CorrectOption:    correct,
		Reward:           datatypes.JSON(`{"gold":10}`),
		TimeLimitSeconds: limitSeconds,
		AttemptsAllowed:  attemptsAllowed,
		Status:           model.QuestStatusActive,
	}
	q.ID = id
	return q
}

func newTestService(quests ...model.Quest) (*QuestService, *memStore, *fakeClock) {
	store := newMemStore(quests...)
	clock := newFakeClock()
	svc := NewQuestService(store)
	svc.Now = clock.Now
	return svc, store, clock
}

func requireCode(t *testing.T, err error, code util.QuestErrorCode) {
	t.Helper()
	require.Error(t, err)
	got, ok := util.QuestErrorCodeOf(err)
	require.True(t, ok, "error %v carries no code", err)
	assert.Equal(t, code, got)
}

func TestCorrectSubmitWithinLimitCompletesAndRewards(t *testing.T) {
	svc, store, clock := newTestService(testQuest("q-1", 1, 60, 2))
	ctx := context.Background()

	start, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, start.Status)
	assert.Equal(t, 1, start.Attempts)
	assert.Equal(t, 0, start.RemainingAttempts)
	assert.Equal(t, 60, start.TimeLimitSeconds)
	require.NotNil(t, start.Deadline)
	assert.Equal(t, start.StartedAt.Add(60*time.Second), *start.Deadline)

	clock.Advance(5 * time.Second)
	res, err := svc.SubmitQuest(ctx, testUser, "q-1", 2)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, res.Status)
	assert.True(t, res.IsSuccess)
	assert.True(t, res.RewardIssued)
	assert.Equal(t, 5, res.TimeTakenSeconds)
	assert.JSONEq(t, `{"gold":10}`, string(res.Reward))
	assert.Nil(t, res.Reason)
	assert.Equal(t, 1, store.rewardCount())

	a, ok := store.attempt("q-1", testUser)
	require.True(t, ok)
	require.NotNil(t, a.SelectedOption)
	assert.Equal(t, 2, *a.SelectedOption)
	require.NotNil(t, a.TimeTakenSeconds)
	assert.Equal(t, 5, *a.TimeTakenSeconds)
}

func TestLateCorrectSubmitFails(t *testing.T) {
	svc, store, clock := newTestService(testQuest("q-1", 1, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)

	clock.Advance(65 * time.Second)
	res, err := svc.SubmitQuest(ctx, testUser, "q-1", 2)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, res.Status)
	assert.False(t, res.IsSuccess)
	assert.False(t, res.RewardIssued)
	assert.Empty(t, res.Reward)
	require.NotNil(t, res.Reason)
	assert.Equal(t, model.FailReasonTimeout, *res.Reason)
	assert.Equal(t, 0, store.rewardCount())

	a, _ := store.attempt("q-1", testUser)
	require.NotNil(t, a.SelectedOption)
	assert.Equal(t, 2, *a.SelectedOption)
	require.NotNil(t, a.SubmittedAt)
}

func TestTimeoutOverridesCorrectness(t *testing.T) {
	svc, store, clock := newTestService(testQuest("q-1", 1, 30, 4))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	res, err := svc.SubmitQuest(ctx, testUser, "q-1", 4)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, res.Status)
	assert.False(t, res.IsSuccess)
	assert.False(t, res.RewardIssued)
	assert.Equal(t, 0, store.rewardCount())
}

func TestSubmitAtExactLimitIsOnTime(t *testing.T) {
	svc, _, clock := newTestService(testQuest("q-1", 1, 30, 4))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)

	clock.Advance(30*time.Second + 900*time.Millisecond)
	res, err := svc.SubmitQuest(ctx, testUser, "q-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 30, res.TimeTakenSeconds)
	assert.True(t, res.IsSuccess)
}

func TestUntimedQuestIgnoresElapsedTime(t *testing.T) {
	svc, _, clock := newTestService(testQuest("q-1", 1, 0, 3))
	ctx := context.Background()

	start, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	assert.Nil(t, start.Deadline)

	clock.Advance(48 * time.Hour)
	res, err := svc.SubmitQuest(ctx, testUser, "q-1", 3)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, res.Status)
}

func TestWrongAnswerFailsWithoutReward(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 2, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	res, err := svc.SubmitQuest(ctx, testUser, "q-1", 5)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, res.Status)
	assert.False(t, res.IsSuccess)
	assert.Nil(t, res.Reason)
	assert.Equal(t, 0, store.rewardCount())

	again, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Attempts)
}

func TestSuccessWithoutRewardWritesNoLedgerEntry(t *testing.T) {
	q := testQuest("q-1", 1, 60, 1)
	q.Reward = nil
	svc, store, _ := newTestService(q)
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	res, err := svc.SubmitQuest(ctx, testUser, "q-1", 1)
	require.NoError(t, err)
	assert.True(t, res.IsSuccess)
	assert.False(t, res.RewardIssued)
	assert.Equal(t, 0, store.rewardCount())
}

func TestRestartAfterManualFailUntilExhausted(t *testing.T) {
	svc, _, _ := newTestService(testQuest("q-1", 2, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	fail, err := svc.FailQuest(ctx, testUser, "q-1", "manual")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, fail.Status)
	assert.Equal(t, model.FailReasonManual, fail.Reason)

	second, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Attempts)

	_, err = svc.StartQuest(ctx, testUser, "q-1")
	requireCode(t, err, util.CodeQuestAlreadyInProgress)

	_, err = svc.FailQuest(ctx, testUser, "q-1", "")
	require.NoError(t, err)
	_, err = svc.StartQuest(ctx, testUser, "q-1")
	requireCode(t, err, util.CodeQuestAttemptsExhausted)
}

func TestSubmitWithoutStart(t *testing.T) {
	svc, _, _ := newTestService(testQuest("q-1", 1, 60, 2))
	ctx := context.Background()

	_, err := svc.SubmitQuest(ctx, testUser, "q-1", 2)
	requireCode(t, err, util.CodeQuestNotStarted)

	_, err = svc.FailQuest(ctx, testUser, "q-1", "manual")
	requireCode(t, err, util.CodeQuestNotStarted)
}

func TestFirstStartLosingInsertRace(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 3, 60, 2))
	store.insertConflict = true
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	requireCode(t, err, util.CodeQuestAlreadyInProgress)
	assert.ErrorIs(t, err, util.ErrQuestAlreadyInProgress)

	_, ok := store.attempt("q-1", testUser)
	assert.False(t, ok)

	store.insertConflict = false
	res, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RemainingAttempts)
}

func TestConcurrentStartsHaveSingleWinner(t *testing.T) {
	for round := 0; round < 20; round++ {
		svc, store, _ := newTestService(testQuest("q-1", 3, 60, 2))
		ctx := context.Background()

		var (
			mu      sync.Mutex
			winners []*StartResult
			losers  []error
		)
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				res, err := svc.StartQuest(ctx, testUser, "q-1")
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					losers = append(losers, err)
				} else {
					winners = append(winners, res)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		require.Len(t, winners, 1)
		assert.Equal(t, 1, winners[0].Attempts)
		assert.Equal(t, model.AttemptInProgress, winners[0].Status)
		for _, err := range losers {
			requireCode(t, err, util.CodeQuestAlreadyInProgress)
		}
		a, _ := store.attempt("q-1", testUser)
		assert.Equal(t, 1, a.Attempts)
	}
}

func TestConcurrentSubmitsIssueOneReward(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 1, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		successes int
		errs      []error
	)
	var g errgroup.Group
	for i := 0; i < 6; i++ {
		g.Go(func() error {
			res, err := svc.SubmitQuest(ctx, testUser, "q-1", 2)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if res.RewardIssued {
				successes++
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, store.rewardCount())
	for _, err := range errs {
		requireCode(t, err, util.CodeQuestNotInProgress)
	}
}

func TestRepeatedSubmitIsRejected(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 1, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	first, err := svc.SubmitQuest(ctx, testUser, "q-1", 2)
	require.NoError(t, err)
	assert.True(t, first.RewardIssued)

	_, err = svc.SubmitQuest(ctx, testUser, "q-1", 2)
	requireCode(t, err, util.CodeQuestNotInProgress)
	assert.Equal(t, 1, store.rewardCount())

	_, err = svc.StartQuest(ctx, testUser, "q-1")
	requireCode(t, err, util.CodeQuestAlreadyCompleted)
	_, err = svc.FailQuest(ctx, testUser, "q-1", "manual")
	requireCode(t, err, util.CodeQuestNotInProgress)
}

func TestExistingLedgerEntryCountsAsIssued(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 1, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	a, _ := store.attempt("q-1", testUser)

	// an entry left behind by an earlier submit for the same attempt
	store.rewards[999] = model.RewardLedgerEntry{BaseModel: model.BaseModel{ID: 999}, AttemptID: a.ID, UserID: testUser, QuestID: "q-1"}

	res, err := svc.SubmitQuest(ctx, testUser, "q-1", 2)
	require.NoError(t, err)
	assert.True(t, res.RewardIssued)
	assert.Equal(t, 1, store.rewardCount())
}

func TestListingIsReadOnlyAndStable(t *testing.T) {
	svc, store, clock := newTestService(testQuest("q-1", 3, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)
	before, _ := store.attempt("q-1", testUser)

	first, err := svc.ListQuests(ctx, testUser, "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		clock.Advance(3 * time.Second)
		again, err := svc.ListQuests(ctx, testUser, "")
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, first[0].Progress, again[0].Progress)
		assert.Equal(t, first[0].Timer, again[0].Timer)
	}

	after, _ := store.attempt("q-1", testUser)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, store.rewardCount())
	assert.Equal(t, 6, store.listCalls)

	require.Len(t, first, 1)
	assert.Equal(t, model.AttemptInProgress, first[0].Progress.Status)
	assert.Equal(t, 1, first[0].Progress.Attempts)
	assert.Equal(t, 2, first[0].Progress.RemainingAttempts)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, first[0].Options)
}

func TestListFiltersWindowStatusAndType(t *testing.T) {
	clock := newFakeClock()
	now := clock.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	open := testQuest("open", 1, 60, 2)
	notYet := testQuest("not-yet", 1, 60, 2)
	notYet.StartAt = &future
	expired := testQuest("expired", 1, 60, 2)
	expired.ExpireAt = &past
	expiresNow := testQuest("expires-now", 1, 60, 2)
	expiresNow.ExpireAt = &now
	inactive := testQuest("inactive", 1, 60, 2)
	inactive.Status = model.QuestStatusInactive
	weekly := testQuest("weekly", 1, 60, 2)
	weekly.Type = model.QuestTypeWeekly

	store := newMemStore(open, notYet, expired, expiresNow, inactive, weekly)
	svc := NewQuestService(store)
	svc.Now = clock.Now
	ctx := context.Background()

	all, err := svc.ListQuests(ctx, testUser, "")
	require.NoError(t, err)
	var ids []string
	for _, it := range all {
		ids = append(ids, it.ID)
	}
	assert.ElementsMatch(t, []string{"open", "weekly"}, ids)

	onlyWeekly, err := svc.ListQuests(ctx, testUser, "weekly")
	require.NoError(t, err)
	require.Len(t, onlyWeekly, 1)
	assert.Equal(t, "weekly", onlyWeekly[0].ID)
	assert.Equal(t, model.AttemptIdle, onlyWeekly[0].Progress.Status)
	assert.Equal(t, 1, onlyWeekly[0].Progress.RemainingAttempts)

	_, err = svc.ListQuests(ctx, testUser, "yearly")
	requireCode(t, err, util.CodeInvalidPayload)
	assert.Equal(t, 2, store.listCalls)
}

func TestStartRejectsUnavailableQuests(t *testing.T) {
	clock := newFakeClock()
	now := clock.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	notYet := testQuest("not-yet", 1, 60, 2)
	notYet.StartAt = &future
	expired := testQuest("expired", 1, 60, 2)
	expired.ExpireAt = &past
	expiresNow := testQuest("expires-now", 1, 60, 2)
	expiresNow.ExpireAt = &now
	inactive := testQuest("inactive", 1, 60, 2)
	inactive.Status = model.QuestStatusInactive

	store := newMemStore(notYet, expired, expiresNow, inactive)
	svc := NewQuestService(store)
	svc.Now = clock.Now
	ctx := context.Background()

	cases := map[string]util.QuestErrorCode{
		"missing":     util.CodeQuestNotFound,
		"inactive":    util.CodeQuestNotFound,
		"not-yet":     util.CodeQuestNotAvailableYet,
		"expired":     util.CodeQuestExpired,
		"expires-now": util.CodeQuestExpired,
	}
	for id, code := range cases {
		_, err := svc.StartQuest(ctx, testUser, id)
		requireCode(t, err, code)
	}
	assert.Empty(t, store.attempts)
}

func TestSubmitValidatesOptionBeforeTouchingStore(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 1, 60, 2))
	store.lockErr = errStoreDown
	ctx := context.Background()

	for _, opt := range []int{0, -1, 6, 42} {
		_, err := svc.SubmitQuest(ctx, testUser, "q-1", opt)
		requireCode(t, err, util.CodeInvalidPayload)
	}
}

func TestSubmitUnknownQuest(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.SubmitQuest(context.Background(), testUser, "nope", 1)
	requireCode(t, err, util.CodeQuestNotFound)
}

func TestFailReasonValidation(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 1, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)

	_, err = svc.FailQuest(ctx, testUser, "q-1", "bored")
	requireCode(t, err, util.CodeInvalidPayload)

	res, err := svc.FailQuest(ctx, testUser, "q-1", "timeout")
	require.NoError(t, err)
	assert.Equal(t, model.FailReasonTimeout, res.Reason)
	assert.False(t, res.IsSuccess)

	a, _ := store.attempt("q-1", testUser)
	assert.Nil(t, a.SelectedOption)
	require.NotNil(t, a.FailReason)
	assert.Equal(t, model.FailReasonTimeout, *a.FailReason)
}

func TestMissingCallerIsUnauthorized(t *testing.T) {
	svc, _, _ := newTestService(testQuest("q-1", 1, 60, 2))
	ctx := context.Background()

	_, err := svc.ListQuests(ctx, "", "")
	requireCode(t, err, util.CodeUnauthorized)
	_, err = svc.StartQuest(ctx, "", "q-1")
	requireCode(t, err, util.CodeUnauthorized)
	_, err = svc.SubmitQuest(ctx, "", "q-1", 1)
	requireCode(t, err, util.CodeUnauthorized)
	_, err = svc.FailQuest(ctx, "", "q-1", "")
	requireCode(t, err, util.CodeUnauthorized)
}

func TestZeroRowUpdatesSurfaceGenericFailures(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 2, 60, 2))
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	require.NoError(t, err)

	store.zeroRows = true
	_, err = svc.SubmitQuest(ctx, testUser, "q-1", 2)
	requireCode(t, err, util.CodeQuestSubmitFailed)
	_, err = svc.FailQuest(ctx, testUser, "q-1", "")
	requireCode(t, err, util.CodeQuestFailUpdateFailed)

	store.zeroRows = false
	_, err = svc.FailQuest(ctx, testUser, "q-1", "")
	require.NoError(t, err)

	store.zeroRows = true
	_, err = svc.StartQuest(ctx, testUser, "q-1")
	requireCode(t, err, util.CodeQuestStartFailed)

	a, _ := store.attempt("q-1", testUser)
	assert.Equal(t, model.AttemptFailed, a.Status)
	assert.Equal(t, 1, a.Attempts)
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	svc, store, _ := newTestService(testQuest("q-1", 1, 60, 2))
	store.lockErr = errStoreDown
	ctx := context.Background()

	_, err := svc.StartQuest(ctx, testUser, "q-1")
	requireCode(t, err, util.CodeQuestStartFailed)
	assert.ErrorIs(t, err, errStoreDown)

	_, err = svc.SubmitQuest(ctx, testUser, "q-1", 1)
	requireCode(t, err, util.CodeQuestSubmitFailed)
	_, err = svc.FailQuest(ctx, testUser, "q-1", "")
	requireCode(t, err, util.CodeQuestFailUpdateFailed)
	assert.ErrorIs(t, err, util.ErrQuestFailUpdateFailed)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestSeedCatalogServesReadOnly(t *testing.T) {
	svc := NewSeedQuestService()
	ctx := context.Background()

	items, err := svc.ListQuests(ctx, testUser, "")
	require.NoError(t, err)
	require.Len(t, items, len(model.QuestTypes))

	var types []model.QuestType
	for _, it := range items {
		assert.True(t, strings.HasPrefix(it.ID, model.SeedIDPrefix))
		assert.Equal(t, model.AttemptIdle, it.Progress.Status)
		assert.Len(t, it.Options, model.QuestOptionCount)
		types = append(types, it.Type)
	}
	assert.Equal(t, []model.QuestType{
		model.QuestTypeDaily, model.QuestTypeEvent, model.QuestTypeMonthly,
		model.QuestTypePremium, model.QuestTypeWeekly,
	}, types)

	premium, err := svc.ListQuests(ctx, testUser, "premium")
	require.NoError(t, err)
	require.Len(t, premium, 1)

	_, err = svc.StartQuest(ctx, testUser, items[0].ID)
	requireCode(t, err, util.CodeQuestStartFailed)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = svc.SubmitQuest(ctx, testUser, items[0].ID, 1)
	requireCode(t, err, util.CodeQuestSubmitFailed)
	_, err = svc.FailQuest(ctx, testUser, items[0].ID, "")
	requireCode(t, err, util.CodeQuestFailUpdateFailed)
}

func TestBuildQuestListItem(t *testing.T) {
	started := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	status := string(model.AttemptFailed)
	count := 4
	success := false
	expire := started.Add(24 * time.Hour)

	row := model.QuestListRow{
		ID:                 "q-1",
		Title:              "t",
		Type:               model.QuestTypeMonthly,
		Options:            model.EncodeOptions([]string{"1", "2", "3", "4", "5"}),
		TimeLimitSeconds:   90,
		AttemptsAllowed:    3,
		ExpireAt:           &expire,
		AttemptStatus:      &status,
		AttemptCount:       &count,
		AttemptStartedAt:   &started,
		AttemptSubmittedAt: &started,
		AttemptIsSuccess:   &success,
	}
	item, err := BuildQuestListItem(row)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, item.Progress.Status)
	assert.Equal(t, 0, item.Progress.RemainingAttempts)
	assert.Equal(t, QuestTimer{LimitSeconds: 90, ExpiresAt: &expire}, item.Timer)

	row.Options = datatypes.JSON(`{"not":"a list"}`)
	_, err = BuildQuestListItem(row)
	assert.Error(t, err)
}

func TestListItemDoesNotLeakAnswerOrReward(t *testing.T) {
	q := testQuest("q-1", 1, 60, 2)
	q.Reward = datatypes.JSON(`{"secretGold":777}`)
	item, err := BuildQuestListItem(model.ListRowFromQuest(&q))
	require.NoError(t, err)

	b, err := json.Marshal(item)
	require.NoError(t, err)
	body := string(b)
	assert.NotContains(t, body, "correct")
	assert.NotContains(t, body, "secretGold")
	assert.NotContains(t, body, "reward")
}

func TestAttemptBudgetProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("N failed cycles exhaust the budget", prop.ForAll(
		func(n int) bool {
			svc, _, _ := newTestService(testQuest("q-1", n, 60, 2))
			ctx := context.Background()
			for i := 1; i <= n; i++ {
				res, err := svc.StartQuest(ctx, testUser, "q-1")
				if err != nil || res.Attempts != i {
					return false
				}
				if _, err := svc.FailQuest(ctx, testUser, "q-1", "manual"); err != nil {
					return false
				}
			}
			_, err := svc.StartQuest(ctx, testUser, "q-1")
			code, _ := util.QuestErrorCodeOf(err)
			return code == util.CodeQuestAttemptsExhausted
		},
		gen.IntRange(1, 6),
	))

	// 0 starts, 1..5 submits that option, 6 fails manually.
	properties.Property("random call sequences keep attempt and ledger invariants", prop.ForAll(
		func(allowed int, ops []int) bool {
			svc, store, clock := newTestService(testQuest("q-1", allowed, 60, 3))
			ctx := context.Background()
			completed := false
			for _, op := range ops {
				clock.Advance(7 * time.Second)
				switch {
				case op == 0:
					_, _ = svc.StartQuest(ctx, testUser, "q-1")
				case op <= 5:
					_, _ = svc.SubmitQuest(ctx, testUser, "q-1", op)
				default:
					_, _ = svc.FailQuest(ctx, testUser, "q-1", "")
				}

				a, ok := store.attempt("q-1", testUser)
				if !ok {
					continue
				}
				if a.Attempts > allowed || store.rewardCount() > 1 {
					return false
				}
				if completed && a.Status != model.AttemptCompleted {
					return false
				}
				completed = a.Status == model.AttemptCompleted
				if completed != (store.rewardCount() == 1) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 4),
		gen.SliceOf(gen.IntRange(0, 6)),
	))

	properties.TestingRun(t)
}
