package util

import (
	"errors"
	"net/http"
)

// QuestErrorCode is the closed set of outcomes the quest engine reports to callers.
type QuestErrorCode string

const (
	CodeUnauthorized           QuestErrorCode = "UNAUTHORIZED"
	CodeInvalidPayload         QuestErrorCode = "INVALID_PAYLOAD"
	CodeQuestNotFound          QuestErrorCode = "QUEST_NOT_FOUND"
	CodeQuestNotAvailableYet   QuestErrorCode = "QUEST_NOT_AVAILABLE_YET"
	CodeQuestExpired           QuestErrorCode = "QUEST_EXPIRED"
	CodeQuestAlreadyCompleted  QuestErrorCode = "QUEST_ALREADY_COMPLETED"
	CodeQuestAlreadyInProgress QuestErrorCode = "QUEST_ALREADY_IN_PROGRESS"
	CodeQuestAttemptsExhausted QuestErrorCode = "QUEST_ATTEMPTS_EXHAUSTED"
	CodeQuestNotStarted        QuestErrorCode = "QUEST_NOT_STARTED"
	CodeQuestNotInProgress     QuestErrorCode = "QUEST_NOT_IN_PROGRESS"
	CodeQuestListFailed        QuestErrorCode = "QUEST_LIST_FAILED"
	CodeQuestStartFailed       QuestErrorCode = "QUEST_START_FAILED"
	CodeQuestSubmitFailed      QuestErrorCode = "QUEST_SUBMIT_FAILED"
	CodeQuestFailUpdateFailed  QuestErrorCode = "QUEST_FAIL_UPDATE_FAILED"
)

type questErrorMeta struct {
	status  int
	message string
}

var questErrorTable = map[QuestErrorCode]questErrorMeta{
	CodeUnauthorized:           {http.StatusUnauthorized, "请先登录"},
	CodeInvalidPayload:         {http.StatusBadRequest, "请求参数不合法"},
	CodeQuestNotFound:          {http.StatusNotFound, "任务不存在"},
	CodeQuestNotAvailableYet:   {http.StatusForbidden, "任务尚未开放"},
	CodeQuestExpired:           {http.StatusGone, "任务已过期"},
	CodeQuestAlreadyCompleted:  {http.StatusConflict, "任务已完成"},
	CodeQuestAlreadyInProgress: {http.StatusConflict, "任务正在进行中"},
	CodeQuestAttemptsExhausted: {http.StatusConflict, "挑战次数已用完"},
	CodeQuestNotStarted:        {http.StatusConflict, "请先开始任务"},
	CodeQuestNotInProgress:     {http.StatusConflict, "任务不在进行中"},
	CodeQuestListFailed:        {http.StatusInternalServerError, "获取任务列表失败"},
	CodeQuestStartFailed:       {http.StatusInternalServerError, "开始任务失败，请稍后重试"},
	CodeQuestSubmitFailed:      {http.StatusInternalServerError, "提交答案失败，请稍后重试"},
	CodeQuestFailUpdateFailed:  {http.StatusInternalServerError, "更新任务状态失败，请稍后重试"},
}

func (c QuestErrorCode) HTTPStatus() int {
	if m, ok := questErrorTable[c]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

func (c QuestErrorCode) Message() string {
	if m, ok := questErrorTable[c]; ok {
		return m.message
	}
	return "Internal server error"
}

// QuestError carries a code and, for infrastructure failures, the cause.
type QuestError struct {
	Code QuestErrorCode
	Err  error
}

func (e *QuestError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *QuestError) Unwrap() error {
	return e.Err
}

// Is matches any QuestError with the same code, so errors.Is(err, ErrQuestExpired)
// holds for wrapped instances too.
func (e *QuestError) Is(target error) bool {
	t, ok := target.(*QuestError)
	return ok && t.Code == e.Code
}

func NewQuestError(code QuestErrorCode, cause error) *QuestError {
	return &QuestError{Code: code, Err: cause}
}

// QuestErrorCodeOf extracts the code from err. Unknown errors report false.
func QuestErrorCodeOf(err error) (QuestErrorCode, bool) {
	var qe *QuestError
	if errors.As(err, &qe) {
		return qe.Code, true
	}
	return "", false
}

var (
	ErrUnauthorized           = &QuestError{Code: CodeUnauthorized}
	ErrInvalidPayload         = &QuestError{Code: CodeInvalidPayload}
	ErrQuestNotFound          = &QuestError{Code: CodeQuestNotFound}
	ErrQuestNotAvailableYet   = &QuestError{Code: CodeQuestNotAvailableYet}
	ErrQuestExpired           = &QuestError{Code: CodeQuestExpired}
	ErrQuestAlreadyCompleted  = &QuestError{Code: CodeQuestAlreadyCompleted}
	ErrQuestAlreadyInProgress = &QuestError{Code: CodeQuestAlreadyInProgress}
	ErrQuestAttemptsExhausted = &QuestError{Code: CodeQuestAttemptsExhausted}
	ErrQuestNotStarted        = &QuestError{Code: CodeQuestNotStarted}
	ErrQuestNotInProgress     = &QuestError{Code: CodeQuestNotInProgress}
	ErrQuestListFailed        = &QuestError{Code: CodeQuestListFailed}
	ErrQuestStartFailed       = &QuestError{Code: CodeQuestStartFailed}
	ErrQuestSubmitFailed      = &QuestError{Code: CodeQuestSubmitFailed}
	ErrQuestFailUpdateFailed  = &QuestError{Code: CodeQuestFailUpdateFailed}
)
