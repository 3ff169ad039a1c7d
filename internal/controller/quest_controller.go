package controller

import (
	"context"
	"errors"
	"io"

	"quest_engine_backend/internal/service"
	"quest_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// QuestOperations is the quest engine as seen by the HTTP layer.
type QuestOperations interface {
	ListQuests(ctx context.Context, userID, questType string) ([]service.QuestListItem, error)
	StartQuest(ctx context.Context, userID, questID string) (*service.StartResult, error)
	SubmitQuest(ctx context.Context, userID, questID string, selectedOption int) (*service.SubmitResult, error)
	FailQuest(ctx context.Context, userID, questID, reason string) (*service.FailResult, error)
}

type QuestController struct {
	QuestService QuestOperations
}

func NewQuestController(questService QuestOperations) *QuestController {
	return &QuestController{QuestService: questService}
}

type SubmitQuestRequest struct {
	SelectedOption *int `json:"selectedOption" binding:"required"`
}

type FailQuestRequest struct {
	Reason string `json:"reason"`
}

func callerID(ctx *gin.Context) string {
	if user := util.GetUserFromContext(ctx); user != nil {
		return user.UserID
	}
	return ""
}

// @Summary 获取任务列表
// @Description 返回当前可参与的任务及本人进度
// @Tags 任务
// @Produce json
// @Security BearerAuth
// @Param type query string false "任务类型" Enums(daily, weekly, monthly, premium, event)
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/quests [get]
func (c *QuestController) ListQuests(ctx *gin.Context) {
	items, err := c.QuestService.ListQuests(ctx.Request.Context(), callerID(ctx), ctx.Query("type"))
	if err != nil {
		util.QuestFail(ctx, err, util.CodeQuestListFailed)
		return
	}
	util.Success(ctx, items)
}

// @Summary 开始任务
// @Tags 任务
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/quests/{id}/start [post]
func (c *QuestController) StartQuest(ctx *gin.Context) {
	res, err := c.QuestService.StartQuest(ctx.Request.Context(), callerID(ctx), ctx.Param("id"))
	if err != nil {
		util.QuestFail(ctx, err, util.CodeQuestStartFailed)
		return
	}
	util.Success(ctx, res)
}

// @Summary 提交答案
// @Tags 任务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Param body body SubmitQuestRequest true "所选选项(1-5)"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/quests/{id}/submit [post]
func (c *QuestController) SubmitQuest(ctx *gin.Context) {
	userID := callerID(ctx)
	if userID == "" {
		util.QuestFail(ctx, util.ErrUnauthorized, util.CodeUnauthorized)
		return
	}

	var req SubmitQuestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.QuestFail(ctx, util.NewQuestError(util.CodeInvalidPayload, err), util.CodeInvalidPayload)
		return
	}

	res, err := c.QuestService.SubmitQuest(ctx.Request.Context(), userID, ctx.Param("id"), *req.SelectedOption)
	if err != nil {
		util.QuestFail(ctx, err, util.CodeQuestSubmitFailed)
		return
	}
	util.Success(ctx, res)
}

// @Summary 放弃任务
// @Description 结束进行中的挑战，reason 默认为 manual
// @Tags 任务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Param body body FailQuestRequest false "失败原因(manual|timeout)"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/quests/{id}/fail [post]
func (c *QuestController) FailQuest(ctx *gin.Context) {
	userID := callerID(ctx)
	if userID == "" {
		util.QuestFail(ctx, util.ErrUnauthorized, util.CodeUnauthorized)
		return
	}

	var req FailQuestRequest
	// 请求体可以为空
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.QuestFail(ctx, util.NewQuestError(util.CodeInvalidPayload, err), util.CodeInvalidPayload)
		return
	}

	res, err := c.QuestService.FailQuest(ctx.Request.Context(), userID, ctx.Param("id"), req.Reason)
	if err != nil {
		util.QuestFail(ctx, err, util.CodeQuestFailUpdateFailed)
		return
	}
	util.Success(ctx, res)
}
