package util

import (
	"net/http"

	"quest_engine_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    http.StatusUnauthorized,
		Message: CodeUnauthorized.Message(),
		Error:   string(CodeUnauthorized),
	})
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

// QuestFail writes err using the quest error table. fallback is used for
// errors that carry no code. Only 5xx outcomes are logged.
func QuestFail(c *gin.Context, err error, fallback QuestErrorCode) {
	code, ok := QuestErrorCodeOf(err)
	if !ok {
		code = fallback
	}
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Log.Error("quest operation failed",
			zap.String("code", string(code)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, Response{
		Code:    status,
		Message: code.Message(),
		Error:   string(code),
	})
}
