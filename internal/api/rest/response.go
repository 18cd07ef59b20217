package rest

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/apperr"
)

// Response 统一响应格式
type Response struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{Status: true, Message: message, Data: data})
}

// fail 按错误类型映射状态码，内部错误只记录日志，不把原因返回给客户端
func fail(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		logger.Error("请求处理失败",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), Response{
		Status:  false,
		Message: apperr.PublicMessage(err),
	})
}

var errBadBody = apperr.Validation("Invalid request body")
