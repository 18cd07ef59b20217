package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/auth"
	"github.com/lvdashuaibi/votely/internal/model"
)

const userKey = "user"

// RequestLogger 记录每个请求的方法、路径、状态码和耗时
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("请求完成",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// Protect 要求请求携带有效的 Bearer token
func Protect(a *auth.Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			fail(c, logger, err)
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// Identify 有 token 时解析身份，没有时匿名放行
func Identify(a *auth.Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.FromRequest(c.Request)
		if err != nil {
			fail(c, logger, err)
			return
		}
		if user != nil {
			setUser(c, user)
		}
		c.Next()
	}
}

func setUser(c *gin.Context, user *model.User) {
	c.Set(userKey, user)
	c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), user))
}

func currentUser(c *gin.Context) *model.User {
	v, exists := c.Get(userKey)
	if !exists {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
