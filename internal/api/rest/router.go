package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/auth"
)

// RouterConfig 路由依赖，Realtime 和 GraphQL 为 nil 时不挂载
type RouterConfig struct {
	Handlers     *Handlers
	Auth         *auth.Authenticator
	Realtime     http.Handler
	RealtimePath string
	GraphQL      http.Handler
	GraphQLPath  string
	Logger       *zap.Logger
}

// NewRouter 创建 gin 路由
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	h := cfg.Handlers

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		ok(c, http.StatusOK, "Server is running", nil)
	})
	if cfg.Realtime != nil {
		r.GET(cfg.RealtimePath, gin.WrapH(cfg.Realtime))
	}
	if cfg.GraphQL != nil {
		r.POST(cfg.GraphQLPath, Identify(cfg.Auth, logger), gin.WrapH(cfg.GraphQL))
	}

	protect := Protect(cfg.Auth, logger)
	api := r.Group("/api")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Register)
		authRoutes.POST("/login", h.Login)
		authRoutes.POST("/logout", h.Logout)
	}

	users := api.Group("/users", protect)
	{
		users.GET("", h.ListUsers)
		users.GET("/me", h.Me)
	}

	elections := api.Group("/elections")
	{
		elections.GET("/:id/candidates", h.ElectionCandidates)

		elections.Use(protect)
		elections.GET("", h.ListElections)
		elections.POST("", h.CreateElection)
		elections.GET("/:id", h.GetElection)
		elections.PUT("/:id", h.UpdateElection)
		elections.DELETE("/:id", h.DeleteElection)
		elections.POST("/:id/vote", h.VoteInElection)
		elections.GET("/:id/results", h.ElectionResults)
	}

	candidates := api.Group("/candidates")
	{
		candidates.GET("", h.ListCandidates)
		candidates.GET("/:id", h.GetCandidate)

		candidates.Use(protect)
		candidates.POST("", h.CreateCandidate)
		candidates.PUT("/:id", h.UpdateCandidate)
		candidates.DELETE("/:id", h.DeleteCandidate)
	}

	votes := api.Group("/votes", protect)
	{
		votes.GET("", h.ListVotes)
		votes.GET("/me", h.MyVotes)
		votes.GET("/:id", h.GetVote)
		votes.POST("", h.CastVote)
		votes.DELETE("/:id", h.DeleteVote)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Status: false, Message: "Not Found - " + c.Request.URL.Path})
	})
	return r
}
