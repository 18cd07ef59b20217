package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lvdashuaibi/votely/internal/apperr"
	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/service"
)

type registerRequest struct {
	FullName    string `json:"fullName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	PhoneNumber string `json:"phoneNumber"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authPayload 用户信息和 token 放在同一层
type authPayload struct {
	*model.User
	Token string `json:"token"`
}

// Register POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, apperr.Validation("Please provide all required fields"))
		return
	}
	user, token, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, "User registered successfully", authPayload{User: user, Token: token})
}

// Login POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, errBadBody)
		return
	}
	user, token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Login successful", authPayload{User: user, Token: token})
}

// Logout token 无状态，客户端丢弃即可
func (h *Handlers) Logout(c *gin.Context) {
	ok(c, http.StatusOK, "Logout successfully", nil)
}

func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Users retrieved successfully", users)
}

// Me GET /api/users/me
func (h *Handlers) Me(c *gin.Context) {
	ok(c, http.StatusOK, "User retrieved successfully", currentUser(c))
}
