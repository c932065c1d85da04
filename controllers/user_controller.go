package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"direct-chat/middlewares"
	"direct-chat/models"
	"direct-chat/services"
	"direct-chat/utils"
)

// UserController handles registration, login and the current user.
type UserController struct {
	users  *services.UserService
	tokens *services.TokenManager
}

// NewUserController creates the controller.
func NewUserController(users *services.UserService, tokens *services.TokenManager) *UserController {
	return &UserController{users: users, tokens: tokens}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates an account and logs it in.
func (uc *UserController) Register(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"fullName"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := uc.users.Register(c.Request.Context(), input.Username, input.Password, input.FullName)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	uc.respondWithToken(c, http.StatusCreated, user)
}

// Login exchanges credentials for a token.
func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := uc.users.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	uc.respondWithToken(c, http.StatusOK, user)
}

// GetUserInfo returns the authenticated user.
func (uc *UserController) GetUserInfo(c *gin.Context) {
	user, err := uc.users.Get(c.Request.Context(), middlewares.CurrentUserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, user)
}

func (uc *UserController) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := uc.tokens.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	utils.RespondSuccess(c, status, AuthResponse{Token: token, User: user})
}
