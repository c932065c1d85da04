package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"direct-chat/middlewares"
	"direct-chat/services"
	"direct-chat/utils"
)

// MessageController serves conversation history, sends, and the sidebar.
type MessageController struct {
	messages *services.MessageService
	users    *services.UserService
	log      zerolog.Logger
}

// NewMessageController creates the controller.
func NewMessageController(messages *services.MessageService, users *services.UserService, log zerolog.Logger) *MessageController {
	return &MessageController{messages: messages, users: users, log: log}
}

// maxSendBodyBytes fits a base64 encoded MaxImageBytes image plus the
// JSON envelope and text.
const maxSendBodyBytes = services.MaxImageBytes*4/3 + 64<<10

type sendMessageInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// GetUsersForSidebar lists every user except the caller.
func (mc *MessageController) GetUsersForSidebar(c *gin.Context) {
	users, err := mc.users.ListOthers(c.Request.Context(), middlewares.CurrentUserID(c))
	if err != nil {
		mc.log.Error().Err(err).Msg("error fetching sidebar users")
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, users)
}

// GetMessages returns the caller's conversation with the user in the path.
func (mc *MessageController) GetMessages(c *gin.Context) {
	messages, err := mc.messages.History(c.Request.Context(), middlewares.CurrentUserID(c), c.Param("id"))
	if err != nil {
		mc.log.Error().Err(err).Str("other_id", c.Param("id")).Msg("error fetching messages")
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, messages)
}

// SendMessage stores a message from the caller to the user in the path
// and returns the stored record.
func (mc *MessageController) SendMessage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSendBodyBytes)

	var input sendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Message too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	message, err := mc.messages.Send(c.Request.Context(), services.SendInput{
		SenderID:   middlewares.CurrentUserID(c),
		ReceiverID: c.Param("id"),
		Text:       input.Text,
		Image:      input.Image,
	})
	if err != nil {
		if status, _ := utils.StatusFor(err); status >= http.StatusInternalServerError {
			mc.log.Error().Err(err).Str("receiver_id", c.Param("id")).Msg("error sending message")
		}
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, message)
}
