package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/utils"
)

// UserHandler exposes the identity and ranking scope membership the engine
// sees for a user.
type UserHandler struct {
	BaseHandler
	identity repositories.IdentityRepository
}

func NewUserHandler(identity repositories.IdentityRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		identity:    identity,
	}
}

// GetCurrentUser returns the authenticated caller
// @Summary Get current user
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	user, err := GetUserFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, CodeUnauthorized, "User not authenticated", nil)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser looks a user up in the identity provider
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		h.respondError(c, http.StatusBadRequest, CodeValidation, "Invalid id", "ID cannot be empty")
		return
	}

	h.LogRequest(c, "Getting user", "user_id", userID)
	user, err := h.identity.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
