package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/services"
	"github.com/earshot-fm/earshot/pkg/models"
)

type SessionHandler struct {
	logger      *logrus.Logger
	recommender services.Recommender
	validator   *validator.Validate
}

func NewSessionHandler(logger *logrus.Logger, recommender services.Recommender) *SessionHandler {
	return &SessionHandler{
		logger:      logger,
		recommender: recommender,
		validator:   validator.New(),
	}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	response, err := h.recommender.CreateSession(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", req.UserID).
			Error("Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "SESSION_CREATION_FAILED",
				"message": "Failed to create recommendation session",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, response)
}

func (h *SessionHandler) LoadMore(c *gin.Context) {
	var req models.LoadMoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	response, err := h.recommender.LoadMore(c.Request.Context(), req)
	if err != nil {
		h.respondSessionError(c, req.SessionID, err, "Failed to load more episodes")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *SessionHandler) Engage(c *gin.Context) {
	var req models.EngageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	response, err := h.recommender.Engage(c.Request.Context(), req)
	if err != nil {
		h.respondSessionError(c, req.SessionID, err, "Failed to record engagement")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *SessionHandler) respondSessionError(c *gin.Context, sessionID string, err error, message string) {
	if errors.Is(err, models.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "SESSION_NOT_FOUND",
				"message": "Session does not exist or has expired",
			},
		})
		return
	}

	h.logger.WithError(err).WithField("session_id", sessionID).Error(message)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    "INTERNAL_SERVER_ERROR",
			"message": message,
		},
	})
}
