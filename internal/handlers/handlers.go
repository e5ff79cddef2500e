package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/services"
)

type Handlers struct {
	Health  *HealthHandler
	Session *SessionHandler
}

func New(logger *logrus.Logger, recommender services.Recommender, health *services.HealthService) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(logger, health),
		Session: NewSessionHandler(logger, recommender),
	}
}
