package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/studentva/internal/config"
	"github.com/justsurfingit/studentva/internal/dtos"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// HealthHandler reports liveness and which notification channels have credentials.
// It never contacts the channels.
type HealthHandler struct {
	Email    config.EmailConfig
	Telegram config.TelegramConfig
	Now      func() time.Time
}

func NewHealthHandler(email config.EmailConfig, telegram config.TelegramConfig) *HealthHandler {
	return &HealthHandler{Email: email, Telegram: telegram, Now: time.Now}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dtos.HealthResponse{
		Status:    "OK",
		Timestamp: h.Now().UTC().Format(timestampLayout),
		Services: dtos.HealthServices{
			Email:    dtos.ServiceStatus(h.Email.Configured()),
			Telegram: dtos.ServiceStatus(h.Telegram.Configured()),
		},
	})
}
