package dtos

import (
	"strings"

	"github.com/justsurfingit/studentva/internal/models"
)

// ApplicationForm is bound from multipart, urlencoded or JSON bodies of POST /api/apply.
// Required-field checks happen in the service so the response can name every missing field.
type ApplicationForm struct {
	FullName   string `form:"fullName" json:"fullName"`
	Email      string `form:"email" json:"email"`
	Phone      string `form:"phone" json:"phone"`
	Country    string `form:"country" json:"country"`
	Education  string `form:"education" json:"education"`
	Skills     string `form:"skills" json:"skills"`
	Experience string `form:"experience" json:"experience"`
	Pitch      string `form:"pitch" json:"pitch"`
}

func (f ApplicationForm) ToModel() models.Application {
	return models.Application{
		FullName:   strings.TrimSpace(f.FullName),
		Email:      strings.TrimSpace(f.Email),
		Phone:      strings.TrimSpace(f.Phone),
		Country:    strings.TrimSpace(f.Country),
		Education:  models.Education(strings.TrimSpace(f.Education)),
		Skills:     strings.TrimSpace(f.Skills),
		Experience: strings.TrimSpace(f.Experience),
		Pitch:      strings.TrimSpace(f.Pitch),
	}
}

// ApplyResponse is shown to the submitter as-is.
type ApplyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  HealthServices `json:"services"`
}

type HealthServices struct {
	Email    string `json:"email"`
	Telegram string `json:"telegram"`
}

const (
	StatusConfigured    = "configured"
	StatusNotConfigured = "not configured"
)

func ServiceStatus(configured bool) string {
	if configured {
		return StatusConfigured
	}
	return StatusNotConfigured
}
