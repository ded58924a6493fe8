package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/justsurfingit/studentva/internal/dtos"
	"github.com/justsurfingit/studentva/internal/metrics"
	"github.com/justsurfingit/studentva/internal/services"
)

const (
	attachmentField    = "cv"
	MessageInvalidForm = "Invalid form submission"
)

// ApplicationHandler serves POST /api/apply.
type ApplicationHandler struct {
	Service *services.ApplicationService
	Metrics *metrics.Metrics
	// MaxBodyBytes caps the whole request body, attachment included.
	MaxBodyBytes int64
}

func NewApplicationHandler(svc *services.ApplicationService, m *metrics.Metrics, maxUploadBytes int64) *ApplicationHandler {
	return &ApplicationHandler{Service: svc, Metrics: m, MaxBodyBytes: maxUploadBytes + 1<<20}
}

// Apply handles POST /api/apply.
func (h *ApplicationHandler) Apply(c *gin.Context) {
	if h.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBodyBytes)
	}

	var form dtos.ApplicationForm
	if err := c.ShouldBind(&form); err != nil {
		h.rejectBody(c, err)
		return
	}

	var file *multipart.FileHeader
	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		header, err := c.FormFile(attachmentField)
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			h.rejectBody(c, err)
			return
		default:
			file = header
		}
	}

	res := h.Service.Submit(c.Request.Context(), form.ToModel(), file)
	h.respond(c, res.Status, res.Message)
}

func (h *ApplicationHandler) rejectBody(c *gin.Context, err error) {
	if bodyTooLarge(err) {
		h.respond(c, http.StatusBadRequest, h.Service.FileTooLargeMessage())
		return
	}
	slog.WarnContext(c.Request.Context(), "unreadable application body", "error", err)
	h.respond(c, http.StatusBadRequest, MessageInvalidForm)
}

func (h *ApplicationHandler) respond(c *gin.Context, status int, message string) {
	h.Metrics.ObserveSubmission(status)
	c.JSON(status, dtos.ApplyResponse{Success: status == http.StatusOK, Message: message})
}

func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// Some multipart paths flatten the error to text.
	return strings.Contains(err.Error(), "request body too large")
}
