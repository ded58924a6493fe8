package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/justsurfingit/studentva/internal/models"
	"github.com/justsurfingit/studentva/internal/storage"
)

const (
	MessageSubmitted    = "Application submitted successfully! We will review and get back to you within 2-3 business days."
	MessageInvalidEmail = "Invalid email format"
	MessageFileType     = "Invalid file type. Only PDF, DOC, and DOCX files are allowed."
	MessageInternal     = "An error occurred while processing your application. Please try again later."
)

// Result is the caller-visible outcome. It depends only on input validity,
// never on whether a notification was delivered.
type Result struct {
	Status  int
	Success bool
	Message string
}

func fail(status int, message string) Result {
	return Result{Status: status, Success: false, Message: message}
}

// ApplicationService runs one submission end to end. It is safe for concurrent use.
type ApplicationService struct {
	stager    *storage.Stager
	notifiers []Notifier
	observe   OutcomeObserver
}

// NewApplicationService wires the stager and notifiers. observe may be nil.
func NewApplicationService(stager *storage.Stager, observe OutcomeObserver, notifiers ...Notifier) *ApplicationService {
	return &ApplicationService{stager: stager, notifiers: notifiers, observe: observe}
}

// FileTooLargeMessage is shared with the handler, which can hit the body cap first.
func (s *ApplicationService) FileTooLargeMessage() string {
	const mib = 1024 * 1024
	if s.stager.MaxBytes%mib == 0 {
		return fmt.Sprintf("File too large. Maximum size is %dMB.", s.stager.MaxBytes/mib)
	}
	return fmt.Sprintf("File too large. Maximum size is %d bytes.", s.stager.MaxBytes)
}

// Submit validates the application, stages the optional CV, notifies every
// collaborator and removes the staged file before returning.
func (s *ApplicationService) Submit(ctx context.Context, app models.Application, file *multipart.FileHeader) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			pe, ok := rec.(*PanicError)
			if !ok {
				pe = &PanicError{Value: rec}
			}
			slog.ErrorContext(ctx, "application pipeline panicked", "error", pe)
			res = fail(http.StatusInternalServerError, MessageInternal)
		}
	}()

	if file != nil {
		if err := s.stager.Check(file); err != nil {
			return s.attachmentFailure(ctx, err)
		}
	}
	if missing := app.MissingFields(); len(missing) > 0 {
		return fail(http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
	}
	if !models.ValidEmail(app.Email) {
		return fail(http.StatusBadRequest, MessageInvalidEmail)
	}

	var staged *storage.StagedFile
	if file != nil {
		var err error
		staged, err = s.stager.Stage(file)
		if err != nil {
			return s.attachmentFailure(ctx, err)
		}
		defer staged.Release()
	}

	// Delivery is best-effort and outlives a client that hangs up.
	DispatchAll(context.WithoutCancel(ctx), app, staged, s.observe, s.notifiers...)

	return Result{Status: http.StatusOK, Success: true, Message: MessageSubmitted}
}

func (s *ApplicationService) attachmentFailure(ctx context.Context, err error) Result {
	switch {
	case errors.Is(err, storage.ErrFileType):
		return fail(http.StatusBadRequest, MessageFileType)
	case errors.Is(err, storage.ErrFileTooLarge):
		return fail(http.StatusBadRequest, s.FileTooLargeMessage())
	default:
		slog.ErrorContext(ctx, "staging attachment failed", "error", err)
		return fail(http.StatusInternalServerError, MessageInternal)
	}
}
