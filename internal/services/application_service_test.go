package services

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/justsurfingit/studentva/internal/models"
	"github.com/justsurfingit/studentva/internal/storage"
)

func uploadHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("cv", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	_, header, err := req.FormFile("cv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	return header
}

func validApplication() models.Application {
	return models.Application{FullName: "Jane Doe", Email: "jane@example.com", Country: "Canada", Pitch: "I am reliable"}
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func TestSubmitMissingFieldsNamesThem(t *testing.T) {
	email := &fakeNotifier{name: "email"}
	svc := NewApplicationService(storage.NewStager(t.TempDir(), 1024), nil, email)

	res := svc.Submit(context.Background(), models.Application{Email: "jane@example.com"}, nil)
	if res.Status != http.StatusBadRequest || res.Success {
		t.Fatalf("expected 400 failure, got %+v", res)
	}
	if res.Message != "Missing required fields: fullName, country, pitch" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if email.calls != 0 {
		t.Fatalf("notifiers must not run on validation failure")
	}
}

func TestSubmitRejectsInvalidEmail(t *testing.T) {
	svc := NewApplicationService(storage.NewStager(t.TempDir(), 1024), nil)
	app := validApplication()
	app.Email = "not-an-email"

	res := svc.Submit(context.Background(), app, nil)
	if res.Status != http.StatusBadRequest || res.Message != MessageInvalidEmail {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmitSucceedsWhenNotifiersFail(t *testing.T) {
	email := &fakeNotifier{name: "email", err: errors.New("smtp down")}
	telegram := &fakeNotifier{name: "telegram", err: ErrTelegramAPI}
	svc := NewApplicationService(storage.NewStager(t.TempDir(), 1024), nil, email, telegram)

	res := svc.Submit(context.Background(), validApplication(), nil)
	if res.Status != http.StatusOK || !res.Success || res.Message != MessageSubmitted {
		t.Fatalf("unexpected result %+v", res)
	}
	if email.calls != 1 || telegram.calls != 1 {
		t.Fatalf("expected both notifiers to be called once")
	}
	if email.fileSeen {
		t.Fatalf("expected no attachment")
	}
}

func TestSubmitRemovesStagedAttachmentAfterNotifying(t *testing.T) {
	dir := t.TempDir()
	var stagedPath string
	email := &fakeNotifier{name: "email", onNotify: func(a *storage.StagedFile) {
		stagedPath = a.Path
		if _, err := os.Stat(a.Path); err != nil {
			t.Errorf("expected attachment to exist during notify: %v", err)
		}
	}}
	svc := NewApplicationService(storage.NewStager(dir, 1024), nil, email)

	res := svc.Submit(context.Background(), validApplication(), uploadHeader(t, "cv.pdf", []byte("%PDF-1.4")))
	if !res.Success {
		t.Fatalf("unexpected result %+v", res)
	}
	if stagedPath == "" {
		t.Fatalf("expected email notifier to receive the attachment")
	}
	if _, err := os.Stat(stagedPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staged file removed, got %v", err)
	}
	if n := dirEntries(t, dir); n != 0 {
		t.Fatalf("expected empty upload dir, found %d entries", n)
	}
}

func TestSubmitDoesNotStageOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	svc := NewApplicationService(storage.NewStager(dir, 1024), nil)
	app := validApplication()
	app.Pitch = ""

	res := svc.Submit(context.Background(), app, uploadHeader(t, "cv.docx", []byte("doc")))
	if res.Status != http.StatusBadRequest {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := dirEntries(t, dir); n != 0 {
		t.Fatalf("expected nothing staged, found %d entries", n)
	}
}

func TestSubmitRejectsDisallowedAttachment(t *testing.T) {
	svc := NewApplicationService(storage.NewStager(t.TempDir(), 1024), nil)
	res := svc.Submit(context.Background(), validApplication(), uploadHeader(t, "cv.exe", []byte("MZ")))
	if res.Status != http.StatusBadRequest || res.Message != MessageFileType {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmitRejectsOversizedAttachment(t *testing.T) {
	svc := NewApplicationService(storage.NewStager(t.TempDir(), 5*1024*1024), nil)
	big := bytes.Repeat([]byte("a"), 5*1024*1024+1)
	res := svc.Submit(context.Background(), validApplication(), uploadHeader(t, "cv.pdf", big))
	if res.Status != http.StatusBadRequest || res.Message != "File too large. Maximum size is 5MB." {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmitRecoversIntoGenericFailure(t *testing.T) {
	svc := NewApplicationService(nil, nil)
	res := svc.Submit(context.Background(), validApplication(), uploadHeader(t, "cv.pdf", []byte("%PDF")))
	if res.Status != http.StatusInternalServerError || res.Message != MessageInternal {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmitNotifiesDespiteCancelledRequest(t *testing.T) {
	telegram := &fakeNotifier{name: "telegram"}
	svc := NewApplicationService(storage.NewStager(t.TempDir(), 1024), nil, telegram)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := svc.Submit(ctx, validApplication(), nil)
	if !res.Success || telegram.ctxErr != nil {
		t.Fatalf("expected delivery context to ignore client cancellation, res=%+v ctxErr=%v", res, telegram.ctxErr)
	}
	if !strings.Contains(telegram.lastApp.FullName, "Jane") {
		t.Fatalf("expected application to reach notifier")
	}
}

func TestSubmitReleasesAttachmentWhenDeliveryPanics(t *testing.T) {
	dir := t.TempDir()
	email := &fakeNotifier{name: "email"}
	observe := func(string, error) { panic("observer boom") }
	svc := NewApplicationService(storage.NewStager(dir, 1024), observe, email)

	res := svc.Submit(context.Background(), validApplication(), uploadHeader(t, "cv.pdf", []byte("%PDF-1.4")))
	if res.Status != http.StatusInternalServerError || res.Success || res.Message != MessageInternal {
		t.Fatalf("expected generic 500, got %+v", res)
	}
	if email.calls != 1 || !email.fileSeen {
		t.Fatalf("expected the notifier to have run with the attachment")
	}
	if n := dirEntries(t, dir); n != 0 {
		t.Fatalf("expected staged file released, found %d entries", n)
	}
}
