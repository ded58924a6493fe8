package storage

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("cv", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest("POST", "/", &body)
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

func TestCheckRejectsDisallowedExtension(t *testing.T) {
	s := NewStager(t.TempDir(), 1024)
	err := s.Check(fileHeader(t, "photo.png", []byte("png")))
	if !errors.Is(err, ErrFileType) {
		t.Fatalf("expected ErrFileType, got %v", err)
	}
}

func TestCheckAcceptsUppercaseExtension(t *testing.T) {
	s := NewStager(t.TempDir(), 1024)
	if err := s.Check(fileHeader(t, "CV.PDF", []byte("%PDF-1.4"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckRejectsOversizedFile(t *testing.T) {
	s := NewStager(t.TempDir(), 8)
	err := s.Check(fileHeader(t, "cv.pdf", bytes.Repeat([]byte("a"), 9)))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestStageWritesAndReleaseRemoves(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s := NewStager(dir, 1024)
	staged, err := s.Stage(fileHeader(t, "../My CV.pdf", []byte("%PDF-1.4 hello")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(staged.Path) != dir {
		t.Fatalf("expected file under %s, got %s", dir, staged.Path)
	}
	if staged.OriginalName != "My_CV.pdf" {
		t.Fatalf("unexpected sanitized name %q", staged.OriginalName)
	}
	if !strings.HasSuffix(staged.Path, "-My_CV.pdf") {
		t.Fatalf("unexpected staged name %q", staged.Path)
	}
	if staged.ContentType != "application/pdf" {
		t.Fatalf("expected sniffed pdf content type, got %q", staged.ContentType)
	}
	if _, err := os.Stat(staged.Path); err != nil {
		t.Fatalf("expected staged file to exist: %v", err)
	}

	staged.Release()
	if _, err := os.Stat(staged.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staged file to be removed, got %v", err)
	}
	staged.Release()
}

func TestReleaseToleratesMissingFile(t *testing.T) {
	staged := &StagedFile{Path: filepath.Join(t.TempDir(), "gone.pdf")}
	staged.Release()

	var nilFile *StagedFile
	nilFile.Release()
}
