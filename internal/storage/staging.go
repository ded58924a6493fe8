// Package storage stages uploaded attachments on local disk for the length of one request.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrFileTooLarge = errors.New("attachment exceeds size limit")
	ErrFileType     = errors.New("attachment type not allowed")
)

var DefaultAllowedExt = []string{".pdf", ".doc", ".docx"}

// stagedNamePattern matches names built by stagedName and nothing else in a shared directory.
var stagedNamePattern = regexp.MustCompile(`^[0-9]+-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}-[A-Za-z0-9._-]+$`)

// stagedName is <unixms>-<uuid>-<sanitized original name>.
func stagedName(now time.Time, sanitized string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString(), sanitized)
}

func isStagedName(name string) bool {
	return stagedNamePattern.MatchString(name)
}

// Stager writes uploads into Dir for the lifetime of one submission.
type Stager struct {
	Dir        string
	MaxBytes   int64
	AllowedExt []string
}

// NewStager accepts the default CV extensions up to maxBytes.
func NewStager(dir string, maxBytes int64) *Stager {
	return &Stager{Dir: dir, MaxBytes: maxBytes, AllowedExt: DefaultAllowedExt}
}

// Check validates name and declared size without touching the disk.
func (s *Stager) Check(header *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, candidate := range s.AllowedExt {
		if ext == candidate {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %q", ErrFileType, ext)
	}
	if header.Size > s.MaxBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, header.Size, s.MaxBytes)
	}
	return nil
}

// Stage copies the upload into Dir. The caller must Release the result.
func (s *Stager) Stage(header *multipart.FileHeader) (*StagedFile, error) {
	if err := s.Check(header); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	original := sanitizeName(header.Filename)
	name := stagedName(time.Now(), original)
	path := filepath.Join(s.Dir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	staged := &StagedFile{Path: path, OriginalName: original}

	// Declared sizes can lie; cap the copy as well.
	written, err := io.Copy(dst, io.LimitReader(src, s.MaxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.MaxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, s.MaxBytes)
	}
	if err != nil {
		staged.Release()
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	staged.Size = written

	if mt, err := mimetype.DetectFile(path); err == nil {
		staged.ContentType = mt.String()
	} else {
		staged.ContentType = "application/octet-stream"
	}
	return staged, nil
}

// StagedFile is one upload on disk; OriginalName is the sanitized client filename.
type StagedFile struct {
	Path         string
	OriginalName string
	ContentType  string
	Size         int64

	once sync.Once
}

// Release deletes the staged file. It is safe to call more than once and
// on a file that is already gone.
func (f *StagedFile) Release() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		if _, err := os.Stat(f.Path); errors.Is(err, os.ErrNotExist) {
			return
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Error("staged file cleanup failed", "path", f.Path, "error", err)
		}
	})
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		return "attachment"
	}
	return out
}
