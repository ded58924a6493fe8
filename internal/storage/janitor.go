package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweep removes staged files in Dir last modified before now-olderThan.
// They can only be left over from a process that died mid-request. Files whose
// names Stage could not have produced are never touched.
func (s *Stager) Sweep(now time.Time, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}
	cutoff := now.Add(-olderThan)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() || !isStagedName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// StartJanitor sweeps once immediately and then on schedule (cron syntax or
// descriptors like "@every 10m"). Stop the returned cron on shutdown.
func StartJanitor(s *Stager, schedule string, olderThan time.Duration) (*cron.Cron, error) {
	sweep := func() {
		n, err := s.Sweep(time.Now(), olderThan)
		if err != nil {
			slog.Error("upload sweep failed", "dir", s.Dir, "error", err)
			return
		}
		if n > 0 {
			slog.Info("removed orphaned uploads", "dir", s.Dir, "count", n)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, sweep); err != nil {
		return nil, fmt.Errorf("upload sweep schedule %q: %w", schedule, err)
	}
	sweep()
	c.Start()
	return c, nil
}
