package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justsurfingit/studentva/internal/models"
	"github.com/justsurfingit/studentva/internal/storage"
)

// Notifier tells someone about a new application. attachment may be nil.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, app models.Application, attachment *storage.StagedFile) error
}

// Outcome is the settled result of one notifier.
type Outcome struct {
	Channel  string
	Err      error
	Duration time.Duration
}

// OutcomeObserver receives every settled outcome, e.g. for metrics.
type OutcomeObserver func(channel string, err error)

// DispatchAll runs every notifier concurrently and waits for all of them.
// A failing notifier neither cancels nor delays the others; each outcome is
// returned in the order the notifiers were given. A notifier panic becomes that
// notifier's outcome. A panic elsewhere in a delivery goroutine (naming, the
// observer) is re-raised in the caller once every goroutine has settled.
func DispatchAll(ctx context.Context, app models.Application, attachment *storage.StagedFile, observe OutcomeObserver, notifiers ...Notifier) []Outcome {
	outcomes := make([]Outcome, len(notifiers))

	var (
		mu      sync.Mutex
		escaped *PanicError
	)

	// No errgroup.WithContext: one failure must not cancel the rest.
	var g errgroup.Group
	for i, n := range notifiers {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					mu.Lock()
					if escaped == nil {
						escaped = &PanicError{Value: rec}
					}
					mu.Unlock()
				}
			}()

			name := n.Name()
			start := time.Now()
			err := notifySafely(ctx, n, app, attachment)
			outcomes[i] = Outcome{Channel: name, Err: err, Duration: time.Since(start)}
			if err != nil {
				slog.ErrorContext(ctx, "notification failed", "channel", name, "error", err)
			} else {
				slog.InfoContext(ctx, "notification sent", "channel", name, "duration", time.Since(start))
			}
			if observe != nil {
				observe(name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	if escaped != nil {
		panic(escaped)
	}
	return outcomes
}

func notifySafely(ctx context.Context, n Notifier, app models.Application, attachment *storage.StagedFile) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec}
		}
	}()
	return n.Notify(ctx, app, attachment)
}
