package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/justsurfingit/studentva/internal/models"
	"github.com/justsurfingit/studentva/internal/storage"
)

type fakeNotifier struct {
	name  string
	err   error
	delay time.Duration
	panic bool

	mu       sync.Mutex
	calls    int
	ctxErr   error
	lastApp  models.Application
	fileSeen bool
	onNotify func(attachment *storage.StagedFile)
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(ctx context.Context, app models.Application, attachment *storage.StagedFile) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls++
	f.ctxErr = ctx.Err()
	f.lastApp = app
	f.fileSeen = attachment != nil
	f.mu.Unlock()
	if f.onNotify != nil {
		f.onNotify(attachment)
	}
	if f.panic {
		panic("boom")
	}
	return f.err
}

func TestDispatchAllWaitsForEveryNotifier(t *testing.T) {
	failing := &fakeNotifier{name: "email", err: errors.New("smtp down")}
	slow := &fakeNotifier{name: "telegram", delay: 50 * time.Millisecond}

	observed := map[string]error{}
	var mu sync.Mutex
	observe := func(channel string, err error) {
		mu.Lock()
		observed[channel] = err
		mu.Unlock()
	}

	outcomes := DispatchAll(context.Background(), models.Application{FullName: "Jane"}, nil, observe, failing, slow)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Channel != "email" || outcomes[0].Err == nil {
		t.Fatalf("expected email failure first, got %+v", outcomes[0])
	}
	if outcomes[1].Channel != "telegram" || outcomes[1].Err != nil {
		t.Fatalf("expected telegram success second, got %+v", outcomes[1])
	}
	if slow.calls != 1 || slow.ctxErr != nil {
		t.Fatalf("expected slow notifier to run uncancelled, calls=%d ctxErr=%v", slow.calls, slow.ctxErr)
	}
	if len(observed) != 2 || observed["email"] == nil || observed["telegram"] != nil {
		t.Fatalf("unexpected observed outcomes %v", observed)
	}
}

func TestDispatchAllRecoversNotifierPanic(t *testing.T) {
	panicking := &fakeNotifier{name: "email", panic: true}
	ok := &fakeNotifier{name: "telegram"}

	outcomes := DispatchAll(context.Background(), models.Application{}, nil, nil, panicking, ok)
	var pe *PanicError
	if !errors.As(outcomes[0].Err, &pe) {
		t.Fatalf("expected PanicError, got %v", outcomes[0].Err)
	}
	if outcomes[1].Err != nil || ok.calls != 1 {
		t.Fatalf("expected second notifier to succeed")
	}
}

func TestDispatchAllReraisesObserverPanicAfterSettling(t *testing.T) {
	slow := &fakeNotifier{name: "telegram", delay: 30 * time.Millisecond}
	fast := &fakeNotifier{name: "email"}
	observe := func(channel string, _ error) {
		if channel == "email" {
			panic("observer boom")
		}
	}

	defer func() {
		rec := recover()
		pe, ok := rec.(*PanicError)
		if !ok || pe.Value != "observer boom" {
			t.Fatalf("expected re-raised PanicError, got %v", rec)
		}
		if slow.calls != 1 {
			t.Fatalf("expected the slow notifier to settle before the panic surfaced")
		}
	}()
	DispatchAll(context.Background(), models.Application{}, nil, observe, fast, slow)
	t.Fatalf("expected DispatchAll to panic")
}
