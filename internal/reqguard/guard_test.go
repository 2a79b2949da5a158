package reqguard

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/glabrego/vibetube-cli/internal/apierr"
)

func TestDo_RejectsOverlappingKey(t *testing.T) {
	g := New(zerolog.Nop())
	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- g.Do(context.Background(), "like:1", func(context.Context) error {
			close(entered)
			<-unblock
			return nil
		})
	}()
	<-entered

	calls := 0
	err := g.Do(context.Background(), "like:1", func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("overlapping call must not run, ran %d times", calls)
	}

	if err := g.Do(context.Background(), "like:2", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("independent key should not be blocked: %v", err)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("first call returned error: %v", err)
	}
	if g.Busy("like:1") {
		t.Fatal("key should be released after settle")
	}
}

func TestDo_ReleasesAfterPanic(t *testing.T) {
	g := New(zerolog.Nop())

	err := g.Do(context.Background(), "feed:music#1", func(context.Context) error {
		panic("decoder exploded")
	})
	if apierr.KindOf(err) != apierr.NetworkOrServerError {
		t.Fatalf("expected panic to surface as network_or_server, got %v", err)
	}
	if g.Busy("feed:music#1") {
		t.Fatal("key must be released after a panic")
	}
}

func TestDo_ClassifiesErrors(t *testing.T) {
	g := New(zerolog.Nop())

	err := g.Do(context.Background(), "k", func(context.Context) error {
		return errors.New("connection reset")
	})
	if apierr.KindOf(err) != apierr.NetworkOrServerError {
		t.Fatalf("expected untyped error to be classified, got %v", err)
	}

	err = g.Do(context.Background(), "k", func(context.Context) error {
		return apierr.FromStatus("subscribe", 400, []byte(`{"detail":"nope"}`))
	})
	if apierr.KindOf(err) != apierr.InvalidOperation {
		t.Fatalf("expected typed error to pass through, got %v", err)
	}
	if g.Busy("k") {
		t.Fatal("key must be released after failure")
	}
}

func TestAcquire_ReleaseIsIdempotent(t *testing.T) {
	g := New(zerolog.Nop())
	release, err := g.Acquire("a")
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	release()
	release()

	again, err := g.Acquire("a")
	if err != nil {
		t.Fatalf("expected key to be free after release: %v", err)
	}
	again()
}
