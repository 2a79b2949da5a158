package apierr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFromStatus_Classification(t *testing.T) {
	cases := map[int]Kind{
		401: Unauthorized,
		403: Unauthorized,
		400: InvalidOperation,
		404: NotFound,
		500: NetworkOrServerError,
		502: NetworkOrServerError,
	}
	for status, want := range cases {
		if got := FromStatus("op", status, nil).Kind; got != want {
			t.Fatalf("status %d: expected %s, got %s", status, want, got)
		}
	}
}

func TestFromStatus_ExtractsDetail(t *testing.T) {
	err := FromStatus("subscribe", 400, []byte(`{"detail":"You cannot subscribe to yourself"}`))
	if err.Message != "You cannot subscribe to yourself" {
		t.Fatalf("unexpected message: %q", err.Message)
	}
	if got := Message(err); got != "You cannot subscribe to yourself" {
		t.Fatalf("unexpected user message: %q", got)
	}
}

func TestFromStatus_TruncatesPlainBodyOnRuneBoundary(t *testing.T) {
	body := "a" + strings.Repeat("é", 150)
	err := FromStatus("get video", 502, []byte(body))
	if !utf8.ValidString(err.Message) {
		t.Fatalf("message split a rune: %q", err.Message)
	}
	if len(err.Message) != 199 || !strings.HasPrefix(body, err.Message) {
		t.Fatalf("unexpected truncation to %d bytes", len(err.Message))
	}
}

func TestKindOf_WrappedAndUntyped(t *testing.T) {
	wrapped := fmt.Errorf("toggle like: %w", FromStatus("like", 404, nil))
	if KindOf(wrapped) != NotFound {
		t.Fatalf("expected not_found through wrapping, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("boom")) != NetworkOrServerError {
		t.Fatal("expected untyped error to classify as network_or_server")
	}
	if KindOf(nil) != KindNone {
		t.Fatal("expected nil to classify as none")
	}
}

func TestIsAuth(t *testing.T) {
	if !IsAuth(New(AuthRequired, "like", "")) {
		t.Fatal("expected auth_required to be an auth error")
	}
	if !IsAuth(FromStatus("like", 401, nil)) {
		t.Fatal("expected 401 to be an auth error")
	}
	if IsAuth(FromStatus("like", 400, nil)) {
		t.Fatal("did not expect 400 to be an auth error")
	}
}

func TestClassify_KeepsTypedErrors(t *testing.T) {
	orig := FromStatus("like", 403, nil)
	if got := Classify("other", fmt.Errorf("wrap: %w", orig)); got != orig {
		t.Fatalf("expected original typed error, got %v", got)
	}
	got := Classify("feed", errors.New("dial tcp: refused"))
	if got.Kind != NetworkOrServerError || got.Op != "feed" {
		t.Fatalf("unexpected classification: %+v", got)
	}
}
