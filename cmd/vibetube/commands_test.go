package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glabrego/vibetube-cli/internal/apierr"
)

func setupCLIEnv(t *testing.T, baseURL string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("VIBETUBE_API_BASE_URL", baseURL)
	t.Setenv("VIBETUBE_DB_PATH", filepath.Join(dir, "vibetube.db"))
	t.Setenv("VIBETUBE_LOG_LEVEL", "off")
	t.Setenv("VIBETUBE_PAGE_SIZE", "2")
	t.Setenv("VIBETUBE_PASSWORD", "")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" && body["password"] != "Secr3t" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"opaque-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] == "taken" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"detail":"Username is already taken"}`))
			return
		}
		_, _ = w.Write([]byte(`{"msg":"creation successful!"}`))
	})
	mux.HandleFunc("/getvideos/music", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = w.Write([]byte(`[{"id":1,"title":"One","views":3},{"id":2,"title":"Two"}]`))
		case "2":
			_, _ = w.Write([]byte(`[{"id":3,"title":"Three"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("/likes/42", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer opaque-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"liked":false,"likes":3}`))
	})
	mux.HandleFunc("/like", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"liked":true,"likes":4}`))
	})
	mux.HandleFunc("/subscribers/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subscribed":false,"subscribers":0,"owner_watching":true}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestCLI_LoginThenLike(t *testing.T) {
	ts := newBackend(t)
	setupCLIEnv(t, ts.URL)

	if _, err := runCLI(t, "like", "42"); !apierr.IsAuth(err) {
		t.Fatalf("expected auth error before login, got %v", err)
	}

	t.Setenv("VIBETUBE_PASSWORD", "pw")
	out, err := runCLI(t, "login", "--username", "ada")
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	if !strings.Contains(out, "Signed in as ada") {
		t.Fatalf("unexpected login output: %q", out)
	}

	out, err = runCLI(t, "like", "42")
	if err != nil {
		t.Fatalf("like returned error: %v", err)
	}
	if !strings.Contains(out, "video 42: liked, 4 likes") {
		t.Fatalf("unexpected like output: %q", out)
	}

	if _, err := runCLI(t, "subscribe", "7"); err == nil || !strings.Contains(err.Error(), "your own channel") {
		t.Fatalf("expected own channel error, got %v", err)
	}

	if _, err := runCLI(t, "logout"); err != nil {
		t.Fatalf("logout returned error: %v", err)
	}
	if _, err := runCLI(t, "like", "42"); !apierr.IsAuth(err) {
		t.Fatalf("expected auth error after logout, got %v", err)
	}
}

func TestCLI_LoginRejectsBadPassword(t *testing.T) {
	ts := newBackend(t)
	setupCLIEnv(t, ts.URL)
	t.Setenv("VIBETUBE_PASSWORD", "wrong")

	if _, err := runCLI(t, "login", "--username", "ada"); !apierr.Is(err, apierr.Unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCLI_Register(t *testing.T) {
	ts := newBackend(t)
	setupCLIEnv(t, ts.URL)

	t.Setenv("VIBETUBE_PASSWORD", "weak")
	if _, err := runCLI(t, "register", "--username", "ada"); !apierr.Is(err, apierr.InvalidOperation) {
		t.Fatalf("expected local validation error, got %v", err)
	}

	t.Setenv("VIBETUBE_PASSWORD", "Secr3t")
	if _, err := runCLI(t, "register", "--username", "taken"); err == nil || apierr.Message(err) != "Username is already taken" {
		t.Fatalf("expected taken username, got %v", err)
	}

	out, err := runCLI(t, "register", "--username", "ada", "--email", "ada@example.com")
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if !strings.Contains(out, "Account ada created, run `vibetube login --username ada`") {
		t.Fatalf("unexpected register output: %q", out)
	}

	out, err = runCLI(t, "register", "--username", "bea", "--login")
	if err != nil {
		t.Fatalf("register --login returned error: %v", err)
	}
	if !strings.Contains(out, "Account bea created and signed in") {
		t.Fatalf("unexpected register --login output: %q", out)
	}
	if out, err := runCLI(t, "like", "42"); err != nil || !strings.Contains(out, "liked") {
		t.Fatalf("expected stored token after register --login, got %q %v", out, err)
	}
}

func TestCLI_FeedPages(t *testing.T) {
	ts := newBackend(t)
	setupCLIEnv(t, ts.URL)

	out, err := runCLI(t, "feed", "music", "--pages", "3")
	if err != nil {
		t.Fatalf("feed returned error: %v", err)
	}
	for _, want := range []string{"One", "Two", "Three", "3 videos, offset 3, end of feed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in feed output, got:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "feed", "music", "--json")
	if err != nil {
		t.Fatalf("feed --json returned error: %v", err)
	}
	var videos []map[string]any
	if err := json.Unmarshal([]byte(out), &videos); err != nil || len(videos) != 2 {
		t.Fatalf("expected 2 JSON videos, got %v (%q)", err, out)
	}

	if _, err := runCLI(t, "feed", "cooking"); err == nil || !strings.Contains(err.Error(), "unknown category") {
		t.Fatalf("expected unknown category error, got %v", err)
	}
}

func TestReadPassword_PipedStdin(t *testing.T) {
	t.Setenv("VIBETUBE_PASSWORD", "")
	pw, err := readPassword(strings.NewReader("s3cret\r\n"), &bytes.Buffer{})
	if err != nil || pw != "s3cret" {
		t.Fatalf("unexpected password %q err=%v", pw, err)
	}

	t.Setenv("VIBETUBE_PASSWORD", "from-env")
	if pw, _ := readPassword(strings.NewReader("ignored\n"), &bytes.Buffer{}); pw != "from-env" {
		t.Fatalf("expected env password, got %q", pw)
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID(" 42 "); err != nil || id != 42 {
		t.Fatalf("unexpected parse: %d %v", id, err)
	}
	for _, raw := range []string{"", "abc", "0", "-3"} {
		if _, err := parseID(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
