package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/glabrego/vibetube-cli/internal/auth"
	"github.com/glabrego/vibetube-cli/internal/storage"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

func integrationService(t *testing.T, ctx context.Context) *Service {
	t.Helper()
	if os.Getenv("VIBETUBE_INTEGRATION") != "1" {
		t.Skip("set VIBETUBE_INTEGRATION=1 to run integration tests")
	}

	username := os.Getenv("VIBETUBE_USERNAME")
	password := os.Getenv("VIBETUBE_PASSWORD")
	if username == "" || password == "" {
		t.Skip("VIBETUBE_USERNAME and VIBETUBE_PASSWORD are required")
	}

	baseURL := os.Getenv("VIBETUBE_API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "vibetube-integration.db"))
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	session, err := auth.NewSession(ctx, repo, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	client := vibetube.NewClient(baseURL, nil, zerolog.Nop())
	svc := NewService(client, session, Options{Logger: zerolog.Nop(), Repo: repo})
	if err := svc.Login(ctx, username, password); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	return svc
}

func TestIntegration_LikeToggleAndLoadMore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	svc := integrationService(t, ctx)

	f := svc.CategoryFeed(nil)
	if err := f.SetQuery(ctx, vibetube.CategoryRandom); err != nil {
		t.Fatalf("SetQuery returned error: %v", err)
	}
	initial := f.State()
	if len(initial.Items) == 0 {
		t.Skip("no videos available to exercise the like toggle")
	}

	w, err := svc.OpenVideo(ctx, initial.Items[0].ID, nil)
	if err != nil {
		t.Fatalf("OpenVideo returned error: %v", err)
	}
	defer w.Close()

	// Restore the account state before the test exits.
	before := w.Like.State()
	defer func() {
		restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer restoreCancel()
		if w.Like.State().Active != before.Active {
			_, _ = w.Like.Toggle(restoreCtx)
		}
	}()

	after, err := w.Like.Toggle(ctx)
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if after.Active == before.Active {
		t.Fatalf("expected like state to change from %v", before.Active)
	}

	if initial.HasMore {
		if err := f.FetchNext(ctx, true); err != nil {
			t.Fatalf("FetchNext returned error: %v", err)
		}
		more := f.State()
		if len(more.Items) < len(initial.Items) {
			t.Fatalf("expected load more size >= initial size, got %d < %d", len(more.Items), len(initial.Items))
		}
		seen := make(map[int64]bool, len(more.Items))
		for _, v := range more.Items {
			if seen[v.ID] {
				t.Fatalf("duplicate video %d after load more", v.ID)
			}
			seen[v.ID] = true
		}
	}
}

func TestIntegration_SearchFindsKnownTitle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	svc := integrationService(t, ctx)

	f := svc.CategoryFeed(nil)
	if err := f.SetQuery(ctx, vibetube.CategoryRandom); err != nil {
		t.Fatalf("SetQuery returned error: %v", err)
	}
	items := f.State().Items
	if len(items) == 0 {
		t.Skip("no videos available to validate search")
	}

	token := searchTokenFromTitle(items[0].Title)
	if token == "" {
		t.Skip("could not derive a stable search token from video title")
	}

	search := svc.SearchFeed(nil)
	if err := search.SetQuery(ctx, token); err != nil {
		t.Fatalf("search SetQuery returned error: %v", err)
	}
	if len(search.State().Items) == 0 {
		t.Fatalf("expected at least one search match for token %q", token)
	}
}

func searchTokenFromTitle(title string) string {
	for _, part := range strings.Fields(strings.ToLower(title)) {
		var b strings.Builder
		for _, r := range part {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		token := b.String()
		if len(token) >= 4 {
			return token
		}
	}
	return ""
}
