package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"memeshop/internal/config"
	"memeshop/internal/journal"
	"memeshop/internal/logging"
	"memeshop/internal/pipeline"
	"memeshop/internal/queue"
	"memeshop/internal/services"
	"memeshop/internal/testsupport"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeAPIs serves every external API the pipeline talks to from one router.
type fakeAPIs struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	created       []map[string]any
	tweets        int
	bskyPosts     int
	deleted       []string
	failTweets    bool
	orderQuantity int
	productHandle string
}

func newFakeAPIs(t *testing.T) *fakeAPIs {
	t.Helper()
	f := &fakeAPIs{t: t}
	f.srv = httptest.NewServer(f.router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPIs) router() http.Handler {
	r := chi.NewRouter()

	// Reddit.
	r.Post("/api/v1/access_token", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"access_token": "reddit-token", "token_type": "bearer", "expires_in": 3600})
	})
	r.Get("/r/{sub}/{sort}", func(w http.ResponseWriter, _ *http.Request) {
		post := map[string]any{
			"id":        "abc123",
			"title":     "Cat Meme!! #1",
			"permalink": "/r/memes/comments/abc123/cat_meme/",
			"url":       f.srv.URL + "/i/cat.png",
		}
		writeJSON(w, map[string]any{"kind": "Listing", "data": map[string]any{
			"children": []any{map[string]any{"kind": "t3", "data": post}},
		}})
	})
	r.Get("/comments/{id}", func(w http.ResponseWriter, _ *http.Request) {
		comments := map[string]any{"kind": "Listing", "data": map[string]any{"children": []any{
			map[string]any{"kind": "t1", "data": map[string]any{"body": "this cat is \"exactly\" me"}},
		}}}
		writeJSON(w, []any{map[string]any{"kind": "Listing", "data": map[string]any{}}, comments})
	})
	r.Get("/i/cat.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(testsupport.PNG)
	})

	// Printify.
	r.Post("/v1/uploads/images.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"id": "img-1"})
	})
	r.Post("/v1/shops/{shop}/products.json", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			f.t.Errorf("decode product: %v", err)
		}
		f.mu.Lock()
		f.created = append(f.created, body)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"id": "prod-1", "title": body["title"]})
	})
	r.Post("/v1/shops/{shop}/products/{id}/publish.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{})
	})
	r.Get("/v1/shops/{shop}/products/{file}", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSuffix(chi.URLParam(req, "file"), ".json")
		writeJSON(w, map[string]any{"id": id, "external": map[string]any{"id": "gid://shopify/Product/77", "handle": f.productHandle}})
	})
	r.Delete("/v1/shops/{shop}/products/{file}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, strings.TrimSuffix(chi.URLParam(req, "file"), ".json"))
		f.mu.Unlock()
		writeJSON(w, map[string]any{})
	})

	// Shopify.
	r.Get("/admin/api/{version}/orders.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"orders": []any{
			map[string]any{"line_items": []any{map[string]any{"product_id": 77, "quantity": f.orderQuantity}}},
		}})
	})

	// Twitter.
	r.Post("/1.1/media/upload.json", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.Copy(io.Discard, req.Body)
		writeJSON(w, map[string]any{"media_id_string": "m-1"})
	})
	r.Post("/2/tweets", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.tweets++
		fail := f.failTweets
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"data": map[string]any{"id": "1790"}})
	})

	// Bluesky.
	r.Post("/xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"accessJwt": "opaque", "did": "did:plc:abc", "handle": "memes.bsky.social"})
	})
	r.Post("/xrpc/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.Copy(io.Discard, req.Body)
		writeJSON(w, map[string]any{"blob": map[string]any{"$type": "blob", "ref": map[string]any{"$link": "bafy"}, "mimeType": "image/png", "size": 10}})
	})
	r.Post("/xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.Copy(io.Discard, req.Body)
		f.mu.Lock()
		f.bskyPosts++
		f.mu.Unlock()
		writeJSON(w, map[string]any{"uri": "at://did:plc:abc/app.bsky.feed.post/3kabc", "cid": "bafyrei"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func newTestConfig(t *testing.T, apis *fakeAPIs) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithEndpoints(apis.srv.URL),
		testsupport.WithSubreddits("memes"),
		testsupport.WithChannels("twitter", "bluesky"),
	)
	cfg.Reddit.TitleSuffix = ""
	cfg.Reddit.Limit = 1
	return cfg
}

type recordedSleeps struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func newRunner(cfg *config.Config, sleeps *recordedSleeps) *pipeline.Runner {
	return pipeline.New(cfg, logging.NewNop(),
		pipeline.WithSleeper(sleeps.sleep),
		pipeline.WithClock(func() time.Time { return fixedNow }),
	)
}

func TestRunEndToEnd(t *testing.T) {
	apis := newFakeAPIs(t)
	cfg := newTestConfig(t, apis)

	report, err := newRunner(cfg, &recordedSleeps{}).Execute(context.Background(), pipeline.CommandRun, pipeline.ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Summary.Acquired != 1 || report.Summary.Published != 1 || report.Summary.Posted != 2 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}

	info, err := os.Stat(cfg.Paths.IntakeFile)
	if err != nil {
		t.Fatalf("stat intake: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("intake should be empty after the run, size %d", info.Size())
	}

	records := testsupport.MustLoad(t, queue.NewStore(cfg.Paths.ProcessedFile))
	if len(records) != 1 {
		t.Fatalf("expected 1 processed record, got %d", len(records))
	}
	rec := records[0]
	if rec.ListingID == nil || *rec.ListingID != "prod-1" {
		t.Fatalf("unexpected listing id %v", rec.ListingID)
	}
	wantURL := "https://" + cfg.Shopify.Domain + "/products/cat-meme-1"
	if rec.StorefrontURL == nil || *rec.StorefrontURL != wantURL {
		t.Fatalf("storefront url = %v, want %s", rec.StorefrontURL, wantURL)
	}
	if rec.CreatedAt == nil || *rec.CreatedAt != "2024-06-01" {
		t.Fatalf("unexpected created_at %v", rec.CreatedAt)
	}
	if got := rec.ChannelURL("twitter"); got != "https://twitter.com/i/web/status/1790" {
		t.Fatalf("unexpected twitter url %q", got)
	}
	if got := rec.ChannelURL("bluesky"); got != "https://bsky.app/profile/memes.bsky.social/post/3kabc" {
		t.Fatalf("unexpected bluesky url %q", got)
	}
	if _, err := os.Stat(rec.LocalPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("asset should be deleted once every channel posted, stat err %v", err)
	}
	if !strings.Contains(rec.Description, "this cat is exactly me") {
		t.Fatalf("description should carry the cleaned comment, got %q", rec.Description)
	}

	j := testsupport.MustOpenJournal(t, cfg)
	run, err := j.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != journal.RunSucceeded || run.Command != pipeline.CommandRun {
		t.Fatalf("unexpected run %+v", run)
	}
	attempts, err := j.AttemptsForRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("AttemptsForRecord: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected publish + two channel attempts, got %d", len(attempts))
	}
	if _, err := os.Stat(report.LogPath); err != nil {
		t.Fatalf("run log missing: %v", err)
	}
}

func TestRunIsIdempotentOnSecondInvocation(t *testing.T) {
	apis := newFakeAPIs(t)
	cfg := newTestConfig(t, apis)
	runner := newRunner(cfg, &recordedSleeps{})

	if _, err := runner.Execute(context.Background(), pipeline.CommandRun, pipeline.ExecuteOptions{}); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	apis.mu.Lock()
	created := len(apis.created)
	apis.mu.Unlock()

	report, err := runner.Execute(context.Background(), pipeline.CommandPublish, pipeline.ExecuteOptions{})
	if err != nil {
		t.Fatalf("publish Execute: %v", err)
	}
	if report.Publish.Published != 0 {
		t.Fatalf("listed records must not be published again, got %+v", report.Publish)
	}
	apis.mu.Lock()
	defer apis.mu.Unlock()
	if len(apis.created) != created {
		t.Fatalf("publish made %d extra create calls", len(apis.created)-created)
	}
}

func TestRunExhaustedChannelDeletesAssetAndStillTriesRest(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.failTweets = true
	cfg := newTestConfig(t, apis)
	cfg.Distribution.BaseDelayMS = 1000
	sleeps := &recordedSleeps{}

	report, err := newRunner(cfg, sleeps).Execute(context.Background(), pipeline.CommandRun, pipeline.ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Bluesky is still attempted; it cannot read the deleted asset and
	// exhausts as well without failing the run.
	if report.Summary.Exhausted != 2 || report.Summary.Posted != 0 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, time.Second, 2 * time.Second, 4 * time.Second}
	if len(sleeps.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", sleeps.waits, want)
	}
	for i := range want {
		if sleeps.waits[i] != want[i] {
			t.Fatalf("waits = %v, want %v", sleeps.waits, want)
		}
	}
	if apis.tweets != 3 || apis.bskyPosts != 0 {
		t.Fatalf("expected 3 tweet attempts and no bluesky post, got %d and %d", apis.tweets, apis.bskyPosts)
	}

	records := testsupport.MustLoad(t, queue.NewStore(cfg.Paths.ProcessedFile))
	if len(records) != 1 || records[0].HasChannelURL("twitter") || records[0].HasChannelURL("bluesky") {
		t.Fatalf("exhausted channel must keep a null url: %+v", records)
	}
	if _, err := os.Stat(records[0].LocalPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("asset should be deleted after exhaustion, stat err %v", err)
	}
}

func TestExecuteRequiresCredentials(t *testing.T) {
	apis := newFakeAPIs(t)
	cfg := newTestConfig(t, apis)
	cfg.Printify.AccessToken = ""

	_, err := newRunner(cfg, &recordedSleeps{}).Execute(context.Background(), pipeline.CommandRun, pipeline.ExecuteOptions{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := os.Stat(cfg.Paths.JournalPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no run should be journaled before credentials pass, stat err %v", err)
	}
}

func TestExecuteFailsFastWhenLocked(t *testing.T) {
	apis := newFakeAPIs(t)
	cfg := newTestConfig(t, apis)

	lock, err := queue.AcquireLock(queue.LockPath(cfg.Paths.ProcessedFile))
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	_, err = newRunner(cfg, &recordedSleeps{}).Execute(context.Background(), pipeline.CommandPost, pipeline.ExecuteOptions{})
	if !errors.Is(err, queue.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestPruneCommand(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.orderQuantity = 1
	cfg := newTestConfig(t, apis)

	processed := queue.NewStore(cfg.Paths.ProcessedFile)
	testsupport.SeedStore(t, processed, &queue.Record{
		ID:           1,
		PostID:       "abc123",
		Title:        "Old Meme",
		LocalPath:    filepath.Join(cfg.Paths.AssetDir, "old.png"),
		ListingID:    queue.StringPtr("prod-9"),
		StorefrontID: queue.StringPtr("gid://shopify/Product/77"),
		CreatedAt:    queue.StringPtr("2024-04-01"),
	})
	runner := newRunner(cfg, &recordedSleeps{})

	report, err := runner.Execute(context.Background(), pipeline.CommandPrune, pipeline.ExecuteOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if report.Prune.Pruned != 1 || report.Summary.Pruned != 0 || len(apis.deleted) != 0 {
		t.Fatalf("dry run must not delete: report %+v deleted %v", report.Prune, apis.deleted)
	}

	report, err = runner.Execute(context.Background(), pipeline.CommandPrune, pipeline.ExecuteOptions{})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if report.Summary.Pruned != 1 || len(apis.deleted) != 1 || apis.deleted[0] != "prod-9" {
		t.Fatalf("unexpected prune outcome %+v deleted %v", report.Summary, apis.deleted)
	}
	records := testsupport.MustLoad(t, processed)
	if !records[0].IsPruned() {
		t.Fatal("record should carry pruned_at")
	}
}
