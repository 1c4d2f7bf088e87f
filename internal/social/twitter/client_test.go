package twitter_test

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
	"testing"

	"github.com/go-chi/chi/v5"

	"memeshop/internal/queue"
	"memeshop/internal/services"
	"memeshop/internal/social/twitter"
)

func newRecord(t *testing.T) *queue.Record {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	return &queue.Record{
		ID:            1,
		Title:         "Cat Meme",
		LocalPath:     path,
		StorefrontURL: queue.StringPtr("https://shop.example/products/cat-meme"),
	}
}

func TestPostUploadsMediaThenTweets(t *testing.T) {
	var tweet map[string]any
	var uploaded string

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			auth := req.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "OAuth ") || !strings.Contains(auth, `oauth_consumer_key="ck"`) || !strings.Contains(auth, `oauth_token="at"`) {
				t.Errorf("missing oauth1 signature: %q", auth)
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/1.1/media/upload.json", func(w http.ResponseWriter, req *http.Request) {
		file, _, err := req.FormFile("media")
		if err != nil {
			t.Errorf("read media form: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		uploaded = string(data)
		_ = json.NewEncoder(w).Encode(map[string]any{"media_id_string": "m-1"})
	})
	r.Post("/2/tweets", func(w http.ResponseWriter, req *http.Request) {
		if err := json.NewDecoder(req.Body).Decode(&tweet); err != nil {
			t.Errorf("decode tweet: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "1790", "text": "x"}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client, err := twitter.NewClient(twitter.Options{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		AccessToken:    "at",
		AccessSecret:   "as",
		UploadURL:      srv.URL + "/1.1",
		APIURL:         srv.URL + "/2",
		HTTPClient:     srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	url, err := client.Post(context.Background(), newRecord(t))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if url != "https://twitter.com/i/web/status/1790" {
		t.Fatalf("unexpected url %q", url)
	}
	if uploaded != "png-bytes" {
		t.Fatalf("unexpected upload body %q", uploaded)
	}
	if tweet["text"] != "Cat Meme\nBuy now: https://shop.example/products/cat-meme" {
		t.Fatalf("unexpected tweet text %q", tweet["text"])
	}
	media, _ := tweet["media"].(map[string]any)
	ids, _ := media["media_ids"].([]any)
	if len(ids) != 1 || ids[0] != "m-1" {
		t.Fatalf("unexpected media ids %v", tweet["media"])
	}
}

func TestPostReportsRateLimitAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := twitter.NewClient(twitter.Options{
		ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessSecret: "as",
		UploadURL: srv.URL, APIURL: srv.URL, HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Post(context.Background(), newRecord(t)); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPostMissingAssetFailsBeforeUpload(t *testing.T) {
	client, err := twitter.NewClient(twitter.Options{
		ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessSecret: "as",
		UploadURL: "http://127.0.0.1:0", APIURL: "http://127.0.0.1:0",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	rec := &queue.Record{Title: "x", LocalPath: filepath.Join(t.TempDir(), "missing.png")}
	if _, err := client.Post(context.Background(), rec); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := twitter.NewClient(twitter.Options{ConsumerKey: "ck"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	// The same fields in the same order on every call.
	for i := 0; i < 5; i++ {
		_, err := twitter.NewClient(twitter.Options{ConsumerKey: "ck"})
		if err == nil || !strings.Contains(err.Error(), "consumer_secret, access_token, access_secret") {
			t.Fatalf("expected ordered list of missing credentials, got %v", err)
		}
	}
}
