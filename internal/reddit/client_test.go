package reddit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"memeshop/internal/reddit"
	"memeshop/internal/services"
)

type fakeReddit struct {
	tokenCalls int
	listing    map[string]any
	comments   []any
}

func (f *fakeReddit) router(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/access_token", func(w http.ResponseWriter, req *http.Request) {
		f.tokenCalls++
		user, pass, ok := req.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := req.ParseForm(); err != nil || req.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant form: %v %v", req.PostForm, err)
		}
		writeJSON(w, map[string]any{"access_token": "tok", "token_type": "bearer", "expires_in": 3600})
	})
	r.Get("/r/{sub}/{sort}", func(w http.ResponseWriter, req *http.Request) {
		if got := req.Header.Get("Authorization"); got != "bearer tok" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if chi.URLParam(req, "sub") != "memes" || chi.URLParam(req, "sort") != "hot" {
			t.Errorf("unexpected listing path %s", req.URL.Path)
		}
		if req.URL.Query().Get("limit") != "45" {
			t.Errorf("unexpected limit %q", req.URL.Query().Get("limit"))
		}
		writeJSON(w, f.listing)
	})
	r.Get("/comments/{id}", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("sort") != "top" {
			t.Errorf("expected top sort, got %q", req.URL.Query().Get("sort"))
		}
		writeJSON(w, f.comments)
	})
	r.Get("/img/{name}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("png-bytes"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func newClient(t *testing.T, srv *httptest.Server) *reddit.Client {
	t.Helper()
	client, err := reddit.NewClient(reddit.Options{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "memeshop-test",
		AuthURL:      srv.URL + "/api/v1/access_token",
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestListingDecodesPostsAndCachesToken(t *testing.T) {
	fake := &fakeReddit{
		listing: map[string]any{
			"kind": "Listing",
			"data": map[string]any{
				"children": []any{
					map[string]any{"kind": "t3", "data": map[string]any{
						"id": "a1", "title": "Single", "permalink": "/r/memes/comments/a1/single/",
						"url": "https://i.redd.it/a1.PNG",
					}},
					map[string]any{"kind": "t3", "data": map[string]any{
						"id": "g1", "title": "Gallery", "is_gallery": true,
						"gallery_data": map[string]any{"items": []any{
							map[string]any{"media_id": "m1"},
							map[string]any{"media_id": "m2"},
							map[string]any{"media_id": "m3"},
						}},
						"media_metadata": map[string]any{
							"m1": map[string]any{"m": "image/jpg", "s": map[string]any{"u": "https://preview.redd.it/m1.jpg?width=640&amp;s=abc"}},
							"m2": map[string]any{"m": "image/gif", "s": map[string]any{"u": "https://preview.redd.it/m2.gif"}},
							"m3": map[string]any{"m": "image/png", "s": map[string]any{"u": "https://preview.redd.it/m3.png"}},
						},
					}},
					map[string]any{"kind": "t3", "data": map[string]any{
						"id": "v1", "title": "Video", "url": "https://v.redd.it/v1",
					}},
					map[string]any{"kind": "more", "data": map[string]any{}},
				},
			},
		},
	}
	srv := httptest.NewServer(fake.router(t))
	defer srv.Close()
	client := newClient(t, srv)

	posts, err := client.Listing(context.Background(), "memes", "hot", 45)
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	if urls := posts[0].ImageURLs(); len(urls) != 1 || urls[0] != "https://i.redd.it/a1.PNG" {
		t.Fatalf("unexpected single image urls %v", urls)
	}
	if posts[0].PermalinkURL() != "https://www.reddit.com/r/memes/comments/a1/single/" {
		t.Fatalf("unexpected permalink %q", posts[0].PermalinkURL())
	}
	gallery := posts[1].ImageURLs()
	if len(gallery) != 2 || gallery[0] != "https://preview.redd.it/m1.jpg" || gallery[1] != "https://preview.redd.it/m3.png" {
		t.Fatalf("unexpected gallery urls %v", gallery)
	}
	if posts[1].GalleryID() != "g1" || posts[0].GalleryID() != "" {
		t.Fatalf("unexpected gallery ids %q %q", posts[1].GalleryID(), posts[0].GalleryID())
	}
	if urls := posts[2].ImageURLs(); len(urls) != 0 {
		t.Fatalf("expected video post to be skipped, got %v", urls)
	}

	if _, err := client.Listing(context.Background(), "memes", "hot", 45); err != nil {
		t.Fatalf("second Listing: %v", err)
	}
	if fake.tokenCalls != 1 {
		t.Fatalf("expected cached token, got %d token calls", fake.tokenCalls)
	}
}

func TestTopCommentsReturnsFirstN(t *testing.T) {
	fake := &fakeReddit{
		comments: []any{
			map[string]any{"kind": "Listing", "data": map[string]any{"children": []any{}}},
			map[string]any{"kind": "Listing", "data": map[string]any{"children": []any{
				map[string]any{"kind": "t1", "data": map[string]any{"body": "first comment"}},
				map[string]any{"kind": "t1", "data": map[string]any{"body": "second comment"}},
				map[string]any{"kind": "more", "data": map[string]any{"count": 4}},
				map[string]any{"kind": "t1", "data": map[string]any{"body": "third comment"}},
				map[string]any{"kind": "t1", "data": map[string]any{"body": "fourth comment"}},
			}}},
		},
	}
	srv := httptest.NewServer(fake.router(t))
	defer srv.Close()

	bodies, err := newClient(t, srv).TopComments(context.Background(), "a1", 3)
	if err != nil {
		t.Fatalf("TopComments: %v", err)
	}
	if len(bodies) != 3 || bodies[2] != "third comment" {
		t.Fatalf("unexpected comments %v", bodies)
	}
}

func TestDownloadStreamsBody(t *testing.T) {
	srv := httptest.NewServer((&fakeReddit{}).router(t))
	defer srv.Close()

	var buf bytes.Buffer
	if err := newClient(t, srv).Download(context.Background(), srv.URL+"/img/a.png", &buf); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if buf.String() != "png-bytes" {
		t.Fatalf("unexpected body %q", buf.String())
	}
}

func TestTokenFailureIsConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Listing(context.Background(), "memes", "hot", 10)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := reddit.NewClient(reddit.Options{UserAgent: "x"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
