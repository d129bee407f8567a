package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return NewClient(NewClientParams{
		BaseURL:      baseURL,
		ClientID:     "id",
		ClientSecret: "secret",
		AuthHeader:   "x-acs-dingtalk-access-token",

		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		RetryCap:   2 * time.Millisecond,
	})
}

func tokenHandler(tokens *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := tokens.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"expires_in":   3600,
		})
	}
}

func TestAuthenticateStoresToken(t *testing.T) {
	var tokens atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(&tokens))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	token, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-1" {
		t.Errorf("token = %q", token)
	}
}

func TestAuthenticateRejectedCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"code": "InvalidClient"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Authenticate(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestAuthenticateForbiddenCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"code": "Forbidden"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Authenticate(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestListChildrenFollowsPagination(t *testing.T) {
	var tokens atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(&tokens))
	mux.HandleFunc("/folders/root/children", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page_token") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"entries":         []map[string]any{{"id": "f1", "name": "a.pdf", "type": "FILE"}},
				"next_page_token": "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(map[string]any{
				"entries": []map[string]any{{"id": "f2", "name": "b.jpg", "type": "FILE"}},
			})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("page_token"))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	entries, err := c.ListChildren(context.Background(), "root", 1, "name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID != "f1" || entries[1].ID != "f2" {
		t.Errorf("order wrong: %s, %s", entries[0].ID, entries[1].ID)
	}
}

func TestDownloadRefreshesTokenExactlyOnce(t *testing.T) {
	var tokens atomic.Int32
	var downloads atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(&tokens))
	mux.HandleFunc("/files/f1/content", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		if r.Header.Get("x-acs-dingtalk-access-token") == "token-1" {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"code": "InvalidAccessToken"})
			return
		}
		w.Write([]byte("file body"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	body, err := c.DownloadBytes(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "file body" {
		t.Errorf("body = %q", body)
	}
	if got := tokens.Load(); got != 2 {
		t.Errorf("auth calls = %d, want 2 (lazy + one refresh)", got)
	}
	if got := downloads.Load(); got != 2 {
		t.Errorf("download attempts = %d, want 2", got)
	}
}

func TestDownloadTokenRefusedAfterRefresh(t *testing.T) {
	var tokens atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(&tokens))
	mux.HandleFunc("/files/f1/content", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"code": "TokenExpired"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.DownloadBytes(context.Background(), "f1")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if got := tokens.Load(); got != 2 {
		t.Errorf("auth calls = %d, want 2 (no endless refresh loop)", got)
	}
}

func TestDownloadRetriesTransportErrors(t *testing.T) {
	var tokens atomic.Int32
	var attempts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(&tokens))
	mux.HandleFunc("/files/f1/content", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	body, err := c.DownloadBytes(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestDownloadDoesNotRetryClientErrors(t *testing.T) {
	var tokens atomic.Int32
	var attempts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(&tokens))
	mux.HandleFunc("/files/f1/content", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "NotFound", "message": "gone"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.DownloadBytes(context.Background(), "f1")
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Errorf("status = %d", statusErr.Status)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (4xx must not retry)", got)
	}
}

func TestGetPreviewURLCached(t *testing.T) {
	var tokens atomic.Int32
	var calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(&tokens))
	mux.HandleFunc("/files/f1/preview_url", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"url": "https://preview/f1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	for i := 0; i < 3; i++ {
		u, err := c.GetPreviewURL(context.Background(), "f1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u != "https://preview/f1" {
			t.Errorf("url = %q", u)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("preview calls = %d, want 1 (cached)", got)
	}
}
