package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotexport/internal/shared"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"access-123","token_type":"Bearer","refresh_token":"refresh-456","expires_in":3600}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func oauthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://127.0.0.1:3000/callback",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func receive(t *testing.T, h *OAuthHandler) OAuthResult {
	t.Helper()
	select {
	case result := <-h.Result():
		return result
	case <-time.After(time.Second):
		t.Fatal("no result received")
		return OAuthResult{}
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("successful exchange", func(t *testing.T) {
		var hits atomic.Int32
		ts := tokenServer(t, &hits)
		h := NewOAuthHandler(oauthConfig(ts.URL), "state-1")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=good-code", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Error("expected success page")
		}

		result := receive(t, h)
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.Token.AccessToken != "access-123" || result.Token.RefreshToken != "refresh-456" {
			t.Errorf("unexpected token %+v", result.Token)
		}
	})

	t.Run("failures", func(t *testing.T) {
		tt := []struct {
			name       string
			query      string
			status     int
			exchanged  bool
			wantSubstr string
		}{
			{name: "state mismatch", query: "state=other&code=good-code", status: http.StatusBadRequest, wantSubstr: "state"},
			{name: "access denied", query: "state=state-1&error=access_denied", status: http.StatusBadRequest, wantSubstr: "access_denied"},
			{name: "rejected code", query: "state=state-1&code=bad-code", status: http.StatusInternalServerError, exchanged: true, wantSubstr: "token exchange"},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				var hits atomic.Int32
				ts := tokenServer(t, &hits)
				h := NewOAuthHandler(oauthConfig(ts.URL), "state-1")

				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tc.query, nil))

				if rec.Code != tc.status {
					t.Errorf("expected %d, got %d", tc.status, rec.Code)
				}

				result := receive(t, h)
				if !errors.Is(result.Error(), shared.ErrAuthFailed) {
					t.Errorf("expected ErrAuthFailed, got %v", result.Error())
				}
				if result.Error() != nil && !strings.Contains(result.Error().Error(), tc.wantSubstr) {
					t.Errorf("error %q does not mention %q", result.Error(), tc.wantSubstr)
				}
				if got := hits.Load() > 0; got != tc.exchanged {
					t.Errorf("token endpoint called = %v, want %v", got, tc.exchanged)
				}
			})
		}
	})

	t.Run("only first callback is processed", func(t *testing.T) {
		var hits atomic.Int32
		ts := tokenServer(t, &hits)
		h := NewOAuthHandler(oauthConfig(ts.URL), "state-1")

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=good-code", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replayed callback, got %d", rec.Code)
		}
		if hits.Load() != 1 {
			t.Errorf("expected a single token exchange, got %d", hits.Load())
		}

		if result := receive(t, h); result.Token == nil {
			t.Error("expected token from first callback")
		}
		if _, open := <-h.Result(); open {
			t.Error("expected result channel to be closed")
		}
	})
}

func TestCallbackHelpers(t *testing.T) {
	t.Run("CallbackPath", func(t *testing.T) {
		tt := []struct {
			uri  string
			want string
		}{
			{uri: "http://127.0.0.1:3000/callback", want: "/callback"},
			{uri: "http://localhost:8888/auth/spotify", want: "/auth/spotify"},
			{uri: "http://localhost:8888", want: DefaultCallbackPath},
			{uri: "http://localhost:8888/", want: DefaultCallbackPath},
			{uri: "", want: DefaultCallbackPath},
		}

		for _, tc := range tt {
			if got := CallbackPath(tc.uri); got != tc.want {
				t.Errorf("CallbackPath(%q) = %q, want %q", tc.uri, got, tc.want)
			}
		}
	})

	t.Run("CallbackAddr", func(t *testing.T) {
		if got := CallbackAddr("http://127.0.0.1:8888/callback", "localhost", 3000); got != "127.0.0.1:8888" {
			t.Errorf("expected address from URI, got %q", got)
		}
		if got := CallbackAddr("http://localhost/callback", "127.0.0.1", 3000); got != "127.0.0.1:3000" {
			t.Errorf("expected fallback address, got %q", got)
		}
	})
}

func TestRouter(t *testing.T) {
	t.Run("method patterns", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "pong")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Body.String() != "pong" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("registers oauth handler on redirect path", func(t *testing.T) {
		var hits atomic.Int32
		ts := tokenServer(t, &hits)
		config := oauthConfig(ts.URL)
		config.RedirectURL = "http://127.0.0.1:3000/auth/done"
		h := NewOAuthHandler(config, "s")

		router := NewBasicRouter()
		router.Handler(h)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=good-code", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 on default path, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/done?state=s&code=good-code", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 on redirect path, got %d", rec.Code)
		}
	})

	t.Run("RequestLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)
		shared.SetLogLevel(logger, log.DebugLevel)

		router := NewBasicRouter()
		router.Use(RequestLogger(logger))
		router.Handle(http.MethodGet, "/teapot", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot", nil))

		out := buf.String()
		if !strings.Contains(out, "/teapot") || !strings.Contains(out, "418") {
			t.Errorf("expected path and status in log, got %q", out)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	router := NewBasicRouter()
	router.Handle(http.MethodGet, "/callback", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))

	srv := NewCallbackServer("127.0.0.1:0", router, nil)
	errs, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/callback")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("unexpected body %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err, open := <-errs; open {
		t.Errorf("expected error channel to close cleanly, got %v", err)
	}

	t.Run("address in use", func(t *testing.T) {
		first := NewCallbackServer("127.0.0.1:0", router, nil)
		if _, err := first.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer first.Shutdown(context.Background())

		second := NewCallbackServer(first.Addr(), router, nil)
		if _, err := second.Start(); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
