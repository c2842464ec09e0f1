package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/internal/identity"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

var quietLogger = logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})

func newReplayStore(t *testing.T) (*pkgredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return pkgredis.NewFromClient(raw), mr
}

func keyedRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req.WithContext(identity.WithContext(req.Context(), identity.Identity{SessionKey: "sess"}))
}

func TestIdempotentWithoutHeaderPassesThrough(t *testing.T) {
	store, mr := newReplayStore(t)
	calls := 0
	h := Idempotent(store, time.Hour, quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, keyedRequest(`{}`, ""))
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d", resp.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d", calls)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("nothing should be stored without a key, got %v", keys)
	}
}

func TestIdempotentReplaysFirstResponse(t *testing.T) {
	store, mr := newReplayStore(t)
	calls := 0
	h := Idempotent(store, time.Hour, quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "pay-in-advance") {
			t.Fatalf("handler lost the request body: %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/orders/last?token=abc")
		w.Header().Set("X-Trace", "not-replayed")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	send := func(body string) *httptest.ResponseRecorder {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, keyedRequest(body, "abc"))
		return resp
	}

	if first := send(`{"payment_method":"pay-in-advance"}`); first.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", first.Code)
	}

	replay := send(`{"payment_method":"pay-in-advance"}`)
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d", calls)
	}
	if replay.Code != http.StatusCreated || replay.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected replay %d %q", replay.Code, replay.Body.String())
	}
	if replay.Header().Get("Location") != "/orders/last?token=abc" {
		t.Fatalf("expected location header to be replayed")
	}
	if replay.Header().Get("X-Trace") != "" {
		t.Fatalf("only allow-listed headers are replayed")
	}
	if replay.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("expected replay marker")
	}

	conflict := send(`{"payment_method":"cash-on-delivery"}`)
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 on key reuse, got %d", conflict.Code)
	}
	if !strings.Contains(conflict.Body.String(), string(pkgerrors.CodeIdempotency)) {
		t.Fatalf("expected idempotency error code, got %s", conflict.Body.String())
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one stored record, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}
}

func TestIdempotentRejectsDuplicateInFlight(t *testing.T) {
	store, _ := newReplayStore(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	h := Idempotent(store, time.Hour, quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan int)
	go func() {
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, keyedRequest(`{}`, "dup"))
		done <- resp.Code
	}()
	<-entered

	second := httptest.NewRecorder()
	h.ServeHTTP(second, keyedRequest(`{}`, "dup"))
	close(release)

	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 while first request runs, got %d", second.Code)
	}
	if code := <-done; code != http.StatusOK {
		t.Fatalf("first request should finish normally, got %d", code)
	}
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	store, mr := newReplayStore(t)
	status := http.StatusServiceUnavailable
	calls := 0
	h := Idempotent(store, time.Hour, quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	h.ServeHTTP(httptest.NewRecorder(), keyedRequest(`{}`, "abc"))
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("server errors must stay retryable, found %v", keys)
	}

	status = http.StatusOK
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, keyedRequest(`{}`, "abc"))
	if resp.Code != http.StatusOK || calls != 2 {
		t.Fatalf("retry should run the handler again, got %d after %d calls", resp.Code, calls)
	}
}

func TestIdempotentScopesKeysPerCaller(t *testing.T) {
	store, _ := newReplayStore(t)
	calls := 0
	h := Idempotent(store, time.Hour, quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), keyedRequest(`{}`, "shared"))
	other := keyedRequest(`{}`, "shared")
	other = other.WithContext(identity.WithContext(context.Background(), identity.Identity{SessionKey: "someone-else"}))
	h.ServeHTTP(httptest.NewRecorder(), other)

	if calls != 2 {
		t.Fatalf("keys must not collide across sessions, handler ran %d times", calls)
	}
}
