package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testIdem(t *testing.T) Idem {
	t.Helper()
	mr := miniredis.RunT(t)
	return Idem{R: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
}

func TestIdempotencyBlocksReplay(t *testing.T) {
	idem := testIdem(t)
	var calls int
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("Idempotency-Key", "attempt-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "request %d", i)
	}
	require.Equal(t, 1, calls)
}

func TestIdempotencyDistinctKeysPass(t *testing.T) {
	idem := testIdem(t)
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for _, key := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("Idempotency-Key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	idem := testIdem(t)
	var calls int
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/submit", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 2, calls)
}
