package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast
var testArgon2Params = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16}

func TestHashAndVerifyAPIKey(t *testing.T) {
	enc, err := HashAPIKey("s3cret", testArgon2Params)
	require.NoError(t, err)
	assert.True(t, VerifyAPIKey("s3cret", enc))
	assert.False(t, VerifyAPIKey("s3cret!", enc))

	other, err := HashAPIKey("s3cret", testArgon2Params)
	require.NoError(t, err)
	assert.NotEqual(t, enc, other, "salt must differ")
}

func TestVerifyAPIKey_MalformedHash(t *testing.T) {
	for _, h := range []string{
		"",
		"bcrypt$1$2$3$4$5",
		"argon2id$x$1024$1$c2FsdA$aGFzaA",
		"argon2id$1$1024$0$c2FsdA$aGFzaA",
		"argon2id$1$1024$300$c2FsdA$aGFzaA",
		"argon2id$1$1024$1$!!$aGFzaA",
		"argon2id$1$1024$1$c2FsdA$",
	} {
		assert.False(t, VerifyAPIKey("k", h), h)
	}
}

func TestClientAPIKeyGuard(t *testing.T) {
	enc, err := HashAPIKey("mobile-key", testArgon2Params)
	require.NoError(t, err)
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})
	h := ClientAPIKeyGuard(enc)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/clips", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	r := httptest.NewRequest(http.MethodPost, "/v1/clips", nil)
	r.Header.Set(APIKeyHeader, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for i := 0; i < 2; i++ {
		r = httptest.NewRequest(http.MethodPost, "/v1/clips", nil)
		r.Header.Set(APIKeyHeader, "mobile-key")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestClientAPIKeyGuard_DisabledWithoutHash(t *testing.T) {
	h := ClientAPIKeyGuard("")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
