package httpserver

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// APIKeyHeader carries the client API key.
const APIKeyHeader = "X-API-Key"

// Argon2Params defines parameters for Argon2id key hashing
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params are used by HashAPIKey callers that have no preference.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// HashAPIKey creates an encoded Argon2id hash of key, suitable for CLIENT_API_KEY_HASH.
// Format: argon2id$iterations$memory$parallelism$salt$hash (raw std base64).
func HashAPIKey(key string, params Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyAPIKey reports whether key matches encodedHash.
func VerifyAPIKey(key, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par64, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil || par64 == 0 || par64 > math.MaxUint8 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}
	actual := argon2.IDKey([]byte(key), salt, iters, mem, uint8(par64), uint32(len(expected))) //nolint:gosec // bounded above
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// ClientAPIKeyGuard rejects requests whose X-API-Key does not match encodedHash.
// An empty encodedHash disables the guard. Accepted keys are remembered by
// digest so argon2 runs once per distinct key, not once per request.
func ClientAPIKeyGuard(encodedHash string) func(http.Handler) http.Handler {
	var accepted sync.Map
	return func(next http.Handler) http.Handler {
		if encodedHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				writeStatusError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing api key", nil)
				return
			}
			digest := sha256.Sum256([]byte(key))
			if _, ok := accepted.Load(digest); !ok {
				if !VerifyAPIKey(key, encodedHash) {
					LoggerFrom(r).Warn("client api key rejected", "path", r.URL.Path)
					writeStatusError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid api key", nil)
					return
				}
				accepted.Store(digest, struct{}{})
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseUint32 parses a decimal string into uint32; returns error on failure
func parseUint32(s string) (uint32, error) {
	x, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse")
	}
	return uint32(x), nil
}
