package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/shreesanatan/pujapath-backend/api/responses"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
	pkgredis "github.com/shreesanatan/pujapath-backend/pkg/redis"
)

// Replay windows. Checkout moves money, so its window covers a week of
// client retries; payment-order creation only reserves a gateway order and
// can age out after a day.
const (
	paymentOrderReplayTTL = 24 * time.Hour
	checkoutReplayTTL     = 7 * 24 * time.Hour
)

// guardedRoutes maps "METHOD pattern" to the replay TTL for that route.
// Only unsafe storefront writes appear here; everything else passes through.
var guardedRoutes = map[string]time.Duration{
	http.MethodPost + " /api/v1/checkout/payment-order": paymentOrderReplayTTL,
	http.MethodPost + " /api/v1/checkout":               checkoutReplayTTL,
}

// storedResponse is what gets cached in Redis for replay: the original
// status, the base64 response body, and a hash of the request that produced
// it so key reuse with a different body can be rejected.
type storedResponse struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency makes the guarded routes safe to retry. The first request
// under a given Idempotency-Key executes and its response is cached with
// SetNX; later requests with the same key and body get the cached response
// back, and the same key with a different body is rejected outright.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := guardedRoutes[r.Method+" "+routePattern(r)]
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if idemKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := base64.StdEncoding.EncodeToString(sum[:])
			scope := UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
			redisKey := store.IdempotencyKey(scope, idemKey)

			cached, err := store.Get(r.Context(), redisKey)
			if err != nil && !errors.Is(err, redis.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if cached != "" {
				var prior storedResponse
				if err := json.Unmarshal([]byte(cached), &prior); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if prior.RequestHash != requestHash {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replay(w, prior)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			entry := storedResponse{
				Status:      rec.statusOr(http.StatusOK),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			}
			if ct := rec.Header().Get("Content-Type"); ct != "" {
				entry.Headers = map[string]string{"Content-Type": ct}
			}

			payload, err := json.Marshal(entry)
			if err != nil {
				if logg != nil {
					logg.Error(r.Context(), "marshal idempotency record", err)
				}
				return
			}
			if _, err := store.SetNX(r.Context(), redisKey, string(payload), ttl); err != nil && logg != nil {
				logg.Error(r.Context(), "persist idempotency record", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, prior storedResponse) {
	if ct := prior.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(prior.Status)
	if decoded, err := base64.StdEncoding.DecodeString(prior.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

// routePattern prefers the chi route pattern so the guard keys stay stable
// across path parameters; outside a chi router it falls back to the raw path.
func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOr(fallback int) int {
	if c.status == 0 {
		return fallback
	}
	return c.status
}
