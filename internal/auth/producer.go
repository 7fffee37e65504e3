package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ProducerAuthMiddleware validates HMAC signatures on producer append
// requests. Producers are external domain services; they sign the body rather
// than carrying a user JWT.
type ProducerAuthMiddleware struct {
	Secret  []byte
	MaxSkew time.Duration
}

// NewProducerAuthMiddleware constructs producer auth middleware.
func NewProducerAuthMiddleware(secret []byte, maxSkew time.Duration) *ProducerAuthMiddleware {
	return &ProducerAuthMiddleware{Secret: secret, MaxSkew: maxSkew}
}

// Wrap enforces producer signature validation.
func (m *ProducerAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.Secret) == 0 {
			http.Error(w, "producer auth not configured", http.StatusUnauthorized)
			return
		}
		timestamp := strings.TrimSpace(r.Header.Get("X-Producer-Timestamp"))
		signature := strings.TrimSpace(r.Header.Get("X-Producer-Signature"))
		if timestamp == "" || signature == "" {
			http.Error(w, "missing producer signature", http.StatusUnauthorized)
			return
		}
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			http.Error(w, "invalid producer timestamp", http.StatusUnauthorized)
			return
		}
		skew := time.Since(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if m.MaxSkew > 0 && skew > m.MaxSkew {
			http.Error(w, "producer signature expired", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()

		expected := computeProducerSignature(m.Secret, timestamp, body)
		if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
			http.Error(w, "invalid producer signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// ComputeProducerSignature signs a producer request body for the given
// timestamp. Exposed for producer clients and tests.
func ComputeProducerSignature(secret []byte, timestamp string, body []byte) string {
	return computeProducerSignature(secret, timestamp, body)
}

func computeProducerSignature(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
