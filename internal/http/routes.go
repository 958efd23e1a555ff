// Package httpx exposes the relay over HTTP as a Pub/Sub push endpoint.
package httpx

import (
	"io"
	"log/slog"
	"net/http"
)

// DefaultMaxBodyBytes caps push request bodies when RouterOptions leaves it unset.
const DefaultMaxBodyBytes int64 = 1 << 20

// RouterOptions holds everything the HTTP router needs.
type RouterOptions struct {
	Relay InvocationHandler
	// Verifier authenticates push requests; nil accepts unauthenticated pushes.
	Verifier     TokenVerifier
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewRouter creates the HTTP handler with logging and panic recovery applied.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	push := &PushHandler{Relay: opts.Relay, MaxBodyBytes: maxBody, Logger: logger}

	mux := http.NewServeMux()
	mux.Handle("POST /pubsub/push", RequireBearer(opts.Verifier, logger)(push))
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var h http.Handler = mux
	h = Logging(logger)(h)
	h = Recover(logger)(h)
	return h
}

const healthResponse = `{"status":"ok"}`

// healthHandler answers liveness probes.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, healthResponse)
}
