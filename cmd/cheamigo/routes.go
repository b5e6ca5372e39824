package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"slices"
)

// routes are the HTTP surfaces of the service.
type routes struct {
	rpcPath string
	rpc     http.Handler
	rest    http.Handler
	ws      http.Handler
}

// mux mounts the routes. protect wraps the REST API and the websocket
// upgrade; the RPC handler authenticates through its interceptors.
func (r routes) mux(protect func(http.Handler) http.Handler) *http.ServeMux {
	if protect == nil {
		protect = func(h http.Handler) http.Handler { return h }
	}
	mux := http.NewServeMux()
	mux.Handle(r.rpcPath, r.rpc)
	mux.Handle("/api/", protect(r.rest))
	mux.Handle("/ws", bearerFromQuery(protect(r.ws)))
	return mux
}

// bearerFromQuery lets browsers, which cannot set headers on a websocket
// handshake, pass the token as ?access_token=.
func bearerFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if tok := r.URL.Query().Get("access_token"); tok != "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+tok)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// originChecker accepts any origin when allowed is empty.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

// closeIfCloser closes backends that hold connections.
func closeIfCloser(ctx context.Context, name string, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.WarnContext(ctx, "closing backend", slog.String("backend", name), slog.String("error", err.Error()))
	}
}
