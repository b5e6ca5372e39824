package connectutil

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Limits for cleartext HTTP/2 connections. Event watchers hold one stream
// each for the lifetime of the subscription.
const (
	maxStreamsPerConn = 100
	maxFrameSize      = 256 << 10
	idleTimeout       = 2 * time.Minute
)

// H2CHandler serves handler over HTTP/1.1 and cleartext HTTP/2, so the
// WatchEvents stream works behind a TLS-terminating proxy.
func H2CHandler(handler http.Handler) http.Handler {
	return h2c.NewHandler(handler, &http2.Server{
		MaxConcurrentStreams: maxStreamsPerConn,
		MaxReadFrameSize:     maxFrameSize,
		IdleTimeout:          idleTimeout,
	})
}
