package connectutil

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/pitabwire/frame/security"
	connectInterceptors "github.com/pitabwire/frame/security/interceptors/connect"
	securityhttp "github.com/pitabwire/frame/security/interceptors/httptor"
)

// DefaultOptions returns the default handler options: JSON codec and
// logging, no auth. Use AuthenticatedOptions for endpoints that require
// authentication.
func DefaultOptions() []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(
			NewLoggingInterceptor(),
		),
	}
}

// AuthenticatedOptions returns handler options with frame's full security
// interceptor chain (OpenTelemetry, validation, authentication) plus the
// JSON codec and logging interceptor.
func AuthenticatedOptions(ctx context.Context, authenticator security.Authenticator) ([]connect.HandlerOption, error) {
	interceptors, err := connectInterceptors.DefaultList(ctx, authenticator)
	if err != nil {
		return nil, err
	}
	interceptors = append(interceptors, NewLoggingInterceptor())

	return []connect.HandlerOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(interceptors...),
	}, nil
}

// AuthenticatedHTTPMiddleware wraps an http.Handler with frame's
// authentication middleware, validating bearer tokens on plain HTTP
// endpoints such as the websocket upgrade.
func AuthenticatedHTTPMiddleware(handler http.Handler, authenticator security.Authenticator) http.Handler {
	return securityhttp.AuthenticationMiddleware(handler, authenticator)
}

// DefaultClientOptions returns the default client options.
func DefaultClientOptions() []connect.ClientOption {
	return []connect.ClientOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(
			NewLoggingInterceptor(),
		),
	}
}

type loggingInterceptor struct{}

// NewLoggingInterceptor creates an interceptor that logs RPC procedure,
// duration and errors for unary and streaming calls.
func NewLoggingInterceptor() connect.Interceptor {
	return &loggingInterceptor{}
}

func (l *loggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logRPC(ctx, req.Spec().Procedure, false, start, err)
		return resp, err
	}
}

func (l *loggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		slog.DebugContext(ctx, "rpc stream client start", slog.String("procedure", spec.Procedure))
		return next(ctx, spec)
	}
}

func (l *loggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		logRPC(ctx, conn.Spec().Procedure, true, start, err)
		return err
	}
}

func logRPC(ctx context.Context, procedure string, streaming bool, start time.Time, err error) {
	attrs := []any{
		slog.String("procedure", procedure),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("streaming", streaming),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("code", connect.CodeOf(err).String()),
			slog.String("error", err.Error()),
		)
		slog.WarnContext(ctx, "rpc error", attrs...)
		return
	}
	slog.DebugContext(ctx, "rpc ok", attrs...)
}
