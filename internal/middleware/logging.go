package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kiumaa/kixikila-sub001/internal/metrics"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// and records its duration. m may be nil.
func LoggingInterceptor(m *metrics.Metrics) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			procedure := req.Spec().Procedure
			level, code, attrs := rpcOutcome(err)
			attrs = append(attrs,
				slog.String("procedure", procedure),
				slog.String("user_id", GetUserID(ctx)),
				slog.Int64("duration_ms", elapsed.Milliseconds()),
			)
			slog.LogAttrs(ctx, level, "RPC "+code, attrs...)
			m.RPC(procedure, code, elapsed)

			return resp, err
		}
	}
}

// rpcOutcome classifies a handler result for logging. Domain failures carry
// a Connect code and log at warn; anything else is unexpected.
func rpcOutcome(err error) (slog.Level, string, []slog.Attr) {
	if err == nil {
		return slog.LevelInfo, "ok", nil
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return slog.LevelError, connect.CodeUnknown.String(), []slog.Attr{slog.Any("error", err)}
	}
	attrs := []slog.Attr{slog.String("error", connectErr.Message())}
	if reason := connectErr.Meta().Get(ErrorReasonHeader); reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}
	level := slog.LevelWarn
	if connectErr.Code() == connect.CodeInternal {
		level = slog.LevelError
	}
	return level, connectErr.Code().String(), attrs
}

// RequestLogger logs every HTTP request with its status and duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", chimw.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// ErrorReasonHeader carries the stable machine-readable failure reason.
const ErrorReasonHeader = "Kixikila-Error-Reason"

// CORS lets browser clients call the RPC and function endpoints.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		h.Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, "+ErrorReasonHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
