package proxy

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/philipexavier/proxy-rasa/internal/codec"
	"github.com/philipexavier/proxy-rasa/internal/logging"
	"github.com/philipexavier/proxy-rasa/internal/pipeline"
	"github.com/philipexavier/proxy-rasa/internal/types"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the id assigned by the request id middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// corsMiddleware allows requests from any origin; the proxy sits behind
// the chat platform and is reached from browser widgets as well.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqHeaders := r.Header.Get("Access-Control-Request-Headers")
		if reqHeaders == "" {
			reqHeaders = "Authorization, Content-Type, Accept, X-Copilot-Threads, X-Request-ID"
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware reuses a client supplied X-Request-ID or assigns a
// fresh one, and echoes it on the response.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code and body size for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.status = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying Flusher.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		if rw.status >= http.StatusInternalServerError {
			level = slog.LevelError
		} else if rw.status >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"bytes", rw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestID(r.Context()),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
			"headers", logging.RedactHeaders(r.Header),
		)
	})
}

// recoveryMiddleware turns a handler panic into a 500 without leaking
// details to the client.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("http.panic",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", RequestID(r.Context()),
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				codec.WriteError(w, http.StatusInternalServerError, types.ErrInternal, pipeline.InternalErrorMessage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectedToken := ""
		if s.Config != nil {
			expectedToken = strings.TrimSpace(s.Config.AccessToken)
		}
		if expectedToken == "" || r.Method == http.MethodOptions || !requiresAccessToken(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := parseBearerAuthToken(r.Header.Get("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			slog.Warn("auth.rejected",
				"path", r.URL.Path,
				"request_id", RequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
			codec.WriteError(w, http.StatusUnauthorized, types.ErrAuthentication, serverAccessTokenError)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func parseBearerAuthToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func requiresAccessToken(path string) bool {
	return strings.HasPrefix(path, "/v1/")
}

func (s *Server) verboseMiddleware(next http.Handler) http.Handler {
	if s.Config == nil || !s.Config.Verbose {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"headers", logging.RedactHeaders(r.Header),
		)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) debugMiddleware(next http.Handler) http.Handler {
	if s.Config == nil || !s.Config.Debug {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dump, err := httputil.DumpRequest(r, true)
		if err != nil {
			slog.Error("request.dump.failed", "method", r.Method, "path", r.URL.Path, "error", err)
		} else {
			slog.Info("request.dump", "method", r.Method, "path", r.URL.Path)
			s.writeDebugDumpBlock("INBOUND REQUEST", []byte(logging.RedactText(string(dump))))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeDebugDumpBlock(title string, data []byte) {
	s.debugDumpMu.Lock()
	defer s.debugDumpMu.Unlock()

	title = strings.TrimSpace(title)
	var b strings.Builder
	b.WriteString("===== " + title + " BEGIN =====\n")
	b.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString("===== " + title + " END =====\n")

	if _, err := s.dumpOut.Write([]byte(b.String())); err != nil {
		slog.Error("debug.dump.write.failed", "title", title, "error", err)
	}
}
