// Package middleware provides HTTP server middleware.
package middleware

import (
	"context"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// Logging returns a middleware that logs every request with method, path,
// status, duration and a request ID.
func Logging(logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				ip        string
				requestID string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				method = tr.Operation()
				path = tr.Operation()

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					ip = extractClientIP(httpReq)

					requestID = httpReq.Header.Get("X-Request-ID")
					if requestID == "" {
						requestID = uuid.NewString()
					}
				}
			}

			reply, err := handler(ctx, req)

			duration := time.Since(startTime).Milliseconds()
			status := 200
			if err != nil {
				status = int(errors.FromError(err).Code)
			}

			if err != nil {
				helper.Warnw("request failed",
					"request_id", requestID,
					"method", method,
					"path", path,
					"status", status,
					"duration_ms", duration,
					"ip", ip,
					"error", err)
			} else {
				helper.Infow("request completed",
					"request_id", requestID,
					"method", method,
					"path", path,
					"status", status,
					"duration_ms", duration,
					"ip", ip)
			}

			return reply, err
		}
	}
}

// extractClientIP prefers proxy headers over the raw remote address.
func extractClientIP(req *nethttp.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	return req.RemoteAddr
}
