// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"time"
)

// responseWriter records the status and size of a response, and whether
// the connection was taken over by a websocket.
type responseWriter struct {
	http.ResponseWriter
	status   int
	size     int
	hijacked bool
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Hijack implements http.Hijacker for WebSocket support.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, buf, err := hijacker.Hijack()
	if err == nil {
		rw.hijacked = true
	}
	return conn, buf, err
}

// Logging logs one line per request. Terminal and event websockets are
// logged when they close, with how long they stayed open.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		if wrapped.hijacked {
			log.Printf("HTTP: %s %s websocket closed after %s", r.Method, r.URL.Path, duration.Round(time.Second))
			return
		}
		log.Printf("HTTP: %s %s %d %d %s",
			r.Method,
			r.URL.Path,
			wrapped.status,
			wrapped.size,
			duration,
		)
	})
}
