// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi is the external HTTP surface wrapping the routing core:
// an OpenAI-compatible inbound request is parsed, the reconciler pipeline
// is invoked through internal/routing, and the Result Encoder's Outcome is
// translated into response headers and a JSON body. This package (and
// internal/config) are external collaborators per spec.md §1 — listed as
// "deliberately out of scope" for the core itself — built here only so the
// core can be exercised end to end, not as the spec's own deliverable.
package httpapi

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"nexus/internal/budget"
	"nexus/internal/logger"
	"nexus/internal/routing"
)

// Server wraps a routing.Router with the gorilla/mux HTTP surface, CORS,
// and optional bearer-token authentication.
type Server struct {
	router      *routing.Router
	queue       *budget.Queue
	mux         *mux.Router
	handler     http.Handler
	log         *logger.Logger
	jwtSecret   []byte
	queueWaitFor time.Duration
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithJWTSecret enables bearer-token authentication on every route except
// /healthz. An empty secret (the default) disables authentication.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.jwtSecret = []byte(secret)
		}
	}
}

// WithQueue wires the bounded FIFO used for the Queue decision's
// backpressure wait (spec §5). Without one, Queue decisions are
// immediately converted to a 503 Reject.
func WithQueue(q *budget.Queue) Option {
	return func(s *Server) { s.queue = q }
}

// WithQueueWait overrides the default queue wait window.
func WithQueueWait(d time.Duration) Option {
	return func(s *Server) { s.queueWaitFor = d }
}

// defaultQueueWait mirrors routing.defaultRetryAfterSeconds.
const defaultQueueWait = 30 * time.Second

// New builds a Server ready to serve. CORS wraps every route so a
// same-process dashboard can call the API cross-origin in local dev,
// matching the teacher's cost.Handler CORS convention generalized to
// package-level middleware instead of per-handler header writes.
func New(router *routing.Router, opts ...Option) *Server {
	s := &Server{
		router:       router,
		mux:          mux.NewRouter(),
		log:          logger.New("httpapi"),
		queueWaitFor: defaultQueueWait,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.mux.HandleFunc("/v1/chat/completions", s.authenticate(s.handleChatCompletions)).Methods(http.MethodPost)
	s.mux.HandleFunc("/v1/embeddings", s.authenticate(s.handleChatCompletions)).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	s.handler = c.Handler(s.mux)
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// authenticate wraps a handler with bearer-token validation when a JWT
// secret is configured; it is a no-op pass-through otherwise.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	if len(s.jwtSecret) == 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			http.Error(w, `{"error":{"message":"missing bearer token","type":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		tokenString := header[len(prefix):]
		_, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			s.log.Warn("", "", "rejected request with invalid bearer token", map[string]interface{}{"error": err.Error()})
			http.Error(w, `{"error":{"message":"invalid bearer token","type":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
