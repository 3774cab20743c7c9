// Package api provides the HTTP surface of LineBridge: the messaging
// platform's webhook endpoint, the health check, and the message-log
// endpoint for experimenters.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/chiayulab/linebridge/internal/flow"
	"github.com/chiayulab/linebridge/internal/session"
	"github.com/chiayulab/linebridge/internal/store"
)

// DefaultAddr is the default listen address. Matches the historical
// deployment port.
const DefaultAddr = ":10000"

// RequestTimeout bounds the total processing time for one webhook delivery,
// so a slow collaborator never holds a per-user lock indefinitely.
const RequestTimeout = 60 * time.Second

// ReplySender delivers the single outbound reply for a webhook delivery.
type ReplySender interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server wires the webhook transport to the routing engine.
type Server struct {
	router   *flow.Router
	sessions *session.Store
	sender   ReplySender
	st       store.Store
	addr     string
}

// NewServer creates the API server with its collaborators.
func NewServer(router *flow.Router, sessions *session.Store, sender ReplySender, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		router:   router,
		sessions: sessions,
		sender:   sender,
		st:       st,
		addr:     cfg.Addr,
	}
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.healthHandler)
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/messages", s.messagesHandler)
	return mux
}

// Run starts the HTTP server and blocks until it fails.
func (s *Server) Run() error {
	slog.Info("Server.Run: LineBridge API listening", "addr", s.addr)
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
