// Package server wraps http.Server with the timeouts and graceful shutdown
// the bridge needs.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"slack-jira-bridge/internal/common/logging"
)

// Server is the bridge's HTTP server.
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
	logger  logging.Logger
	errCh   chan error
}

// New creates a server listening on the given port. tlsCert and tlsKey may
// be empty to serve plain HTTP. Slash commands must be answered within the
// platform's three second deadline, so the write timeout stays tight.
func New(handler http.Handler, port, tlsCert, tlsKey string, logger logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
		logger:  logger,
		errCh:   make(chan error, 1),
	}
}

// Start begins serving in a background goroutine. Listen failures are
// delivered on Errors().
func (s *Server) Start() {
	useTLS := s.tlsCert != "" && s.tlsKey != ""
	if useTLS {
		s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	s.logger.Info("server listening",
		logging.String("addr", s.srv.Addr),
		logging.Bool("tls", useTLS))

	go func() {
		var err error
		if useTLS {
			err = s.srv.ListenAndServeTLS(s.tlsCert, s.tlsKey)
		} else {
			err = s.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.errCh <- err
		}
	}()
}

// Errors reports a fatal serve error, if any.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
