package http

import (
	"context"
	"net/http"
	"time"
)

// Server envuelve http.Server con timeouts y shutdown ordenado.
type Server struct {
	srv *http.Server
}

// NewServer crea el servidor con los timeouts dados.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{srv: &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}}
}

// Start bloquea sirviendo requests hasta error o Shutdown.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drena conexiones en curso.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
