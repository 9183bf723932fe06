package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

type Server struct {
	http *http.Server
}

type Timeouts struct {
	Read  time.Duration
	Write time.Duration
}

func New(addr string, h http.Handler, t Timeouts) *Server {
	return &Server{http: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       t.Read,
		ReadHeaderTimeout: t.Read,
		WriteTimeout:      t.Write,
	}}
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	return ignoreClosed(s.http.ListenAndServe())
}

func (s *Server) Serve(ln net.Listener) error {
	return ignoreClosed(s.http.Serve(ln))
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
