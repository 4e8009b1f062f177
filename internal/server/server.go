package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/crumbway/crumbway/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config        *Config
	httpListener  net.Listener
	httpServer    *http.Server
	metricsServer *http.Server
}

func NewServer(config *Config) *Server {
	return &Server{
		config: config,
	}
}

func (s *Server) Start() error {
	err := s.startHTTPServer()
	if err != nil {
		return err
	}

	err = s.startMetricsServer()
	if err != nil {
		return err
	}

	slog.Info("Server started", "http", s.HttpPort(), "prefix", s.config.Prefix)
	return nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.httpServer.Shutdown(ctx)
	if s.metricsServer != nil {
		s.metricsServer.Shutdown(ctx)
	}

	slog.Info("Server stopped")
}

func (s *Server) HttpPort() int {
	return s.httpListener.Addr().(*net.TCPAddr).Port
}

// Private

func (s *Server) startHTTPServer() error {
	httpAddr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.HttpPort)

	l, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return err
	}
	s.httpListener = l
	s.httpServer = &http.Server{
		Addr:    httpAddr,
		Handler: s.buildHandler(),
	}

	go s.httpServer.Serve(s.httpListener)

	return nil
}

func (s *Server) startMetricsServer() error {
	if s.config.MetricsPort == 0 {
		return nil
	}

	metricsAddr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.MetricsPort)

	l, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Enable())
	s.metricsServer = &http.Server{
		Addr:    metricsAddr,
		Handler: mux,
	}

	go s.metricsServer.Serve(l)

	return nil
}

func (s *Server) buildHandler() http.Handler {
	codec := NewPathCodec(s.config.Prefix)
	cookies := NewCookieRewriter(codec)

	var handler http.Handler

	handler = NewProxyHandler(s.config, codec, cookies)
	handler = WithHandoffMiddleware(codec, cookies, handler)
	handler = WithErrorPageMiddleware(handler)
	handler = WithLoggingMiddleware(slog.Default(), handler)
	handler = WithRequestIDMiddleware(handler)

	return handler
}
