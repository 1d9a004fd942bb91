// Package server implements the relay's HTTP API: a published-key
// registry and per-address message histories. The relay stores sealed
// blobs only; it cannot read message contents.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/roomwire/roomwire-go/relay/storage"
)

type Server struct {
	port int64
	s    storage.Storage
	e    *echo.Echo
}

// NewServer returns a new server.
func NewServer(port int64, s storage.Storage) *Server {
	return &Server{
		port: port,
		s:    s,
		e:    echo.New(),
	}
}

// StartServer registers routes and serves until StopServer is called.
func (s *Server) StartServer() error {
	e := s.e
	e.Logger.SetLevel(log.INFO)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("10M"))
	s.RegisterRoutes(e)
	return e.Start(fmt.Sprintf(":%d", s.port))
}

// RegisterRoutes attaches the relay handlers to an echo instance.
// Split out from StartServer so tests can drive the handlers without a
// listening socket.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", s.Ping)
	e.POST("/keys/:address", s.RegisterKey)
	e.GET("/keys/:address", s.GetKey)
	e.POST("/messages", s.SubmitMessage)
	e.GET("/history/:key", s.GetHistory)
}

// StopServer shuts the server down gracefully.
func (s *Server) StopServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return s.e.Shutdown(ctx)
}
