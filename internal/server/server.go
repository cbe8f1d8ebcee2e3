package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/middleware"
	"github.com/kyc-flow/kyc_flow/internal/pan"
	"github.com/kyc-flow/kyc_flow/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app  *fiber.App
	addr string
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(deps routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      deps.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// PAN card uploads plus multipart overhead.
		BodyLimit:    pan.MaxImageSize + 1<<20,
		ErrorHandler: middleware.ErrorHandler(deps.Logger),
	})

	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, addr: deps.Cfg.Address()}, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
