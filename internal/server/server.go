package server

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"kbrag/internal/service"
)

// Asker is the part of the ask service the HTTP surface needs.
type Asker interface {
	Ask(ctx context.Context, query string) (service.Answer, error)
}

type Config struct {
	Addr         string
	AllowOrigins string
}

type Server struct {
	app   *fiber.App
	cfg   Config
	asker Asker
	log   *zap.Logger
	valid *validator.Validate
}

type askRequest struct {
	Query string `json:"query" validate:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(cfg Config, asker Asker, log *zap.Logger) *Server {
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = "*"
	}
	app := fiber.New(fiber.Config{
		BodyLimit:             1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	s := &Server{app: app, cfg: cfg, asker: asker, log: log, valid: validator.New()}
	s.registerRoutes(app.Group("/api"))
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Run() error {
	s.log.Info("server listening", zap.String("addr", s.cfg.Addr))
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) registerRoutes(r fiber.Router) {
	r.Post("/ask", s.Ask)
}

// Ask answers {"query": "..."} with the plain-text answer.
func (s *Server) Ask(ctx *fiber.Ctx) error {
	var req askRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Invalid request body"})
		}
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := s.valid.Struct(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Missing query"})
	}

	res, err := s.asker.Ask(ctx.UserContext(), req.Query)
	if errors.Is(err, service.ErrMissingQuery) {
		return ctx.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "Missing query"})
	}
	if err != nil {
		s.log.Error("ask failed", zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
	s.log.Debug("answered", zap.Strings("sources", res.Sources))
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return ctx.Status(fiber.StatusOK).SendString(res.Text)
}
