package server

import (
	"github.com/Ashborn-047/gather-waypoint/internal/config"
	"github.com/Ashborn-047/gather-waypoint/internal/device"
	"github.com/Ashborn-047/gather-waypoint/internal/presence"
	"github.com/Ashborn-047/gather-waypoint/internal/route"
	"github.com/Ashborn-047/gather-waypoint/internal/routing"
	"github.com/Ashborn-047/gather-waypoint/internal/session"
	"github.com/Ashborn-047/gather-waypoint/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	deviceMiddleware := device.Middleware(s.Cfg.DeviceTokenSecret)

	sessions := session.NewService(s.DB)
	router := routing.NewClient(s.Cfg.RoutingURL)

	device.RegisterRoutes(s.App.Group("/devices"), device.NewService(s.Cfg.DeviceTokenSecret))
	session.RegisterRoutes(s.App.Group("/sessions"), sessions, deviceMiddleware)
	presence.RegisterRoutes(s.App.Group("/sessions"), presence.NewService(s.DB, sessions, s.Stream), deviceMiddleware)
	route.RegisterRoutes(s.App.Group("/sessions"), route.NewService(s.DB, sessions, router), deviceMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
