package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	// Polling gateway
	api.Get("/game/state", s.getStateHandler)
	api.Post("/game/tick", s.tickHandler)
	api.Post("/game/heartbeat", s.heartbeatHandler)

	// Bet lifecycle
	api.Post("/game/bet", s.placeBetHandler)
	api.Post("/game/cashout", s.cashoutHandler)
	api.Post("/game/cancel", s.cancelBetHandler)

	// Wallet admin
	api.Get("/user/:userId/balance", s.getUserBalanceHandler)
	api.Post("/user/:userId/balance", s.setUserBalanceHandler)

	// Operator outcome overrides
	admin := s.App.Group("/admin")
	admin.Post("/pattern", s.appendPatternHandler)
	admin.Delete("/pattern", s.clearPatternHandler)

	// Live feed
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	engines := fiber.Map{}
	for gt, coord := range s.coords {
		snap := coord.Snapshot()
		status := "running"
		if err := coord.Halted(); err != nil {
			status = "halted: " + err.Error()
		}
		engines[string(gt)] = fiber.Map{
			"status": status,
			"round":  snap.RoundNumber,
			"phase":  snap.Phase,
		}
	}

	health := fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"engines":  engines,
		"game": fiber.Map{
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	return c.JSON(health)
}
