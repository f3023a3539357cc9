package server

import (
	"log"
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"skyduel/internal/cache"
	"skyduel/internal/database"
	"skyduel/internal/game"
	"skyduel/internal/wallet"
)

type FiberServer struct {
	*fiber.App

	db       database.Service
	cache    cache.Service
	wallet   *wallet.RedisWallet
	pattern  game.PatternStore
	sessions *game.SessionTracker
	hub      *game.Hub
	coords   map[game.GameType]*game.Coordinator
}

func New() *FiberServer {
	cfg := game.ConfigFromEnv()

	db := database.New()

	redisService := cache.New()
	if redisService == nil {
		log.Fatal("[SERVER] Redis is required for wallet and pattern storage")
	}

	w := wallet.New(redisService.GetClient())
	pattern := game.NewRedisPatternStore(redisService.GetClient())
	store := database.NewRoundStore(db.DB())
	hub := game.NewHub()
	sessions := game.NewSessionTracker(cfg.SessionTTL)

	coords := make(map[game.GameType]*game.Coordinator, 2)
	for _, gt := range []game.GameType{game.GameTypeAviator, game.GameTypeDragonTiger} {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		coord, err := game.NewCoordinator(cfg, gt, rng, game.CoordinatorDeps{
			Wallet:   w,
			Identity: w,
			Pattern:  pattern,
			Store:    store,
			Hub:      hub,
		})
		if err != nil {
			log.Fatalf("[SERVER] Failed to start %s coordinator: %v", gt, err)
		}
		coords[gt] = coord
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "skyduel",
			AppName:       "skyduel",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:       db,
		cache:    redisService,
		wallet:   w,
		pattern:  pattern,
		sessions: sessions,
		hub:      hub,
		coords:   coords,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()

	log.Println("[SERVER] Coordinators started for aviator and dragontiger")

	return server
}

// coordinator resolves the coordinator for a request's game type.
func (s *FiberServer) coordinator(gt game.GameType) (*game.Coordinator, bool) {
	coord, ok := s.coords[gt]
	return coord, ok
}

// Shutdown closes external connections. Round state is persisted on
// every mutation, so in-flight rounds survive the restart.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}
