package game

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config carries every engine timing and payout parameter. The crash
// hazard constant and ceiling were only observed indirectly in
// production, so everything here is overridable through the
// environment rather than hard-coded.
type Config struct {
	BettingWindow time.Duration // bets accepted
	RevealWindow  time.Duration // dragontiger card disclosure
	ResolvedDelay time.Duration // result display before next round
	TickInterval  time.Duration // aviator multiplier step period

	HazardK       float64 // crash probability slope: hazard = (m-1)*k
	MaxMultiplier float64 // hard ceiling, crash forced on reach
	MinIncrement  float64 // per-tick multiplier growth bounds
	MaxIncrement  float64

	MinStake float64
	MaxStake float64

	DragonOdds float64
	TigerOdds  float64
	TieOdds    float64

	HistorySize   int
	SessionTTL    time.Duration
	WalletTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BettingWindow: 5 * time.Second,
		RevealWindow:  2 * time.Second,
		ResolvedDelay: 3 * time.Second,
		TickInterval:  100 * time.Millisecond,
		HazardK:       0.02,
		MaxMultiplier: 100.0,
		MinIncrement:  0.01,
		MaxIncrement:  0.05,
		MinStake:      1.0,
		MaxStake:      10000.0,
		DragonOdds:    2.0,
		TigerOdds:     2.0,
		TieOdds:       8.0,
		HistorySize:   20,
		SessionTTL:    10 * time.Second,
		WalletTimeout: 500 * time.Millisecond,
	}
}

// ConfigFromEnv layers environment overrides on top of the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.BettingWindow = getEnvAsDuration("GAME_BETTING_WINDOW", cfg.BettingWindow)
	cfg.RevealWindow = getEnvAsDuration("GAME_REVEAL_WINDOW", cfg.RevealWindow)
	cfg.ResolvedDelay = getEnvAsDuration("GAME_RESOLVED_DELAY", cfg.ResolvedDelay)
	cfg.TickInterval = getEnvAsDuration("GAME_TICK_INTERVAL", cfg.TickInterval)
	cfg.HazardK = getEnvAsFloat("GAME_HAZARD_K", cfg.HazardK)
	cfg.MaxMultiplier = getEnvAsFloat("GAME_MAX_MULTIPLIER", cfg.MaxMultiplier)
	cfg.MinStake = getEnvAsFloat("GAME_MIN_STAKE", cfg.MinStake)
	cfg.MaxStake = getEnvAsFloat("GAME_MAX_STAKE", cfg.MaxStake)
	cfg.DragonOdds = getEnvAsFloat("GAME_DRAGON_ODDS", cfg.DragonOdds)
	cfg.TigerOdds = getEnvAsFloat("GAME_TIGER_ODDS", cfg.TigerOdds)
	cfg.TieOdds = getEnvAsFloat("GAME_TIE_ODDS", cfg.TieOdds)
	cfg.SessionTTL = getEnvAsDuration("GAME_SESSION_TTL", cfg.SessionTTL)
	cfg.WalletTimeout = getEnvAsDuration("GAME_WALLET_TIMEOUT", cfg.WalletTimeout)
	return cfg
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
