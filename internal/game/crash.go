package game

import (
	"math"
	"math/rand"
)

// stepMultiplier advances the aviator multiplier by one tick and
// reports whether the round crashed on this tick.
//
// Each tick the multiplier grows by a small random increment, then a
// crash probability is evaluated as hazard = (multiplier - 1) * k.
// The round crashes the instant a uniform draw falls below the hazard,
// or the ceiling is reached. When a pattern override fixed this
// round's crash point (CrashTarget > 0) the trajectory still rises
// tick by tick so clients observe a climbing number, but the stopping
// point is the forced value and no hazard is drawn.
func stepMultiplier(cfg Config, r *Round, rng *rand.Rand) (crashed bool) {
	inc := cfg.MinIncrement + rng.Float64()*(cfg.MaxIncrement-cfg.MinIncrement)
	next := roundTo2(r.Multiplier + inc)

	if r.CrashTarget > 0 {
		if next >= r.CrashTarget {
			r.Multiplier = r.CrashTarget
			return true
		}
		r.Multiplier = next
		return false
	}

	if next >= cfg.MaxMultiplier {
		r.Multiplier = cfg.MaxMultiplier
		return true
	}
	r.Multiplier = next

	hazard := (r.Multiplier - 1.0) * cfg.HazardK
	return rng.Float64() < hazard
}

// roundTo2 rounds to the nearest cent. Products like 1.5*2.9 sit just
// below their decimal value in binary, so truncation would short the
// payout by a cent.
func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100.0
}
