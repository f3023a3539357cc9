package game

import "math/rand"

// chooseWinner picks the dragontiger winning side for the given stake
// totals. Selection is not uniform: the side(s) carrying the strictly
// lowest total stake win, minimizing payout liability. Ties for the
// lowest total break uniformly at random; with no stakes at all the
// pick is uniform over every side.
func chooseWinner(stakes map[Side]float64, rng *rand.Rand) Side {
	total := 0.0
	for _, s := range Sides {
		total += stakes[s]
	}
	if total == 0 {
		return Sides[rng.Intn(len(Sides))]
	}

	lowest := []Side{}
	var lowestStake float64
	for _, s := range Sides {
		st := stakes[s]
		if len(lowest) == 0 || st < lowestStake {
			lowest = []Side{s}
			lowestStake = st
		} else if st == lowestStake {
			lowest = append(lowest, s)
		}
	}
	if len(lowest) == 1 {
		return lowest[0]
	}
	return lowest[rng.Intn(len(lowest))]
}

// drawCards produces a dragon/tiger card pair consistent with the
// decided winner: the winning side's card outranks the other, or both
// ranks match for a tie. Suits are uniform and cosmetic.
func drawCards(winner Side, rng *rand.Rand) (dragon, tiger Card) {
	if winner == SideTie {
		rank := MinRank + rng.Intn(MaxRank-MinRank+1)
		suits := rng.Perm(len(Suits))
		dragon = Card{Rank: rank, Suit: Suits[suits[0]]}
		tiger = Card{Rank: rank, Suit: Suits[suits[1]]}
		return dragon, tiger
	}

	// Two distinct ranks, higher to the winner.
	hi := MinRank + 1 + rng.Intn(MaxRank-MinRank)
	lo := MinRank + rng.Intn(hi-MinRank)
	high := Card{Rank: hi, Suit: Suits[rng.Intn(len(Suits))]}
	low := Card{Rank: lo, Suit: Suits[rng.Intn(len(Suits))]}
	if winner == SideDragon {
		return high, low
	}
	return low, high
}

// sideOdds returns the payout multiplier for a winning side.
func (c Config) sideOdds(s Side) float64 {
	switch s {
	case SideDragon:
		return c.DragonOdds
	case SideTiger:
		return c.TigerOdds
	case SideTie:
		return c.TieOdds
	}
	return 0
}
