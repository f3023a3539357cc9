package game

import (
	"math/rand"
	"testing"
)

func TestChooseWinner_LowestStakeWins(t *testing.T) {
	tests := []struct {
		name   string
		stakes map[Side]float64
		want   Side
	}{
		{
			name:   "dragon lowest",
			stakes: map[Side]float64{SideDragon: 10, SideTiger: 50, SideTie: 100},
			want:   SideDragon,
		},
		{
			name:   "tiger lowest",
			stakes: map[Side]float64{SideDragon: 80, SideTiger: 20, SideTie: 100},
			want:   SideTiger,
		},
		{
			name:   "unbacked tie side beats both stacked sides",
			stakes: map[Side]float64{SideDragon: 100, SideTiger: 50},
			want:   SideTie,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Any seed must give the same answer when one side is
			// strictly lowest.
			for seed := int64(0); seed < 20; seed++ {
				got := chooseWinner(tt.stakes, rand.New(rand.NewSource(seed)))
				if got != tt.want {
					t.Fatalf("seed %d: winner = %v, want %v", seed, got, tt.want)
				}
			}
		})
	}
}

func TestChooseWinner_TieBreakStaysAmongLowest(t *testing.T) {
	stakes := map[Side]float64{SideDragon: 10, SideTiger: 10, SideTie: 100}

	seen := make(map[Side]bool)
	for seed := int64(0); seed < 50; seed++ {
		got := chooseWinner(stakes, rand.New(rand.NewSource(seed)))
		if got == SideTie {
			t.Fatalf("seed %d: tie won with the highest stake total", seed)
		}
		seen[got] = true
	}
	if !seen[SideDragon] || !seen[SideTiger] {
		t.Error("tie-break never varied between the tied lowest sides")
	}
}

func TestChooseWinner_NoStakesIsUniform(t *testing.T) {
	seen := make(map[Side]bool)
	for seed := int64(0); seed < 100; seed++ {
		seen[chooseWinner(map[Side]float64{}, rand.New(rand.NewSource(seed)))] = true
	}
	for _, s := range Sides {
		if !seen[s] {
			t.Errorf("side %v never chosen with no stakes", s)
		}
	}
}

func TestDrawCards_ConsistentWithWinner(t *testing.T) {
	for seed := int64(0); seed < 100; seed++ {
		rng := rand.New(rand.NewSource(seed))

		for _, winner := range Sides {
			dragon, tiger := drawCards(winner, rng)

			if dragon.Rank < MinRank || dragon.Rank > MaxRank {
				t.Fatalf("dragon rank %d out of range", dragon.Rank)
			}
			if tiger.Rank < MinRank || tiger.Rank > MaxRank {
				t.Fatalf("tiger rank %d out of range", tiger.Rank)
			}

			switch winner {
			case SideDragon:
				if dragon.Rank <= tiger.Rank {
					t.Fatalf("dragon won but %d <= %d", dragon.Rank, tiger.Rank)
				}
			case SideTiger:
				if tiger.Rank <= dragon.Rank {
					t.Fatalf("tiger won but %d <= %d", tiger.Rank, dragon.Rank)
				}
			case SideTie:
				if dragon.Rank != tiger.Rank {
					t.Fatalf("tie but ranks differ: %d vs %d", dragon.Rank, tiger.Rank)
				}
				if dragon.Suit == tiger.Suit {
					t.Fatal("tie dealt the same card twice")
				}
			}
		}
	}
}

func TestSideOdds(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.sideOdds(SideDragon); got != 2.0 {
		t.Errorf("dragon odds = %v, want 2.0", got)
	}
	if got := cfg.sideOdds(SideTiger); got != 2.0 {
		t.Errorf("tiger odds = %v, want 2.0", got)
	}
	if got := cfg.sideOdds(SideTie); got != 8.0 {
		t.Errorf("tie odds = %v, want 8.0", got)
	}
}
