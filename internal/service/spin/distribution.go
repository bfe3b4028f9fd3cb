package spin

import (
	"math"
	"math/rand"
	"slices"
)

// Wager limits and weighting constants. Percentages always describe a
// distribution summing to 100; draw weights are percentages scaled by
// weightScale, which keeps them integers-ish but any positive monotonic
// scaling would do.
const (
	DefaultMinBet = 10
	DefaultMaxBet = 100

	// Base probability of the single highest tier under the generic rule
	jackpotBasePct = 0.1

	// Percentage assigned to each of the two lowest tiers under the
	// generic rule, before caps
	lowTierPct = 12.0

	// Bets above this get the two lowest tiers capped at 1% each
	lowCapBet = 20

	// Bets at or above this get all tiers below smallTierValue jointly
	// capped at 1%
	absCapBet       = 50
	smallTierValue  = 10
	jointSmallCap   = 1.0
	perLowTierCap   = 1.0
	aboveBetBoost   = 1.25
	weightEpsilon   = 0.001
	weightScale     = 10.0
	percentageTotal = 100.0
)

// Distribution is a discrete probability distribution over payout tiers
// for one wager. Tiers are ascending and deduplicated, the last one is
// the jackpot. Percents sum to 100; Weights are the same shape scaled
// for drawing.
type Distribution struct {
	Bet      int64
	Tiers    []int64
	Percents []float64
	Weights  []float64
}

// Hand-tuned percentage tables for the wager sizes players actually
// pick. Every other bet falls back to the generic scoring formula.
// Tables don't have to sum to exactly 100: covered entries are rescaled
// uniformly if they don't.
var canonicalTemplates = map[int64]map[int64]float64{
	10: {
		0: 20, 3: 18, 5: 15, 7: 12, 8: 10, 10: 12, 15: 6, 20: 4, 50: 1.9, 80: 0.7, 100: 0.4,
	},
	20: {
		0: 22, 6: 18, 10: 15, 14: 12, 16: 10, 20: 11, 30: 6, 40: 3.5, 100: 1.6, 160: 0.6, 200: 0.3,
	},
	50: {
		0: 25, 15: 20, 25: 15, 35: 11, 40: 9, 50: 10, 75: 5, 100: 3, 250: 1.4, 400: 0.4, 500: 0.2,
	},
	100: {
		0: 27, 30: 20, 50: 15, 70: 10, 80: 9, 100: 9.5, 150: 4.5, 200: 3, 500: 1.4, 800: 0.4, 1000: 0.2,
	},
}

// Tiers scale with the stake: a zero and a few sub-bet outcomes, the
// bet itself, and multiples up to the 10x jackpot.
func tiersFor(bet int64) []int64 {
	tiers := []int64{
		0,
		bet * 3 / 10,
		bet / 2,
		bet * 7 / 10,
		bet * 4 / 5,
		bet,
		bet * 3 / 2,
		bet * 2,
		bet * 5,
		bet * 8,
		bet * 10,
	}

	slices.Sort(tiers)
	return slices.Compact(tiers)
}

// NewDistribution derives the tier set and percentage weights for a
// wager. The bet is assumed validated by the caller (positive integer
// within the configured range).
func NewDistribution(bet int64) Distribution {
	tiers := tiersFor(bet)

	pcts := make([]float64, len(tiers))
	for i := range pcts {
		pcts[i] = weightEpsilon
	}

	if tpl, ok := canonicalTemplates[bet]; ok {
		applyTemplate(tiers, pcts, tpl)
	} else {
		applyGeneric(bet, tiers, pcts)
	}

	// No tier may ever be unreachable
	for i, p := range pcts {
		if p < weightEpsilon {
			pcts[i] = weightEpsilon
		}
	}
	normalize(pcts, percentageTotal)

	weights := make([]float64, len(pcts))
	for i, p := range pcts {
		weights[i] = p * weightScale
	}

	return Distribution{Bet: bet, Tiers: tiers, Percents: pcts, Weights: weights}
}

// applyTemplate copies the hand-tuned table onto matching tiers and
// rescales the covered entries so they sum to 100.
func applyTemplate(tiers []int64, pcts []float64, tpl map[int64]float64) {
	covered := make([]int, 0, len(tiers))
	sum := 0.0
	for i, tier := range tiers {
		if p, ok := tpl[tier]; ok {
			pcts[i] = p
			covered = append(covered, i)
			sum += p
		}
	}

	if len(covered) == 0 || sum <= 0 {
		return
	}
	if sum != percentageTotal {
		scale := percentageTotal / sum
		for _, i := range covered {
			pcts[i] *= scale
		}
	}
}

// applyGeneric assigns the two lowest tiers a small fixed share, gives
// the jackpot its tiny base probability, and splits the remainder
// between mid tiers by closeness to the bet on a log scale, favoring
// break-even-or-better outcomes.
func applyGeneric(bet int64, tiers []int64, pcts []float64) {
	n := len(tiers)
	if n < 4 {
		// Degenerate tier set: split evenly
		for i := range pcts {
			pcts[i] = percentageTotal / float64(n)
		}
		return
	}

	low := lowTierPct
	if bet > lowCapBet {
		low = perLowTierCap
	}
	pcts[0], pcts[1] = low, low
	pcts[n-1] = jackpotBasePct

	remainder := percentageTotal - 2*low - jackpotBasePct

	scores := make([]float64, n)
	total := 0.0
	for i := 2; i < n-1; i++ {
		s := 1 / (1 + math.Abs(math.Log(float64(tiers[i])/float64(bet))))
		if tiers[i] >= bet {
			s *= aboveBetBoost
		}
		scores[i] = s
		total += s
	}

	for i := 2; i < n-1; i++ {
		pcts[i] = remainder * scores[i] / total
	}

	if bet >= absCapBet {
		capSmallTiers(tiers, pcts)
	}
}

// capSmallTiers jointly caps every tier below smallTierValue at 1% and
// rescales the group down proportionally when it exceeds that.
func capSmallTiers(tiers []int64, pcts []float64) {
	group := make([]int, 0, len(tiers))
	sum := 0.0
	for i, tier := range tiers {
		if tier < smallTierValue {
			group = append(group, i)
			sum += pcts[i]
		}
	}

	if sum <= jointSmallCap {
		return
	}
	scale := jointSmallCap / sum
	for _, i := range group {
		pcts[i] *= scale
	}
}

func normalize(pcts []float64, total float64) {
	sum := 0.0
	for _, p := range pcts {
		sum += p
	}
	if sum <= 0 {
		return
	}
	scale := total / sum
	for i := range pcts {
		pcts[i] *= scale
	}
}

// Draw picks one tier at random, each with probability proportional to
// its weight. Zero or negative total weight degrades to a uniform pick.
// Returns false only for an empty tier set.
func Draw(rng *rand.Rand, tiers []int64, weights []float64) (int64, bool) {
	if len(tiers) == 0 {
		return 0, false
	}

	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 || len(weights) != len(tiers) {
		return tiers[rng.Intn(len(tiers))], true
	}

	point := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if cumulative >= point {
			return tiers[i], true
		}
	}

	// Float rounding may leave the point a hair past the last bucket
	return tiers[len(tiers)-1], true
}
