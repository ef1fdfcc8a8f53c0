package split

import (
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/simaogato/redpacket-backend/internal/domain"
)

// MinAmount is the smallest amount a non-final claimant can be granted.
var MinAmount = decimal.New(1, -domain.AmountPlaces)

var two = decimal.NewFromInt(2)

// RandomSource returns a uniformly distributed float in [0, 1).
type RandomSource func() float64

// Split calculates the amount granted to the next claimant of a packet
// Logic:
//  1. The last share takes whatever is left, rounded to 2 decimal places
//  2. Otherwise draw uniformly from [0, 2 * remainingAmount / remainingShares)
//  3. Anything at or below MinAmount is raised to MinAmount
//  4. Truncate to 2 decimal places
//
// The forced minimum is applied after the draw, so a claimant can be granted
// more than is left when the packet is nearly empty. Split does not correct
// for that; the caller clamps its ledger and records the drift.
func Split(remainingShares int, remainingAmount decimal.Decimal, random RandomSource) decimal.Decimal {
	if remainingShares < 1 {
		return decimal.Zero
	}

	if remainingShares == 1 {
		return remainingAmount.Round(domain.AmountPlaces)
	}

	average := remainingAmount.Div(decimal.NewFromInt(int64(remainingShares)))
	amount := decimal.NewFromFloat(random()).Mul(average.Mul(two))

	if amount.LessThanOrEqual(MinAmount) {
		amount = MinAmount
	}

	return amount.Truncate(domain.AmountPlaces)
}

// Splitter binds Split to a random source. It is safe for concurrent use,
// even when the source itself (e.g. a seeded *rand.Rand) is not.
type Splitter struct {
	mu     sync.Mutex
	random RandomSource
}

// NewSplitter creates a Splitter; a nil source falls back to math/rand/v2.
func NewSplitter(random RandomSource) *Splitter {
	if random == nil {
		random = rand.Float64
	}
	return &Splitter{random: random}
}

// Split computes the next claimant's amount. It satisfies domain.SplitFunc.
func (s *Splitter) Split(remainingShares int, remainingAmount decimal.Decimal) decimal.Decimal {
	return Split(remainingShares, remainingAmount, s.draw)
}

func (s *Splitter) draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random()
}
