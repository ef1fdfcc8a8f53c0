package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountPlaces is the fixed-point precision of every amount in the system.
const AmountPlaces = 2

// Packet represents a red packet entity in the domain layer.
// TotalShares, TotalAmount, ID and CreatedAt never change after creation;
// the remaining fields only ever decrease, and only through a claim.
type Packet struct {
	ID              string
	TotalShares     int
	RemainingShares int
	TotalAmount     decimal.Decimal
	RemainingAmount decimal.Decimal
	// Drift is the sum of the amounts granted beyond what was left in the packet.
	// The split rule can overdraw the last cents; the ledger clamps at zero and
	// records the difference here instead of hiding it.
	Drift     decimal.Decimal
	CreatedAt time.Time
}

// NewPacket builds a fresh, fully initialised packet with a generated ID.
func NewPacket(totalShares int, totalAmount decimal.Decimal, now time.Time) (*Packet, error) {
	p := &Packet{
		ID:              NewPacketID(),
		TotalShares:     totalShares,
		RemainingShares: totalShares,
		TotalAmount:     totalAmount,
		RemainingAmount: totalAmount,
		Drift:           decimal.Zero,
		CreatedAt:       now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewPacketID returns a random UUID rendered without dashes.
func NewPacketID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Validate ensures the packet adheres to domain rules
func (p *Packet) Validate() error {
	if p.TotalShares <= 0 {
		return fmt.Errorf("%w: total shares must be positive", ErrMalformed)
	}

	if p.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: total amount must be positive", ErrMalformed)
	}

	if !p.TotalAmount.Equal(p.TotalAmount.Truncate(AmountPlaces)) {
		return fmt.Errorf("%w: total amount must have at most %d decimal places", ErrMalformed, AmountPlaces)
	}

	if p.RemainingShares < 0 || p.RemainingShares > p.TotalShares {
		return fmt.Errorf("%w: remaining shares out of range", ErrMalformed)
	}

	if p.RemainingAmount.IsNegative() {
		return fmt.Errorf("%w: remaining amount cannot be negative", ErrMalformed)
	}

	return nil
}

// IsExhausted reports whether every share has been claimed.
func (p *Packet) IsExhausted() bool {
	return p.RemainingShares == 0
}

// ClaimedShares is the number of successful claims so far.
func (p *Packet) ClaimedShares() int {
	return p.TotalShares - p.RemainingShares
}
