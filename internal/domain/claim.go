package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ClaimStatus represents the result of one claim attempt
type ClaimStatus string

const (
	ClaimGranted   ClaimStatus = "granted"
	ClaimExhausted ClaimStatus = "exhausted"
	ClaimNotFound  ClaimStatus = "not_found"
)

// ClaimRequest is one client's attempt to take a share of a packet.
type ClaimRequest struct {
	PacketID string
	ClientID string
}

// Validate ensures both identifiers are present
func (r ClaimRequest) Validate() error {
	if r.PacketID == "" {
		return fmt.Errorf("%w: packet id cannot be empty", ErrMalformed)
	}
	if r.ClientID == "" {
		return fmt.Errorf("%w: client id cannot be empty", ErrMalformed)
	}
	return nil
}

// ClaimOutcome is produced exactly once per processed claim.
// Amount is only meaningful when Status is ClaimGranted.
type ClaimOutcome struct {
	PacketID string
	Status   ClaimStatus
	Amount   decimal.Decimal
}

// Granted builds a ClaimGranted outcome.
func Granted(packetID string, amount decimal.Decimal) ClaimOutcome {
	return ClaimOutcome{PacketID: packetID, Status: ClaimGranted, Amount: amount}
}

// Exhausted builds a ClaimExhausted outcome.
func Exhausted(packetID string) ClaimOutcome {
	return ClaimOutcome{PacketID: packetID, Status: ClaimExhausted, Amount: decimal.Zero}
}

// NotFound builds a ClaimNotFound outcome.
func NotFound(packetID string) ClaimOutcome {
	return ClaimOutcome{PacketID: packetID, Status: ClaimNotFound, Amount: decimal.Zero}
}

// IsGranted reports whether the claim took a share.
func (o ClaimOutcome) IsGranted() bool {
	return o.Status == ClaimGranted
}

// Message renders the outcome as the text shown to the claimant.
func (o ClaimOutcome) Message() string {
	switch o.Status {
	case ClaimGranted:
		return fmt.Sprintf("You grabbed %s", o.Amount.StringFixed(AmountPlaces))
	case ClaimExhausted:
		return "The red packet has been fully claimed :("
	case ClaimNotFound:
		return "Red packet not found"
	default:
		return "Unknown claim result"
	}
}

// Validate ensures the outcome is internally consistent
func (o ClaimOutcome) Validate() error {
	switch o.Status {
	case ClaimGranted:
		if o.Amount.IsNegative() {
			return errors.New("granted amount cannot be negative")
		}
	case ClaimExhausted, ClaimNotFound:
	default:
		return errors.New("claim status must be granted, exhausted or not_found")
	}
	return nil
}
