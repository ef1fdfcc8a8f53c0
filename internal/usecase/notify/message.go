package notify

import (
	"github.com/simaogato/redpacket-backend/internal/domain"
)

// Message types pushed to clients
const (
	TypeClaimResult   = "claim_result"
	TypePacketCreated = "packet_created"
)

// ClaimResultMessage is pushed to the client that submitted a claim
type ClaimResultMessage struct {
	Type     string `json:"type"`
	PacketID string `json:"packet_id"`
	Status   string `json:"status"`
	Amount   string `json:"amount,omitempty"` // only set when granted
	Message  string `json:"message"`
}

// PacketCreatedMessage is broadcast to every client when a packet is distributed
type PacketCreatedMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Time int64  `json:"time"` // Unix milliseconds
}

// NewClaimResultMessage renders a claim outcome for the wire
func NewClaimResultMessage(outcome domain.ClaimOutcome) ClaimResultMessage {
	msg := ClaimResultMessage{
		Type:     TypeClaimResult,
		PacketID: outcome.PacketID,
		Status:   string(outcome.Status),
		Message:  outcome.Message(),
	}
	if outcome.IsGranted() {
		msg.Amount = outcome.Amount.StringFixed(domain.AmountPlaces)
	}
	return msg
}

// NewPacketCreatedMessage renders a packet announcement for the wire
func NewPacketCreatedMessage(event domain.PacketCreated) PacketCreatedMessage {
	return PacketCreatedMessage{
		Type: TypePacketCreated,
		ID:   event.ID,
		Time: event.Time.UnixMilli(),
	}
}
