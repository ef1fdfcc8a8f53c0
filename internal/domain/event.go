package domain

import "time"

// DeliveryResult is the outcome of one attempt to push a message to a client.
// Callers in the claim path only log and count it.
type DeliveryResult string

const (
	DeliveryDelivered DeliveryResult = "delivered"
	DeliveryAbsent    DeliveryResult = "absent"
	DeliveryFailed    DeliveryResult = "failed"
)

// PacketCreated is broadcast to every connected client when a packet is distributed.
type PacketCreated struct {
	ID   string
	Time time.Time
}

// BroadcastReport counts the recipients of one broadcast.
type BroadcastReport struct {
	Delivered int
	Failed    int
}

// Total is the number of connections the broadcast was attempted on.
func (r BroadcastReport) Total() int {
	return r.Delivered + r.Failed
}
