package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// SplitFunc computes one claimant's amount from the packet state it is given.
// It must not touch shared state: PacketRepository calls it while holding the packet's lock.
type SplitFunc func(remainingShares int, remainingAmount decimal.Decimal) decimal.Decimal

// PacketRepository defines the interface for packet storage and the claim primitive
type PacketRepository interface {
	// Create allocates and stores a new packet; it is visible to Claim as soon as Create returns
	Create(ctx context.Context, totalShares int, totalAmount decimal.Decimal) (Packet, error)

	// Claim takes one share of a packet.
	// Claims on the same packet are serialized; claims on different packets never block each other.
	// The only error is a context error observed before the claim started.
	Claim(ctx context.Context, packetID string) (ClaimOutcome, error)

	// Get returns a snapshot of a packet, or ErrPacketNotFound
	Get(ctx context.Context, packetID string) (Packet, error)

	// List returns snapshots of every packet, oldest first
	List(ctx context.Context) ([]Packet, error)

	// Count returns the number of stored packets
	Count() int
}

// Connection is an open outbound channel to one client.
type Connection interface {
	ClientID() string
	// Send writes v as one JSON text message
	Send(ctx context.Context, v any) error
	Close() error
}

// ConnectionRegistry tracks which clients are currently reachable.
// The first registration of a client ID wins until it is unregistered.
type ConnectionRegistry interface {
	// Register stores conn unless clientID is already registered; reports whether conn was stored
	Register(clientID string, conn Connection) bool

	// Unregister removes clientID; reports whether it was present
	Unregister(clientID string) bool

	// Lookup returns the connection registered for clientID
	Lookup(clientID string) (Connection, bool)

	// Count returns the number of registered connections
	Count() int

	// Connections returns a snapshot of every registered connection
	Connections() []Connection
}

// Notifier delivers claim outcomes to the client that asked for them.
type Notifier interface {
	Publish(ctx context.Context, clientID string, outcome ClaimOutcome) DeliveryResult
}

// Broadcaster announces new packets to every connected client.
type Broadcaster interface {
	Broadcast(ctx context.Context, event PacketCreated) BroadcastReport
}
