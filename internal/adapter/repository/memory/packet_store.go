package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/redpacket-backend/internal/domain"
)

// packetEntry guards one packet's mutable state with its own lock
type packetEntry struct {
	mu     sync.Mutex
	packet domain.Packet
}

// PacketStore implements domain.PacketRepository in process memory.
// The map lock is only held to find or insert an entry, never while a claim runs,
// so claims on different packets proceed in parallel.
type PacketStore struct {
	mu      sync.RWMutex
	packets map[string]*packetEntry

	split domain.SplitFunc
	now   func() time.Time
}

// NewPacketStore creates an empty store that arbitrates claims with split
func NewPacketStore(split domain.SplitFunc) *PacketStore {
	return &PacketStore{
		packets: make(map[string]*packetEntry),
		split:   split,
		now:     time.Now,
	}
}

// Create allocates and stores a new packet
func (s *PacketStore) Create(ctx context.Context, totalShares int, totalAmount decimal.Decimal) (domain.Packet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Packet{}, err
	}

	packet, err := domain.NewPacket(totalShares, totalAmount, s.now())
	if err != nil {
		return domain.Packet{}, fmt.Errorf("failed to create packet: %w", err)
	}

	entry := &packetEntry{packet: *packet}

	s.mu.Lock()
	s.packets[packet.ID] = entry
	s.mu.Unlock()

	return *packet, nil
}

// Claim takes one share of the packet
func (s *PacketStore) Claim(ctx context.Context, packetID string) (domain.ClaimOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.ClaimOutcome{}, err
	}

	entry, ok := s.lookup(packetID)
	if !ok {
		return domain.NotFound(packetID), nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	p := &entry.packet
	if p.IsExhausted() {
		return domain.Exhausted(packetID), nil
	}

	amount := s.split(p.RemainingShares, p.RemainingAmount)

	left := p.RemainingAmount.Sub(amount)
	if left.IsNegative() {
		p.Drift = p.Drift.Add(left.Neg())
		left = decimal.Zero
	}
	p.RemainingShares--
	p.RemainingAmount = left

	return domain.Granted(packetID, amount), nil
}

// Get returns a snapshot of a packet
func (s *PacketStore) Get(ctx context.Context, packetID string) (domain.Packet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Packet{}, err
	}

	entry, ok := s.lookup(packetID)
	if !ok {
		return domain.Packet{}, fmt.Errorf("packet %s: %w", packetID, domain.ErrPacketNotFound)
	}
	return entry.snapshot(), nil
}

// List returns snapshots of every packet, oldest first
func (s *PacketStore) List(ctx context.Context) ([]domain.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]*packetEntry, 0, len(s.packets))
	for _, entry := range s.packets {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	packets := make([]domain.Packet, 0, len(entries))
	for _, entry := range entries {
		packets = append(packets, entry.snapshot())
	}

	sort.Slice(packets, func(i, j int) bool {
		if packets[i].CreatedAt.Equal(packets[j].CreatedAt) {
			return packets[i].ID < packets[j].ID
		}
		return packets[i].CreatedAt.Before(packets[j].CreatedAt)
	})

	return packets, nil
}

// Count returns the number of stored packets
func (s *PacketStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.packets)
}

func (s *PacketStore) lookup(packetID string) (*packetEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.packets[packetID]
	return entry, ok
}

func (e *packetEntry) snapshot() domain.Packet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.packet
}
