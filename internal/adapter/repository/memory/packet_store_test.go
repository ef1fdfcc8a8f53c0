package memory

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/redpacket-backend/internal/domain"
	"github.com/simaogato/redpacket-backend/internal/usecase/split"
)

func newSeededStore(seed uint64) *PacketStore {
	return NewPacketStore(split.NewSplitter(rand.New(rand.NewPCG(seed, seed)).Float64).Split)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPacketStore_Create(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(1)

	packet, err := store.Create(ctx, 3, dec("10.00"))
	require.NoError(t, err)

	assert.NotEmpty(t, packet.ID)
	assert.Equal(t, 3, packet.TotalShares)
	assert.Equal(t, 3, packet.RemainingShares)
	assert.True(t, packet.RemainingAmount.Equal(dec("10.00")))
	assert.False(t, packet.CreatedAt.IsZero())
	assert.Equal(t, 1, store.Count())

	stored, err := store.Get(ctx, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, packet, stored)
}

func TestPacketStore_CreateRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(1)

	_, err := store.Create(ctx, 0, dec("10.00"))
	assert.True(t, errors.Is(err, domain.ErrMalformed))

	_, err = store.Create(ctx, 2, dec("-1"))
	assert.True(t, errors.Is(err, domain.ErrMalformed))

	assert.Equal(t, 0, store.Count())
}

func TestPacketStore_CreateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSeededStore(1).Create(ctx, 1, dec("1.00"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPacketStore_ClaimUnknownPacket(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(1)
	packet, err := store.Create(ctx, 2, dec("4.00"))
	require.NoError(t, err)

	outcome, err := store.Claim(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimNotFound, outcome.Status)
	assert.Equal(t, "no-such-id", outcome.PacketID)

	// Nothing else was touched.
	stored, err := store.Get(ctx, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, packet, stored)
	assert.Equal(t, 1, store.Count())
}

func TestPacketStore_SingleShare(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(2)
	packet, err := store.Create(ctx, 1, dec("5.00"))
	require.NoError(t, err)

	first, err := store.Claim(ctx, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimGranted, first.Status)
	assert.True(t, first.Amount.Equal(dec("5.00")), "got %s", first.Amount)

	second, err := store.Claim(ctx, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimExhausted, second.Status)

	stored, err := store.Get(ctx, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.RemainingShares)
	assert.True(t, stored.RemainingAmount.IsZero())
	assert.True(t, stored.Drift.IsZero())
}

func TestPacketStore_ThreeSequentialClaimsSumToTotal(t *testing.T) {
	ctx := context.Background()

	for seed := uint64(0); seed < 50; seed++ {
		store := newSeededStore(seed)
		packet, err := store.Create(ctx, 3, dec("10.00"))
		require.NoError(t, err)

		total := decimal.Zero
		for i := 0; i < 3; i++ {
			outcome, err := store.Claim(ctx, packet.ID)
			require.NoError(t, err)
			require.Equal(t, domain.ClaimGranted, outcome.Status)
			require.True(t, outcome.Amount.Equal(outcome.Amount.Round(2)))
			total = total.Add(outcome.Amount)

			stored, err := store.Get(ctx, packet.ID)
			require.NoError(t, err)
			require.Equal(t, 2-i, stored.RemainingShares, "shares must drop by exactly one")
		}

		assert.True(t, total.LessThanOrEqual(dec("10.00")), "seed %d: total %s", seed, total)
		assert.True(t, total.GreaterThanOrEqual(dec("9.99")), "seed %d: total %s", seed, total)

		fourth, err := store.Claim(ctx, packet.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ClaimExhausted, fourth.Status)
	}
}

func TestPacketStore_DriftIsRecorded(t *testing.T) {
	// 0.01 over three shares: the first claim takes the forced minimum and
	// empties the packet, the second is still forced to 0.01 and overdraws.
	ctx := context.Background()
	store := NewPacketStore(split.NewSplitter(func() float64 { return 0.5 }).Split)
	packet, err := store.Create(ctx, 3, dec("0.01"))
	require.NoError(t, err)

	first, err := store.Claim(ctx, packet.ID)
	require.NoError(t, err)
	assert.True(t, first.Amount.Equal(dec("0.01")))

	second, err := store.Claim(ctx, packet.ID)
	require.NoError(t, err)
	assert.True(t, second.Amount.Equal(dec("0.01")), "granted amount is not reduced")

	third, err := store.Claim(ctx, packet.ID)
	require.NoError(t, err)
	assert.True(t, third.Amount.IsZero())

	stored, err := store.Get(ctx, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.RemainingShares)
	assert.True(t, stored.RemainingAmount.IsZero(), "remaining amount is clamped at zero")
	assert.True(t, stored.Drift.Equal(dec("0.01")), "drift %s", stored.Drift)
}

func TestPacketStore_ConcurrentClaimsOnLastShare(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(3)

	for round := 0; round < 20; round++ {
		packet, err := store.Create(ctx, 1, dec("1.00"))
		require.NoError(t, err)

		const claimants = 32
		outcomes := make(chan domain.ClaimOutcome, claimants)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < claimants; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				outcome, err := store.Claim(ctx, packet.ID)
				assert.NoError(t, err)
				outcomes <- outcome
			}()
		}
		close(start)
		wg.Wait()
		close(outcomes)

		granted, exhausted := 0, 0
		for outcome := range outcomes {
			switch outcome.Status {
			case domain.ClaimGranted:
				granted++
			case domain.ClaimExhausted:
				exhausted++
			}
		}
		assert.Equal(t, 1, granted)
		assert.Equal(t, claimants-1, exhausted)
	}
}

func TestPacketStore_ExactlyNGrantedUnderContention(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(4)

	const shares = 25
	const claimants = 100
	packet, err := store.Create(ctx, shares, dec("100.00"))
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		granted []decimal.Decimal
		wg      sync.WaitGroup
	)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := store.Claim(ctx, packet.ID)
			assert.NoError(t, err)
			if outcome.IsGranted() {
				mu.Lock()
				granted = append(granted, outcome.Amount)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, granted, shares)

	total := decimal.Sum(decimal.Zero, granted...)
	stored, err := store.Get(ctx, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.RemainingShares)
	assert.True(t, stored.RemainingAmount.IsZero())
	// Every cent is accounted for: granted = total + drift.
	assert.True(t, total.Equal(dec("100.00").Add(stored.Drift)), "total %s drift %s", total, stored.Drift)
}

func TestPacketStore_DifferentPacketsDoNotBlockEachOther(t *testing.T) {
	ctx := context.Background()

	blocked := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := func(remainingShares int, remainingAmount decimal.Decimal) decimal.Decimal {
		if remainingAmount.Equal(dec("99.00")) {
			once.Do(func() { close(blocked) })
			<-release
		}
		return split.Split(remainingShares, remainingAmount, func() float64 { return 0.5 })
	}
	store := NewPacketStore(slow)

	slowPacket, err := store.Create(ctx, 2, dec("99.00"))
	require.NoError(t, err)
	fastPacket, err := store.Create(ctx, 2, dec("1.00"))
	require.NoError(t, err)

	go func() {
		_, _ = store.Claim(ctx, slowPacket.ID)
	}()
	<-blocked

	done := make(chan domain.ClaimOutcome, 1)
	go func() {
		outcome, _ := store.Claim(ctx, fastPacket.ID)
		done <- outcome
	}()

	select {
	case outcome := <-done:
		assert.Equal(t, domain.ClaimGranted, outcome.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("claim on an unrelated packet was blocked")
	}
	close(release)
}

func TestPacketStore_ClaimHonoursCancelledContext(t *testing.T) {
	store := newSeededStore(5)
	packet, err := store.Create(context.Background(), 1, dec("1.00"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Claim(ctx, packet.ID)
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := store.Get(context.Background(), packet.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RemainingShares)
}

func TestPacketStore_GetUnknown(t *testing.T) {
	_, err := newSeededStore(1).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPacketNotFound)
}

func TestPacketStore_ListOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(1)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var ids []string
	for i := 0; i < 4; i++ {
		p, err := store.Create(ctx, 1, dec("1.00"))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	packets, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, packets, 4)
	for i, p := range packets {
		assert.Equal(t, ids[i], p.ID)
	}
}
