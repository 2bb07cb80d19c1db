package metrics

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/solana-amm/internal/events"
)

func TestCollector_RecordTransaction(t *testing.T) {
	c := NewCollector()

	c.RecordTransaction(time.Millisecond, true)
	c.RecordTransaction(time.Millisecond, true)
	c.RecordTransaction(time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transactions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transactions.WithLabelValues("failure")))
}

func TestCollector_ObserveSwap(t *testing.T) {
	c := NewCollector()
	pool := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	c.ObserveEvent(events.SwapEvent{
		BaseEvent:   events.NewBase(events.Swapped),
		Pool:        pool,
		InputMint:   mint,
		ProtocolFee: 60_000,
		ReserveA:    599_940_000,
		ReserveB:    416_875_104,
	})

	assert.Equal(t, 599_940_000.0, testutil.ToFloat64(c.reserves.WithLabelValues(pool.String(), "a")))
	assert.Equal(t, 416_875_104.0, testutil.ToFloat64(c.reserves.WithLabelValues(pool.String(), "b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.swaps.WithLabelValues(pool.String())))
	assert.Equal(t, 60_000.0, testutil.ToFloat64(c.protocolFees.WithLabelValues(mint.String())))

	c.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(c.swaps))
}

func TestCollectors_AreIndependent(t *testing.T) {
	// two collectors must not clash on registration
	a, b := NewCollector(), NewCollector()
	a.RecordTransaction(time.Second, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.transactions.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.transactions.WithLabelValues("success")))
}
