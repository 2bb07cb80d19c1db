// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType represents the type of event.
type EventType string

const (
	TreasuryInitialized EventType = "treasury.initialized"
	PoolCreated         EventType = "pool.created"
	LiquidityAdded      EventType = "liquidity.added"
	LiquidityRemoved    EventType = "liquidity.removed"
	Swapped             EventType = "pool.swapped"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBase stamps an event of the given type with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// PoolEvent is implemented by events that carry the pool state after the transition.
type PoolEvent interface {
	Event
	PoolAddress() solana.PublicKey
	Reserves() (uint64, uint64)
}

// TreasuryInitializedEvent is emitted once when the treasury singleton is created.
type TreasuryInitializedEvent struct {
	BaseEvent
	Treasury  solana.PublicKey
	Authority solana.PublicKey
}

// PoolCreatedEvent is emitted when a pool for a new mint pair is created.
type PoolCreatedEvent struct {
	BaseEvent
	Pool   solana.PublicKey
	MintA  solana.PublicKey
	MintB  solana.PublicKey
	LPMint solana.PublicKey
	FeeBps uint16
}

func (e PoolCreatedEvent) PoolAddress() solana.PublicKey { return e.Pool }
func (e PoolCreatedEvent) Reserves() (uint64, uint64)    { return 0, 0 }

// LiquidityAddedEvent is emitted after a successful deposit.
type LiquidityAddedEvent struct {
	BaseEvent
	Pool     solana.PublicKey
	User     solana.PublicKey
	AmountA  uint64
	AmountB  uint64
	Minted   uint64
	ReserveA uint64
	ReserveB uint64
	LPSupply uint64
}

func (e LiquidityAddedEvent) PoolAddress() solana.PublicKey { return e.Pool }
func (e LiquidityAddedEvent) Reserves() (uint64, uint64)    { return e.ReserveA, e.ReserveB }

// LiquidityRemovedEvent is emitted after a successful withdrawal.
type LiquidityRemovedEvent struct {
	BaseEvent
	Pool     solana.PublicKey
	User     solana.PublicKey
	Burned   uint64
	AmountA  uint64
	AmountB  uint64
	ReserveA uint64
	ReserveB uint64
	LPSupply uint64
}

func (e LiquidityRemovedEvent) PoolAddress() solana.PublicKey { return e.Pool }
func (e LiquidityRemovedEvent) Reserves() (uint64, uint64)    { return e.ReserveA, e.ReserveB }

// SwapEvent is emitted after a successful swap.
type SwapEvent struct {
	BaseEvent
	Pool        solana.PublicKey
	User        solana.PublicKey
	InputMint   solana.PublicKey
	AmountIn    uint64
	AmountOut   uint64
	Fee         uint64
	ProtocolFee uint64
	ReserveA    uint64
	ReserveB    uint64
}

func (e SwapEvent) PoolAddress() solana.PublicKey { return e.Pool }
func (e SwapEvent) Reserves() (uint64, uint64)    { return e.ReserveA, e.ReserveB }
