package events

import (
	"context"
	"sync"

	"cashdesk/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange  EventType = "balance_change"
	EventTypeAccountCreated EventType = "account_created"
	EventTypeTransferDone   EventType = "transfer_completed"
	EventTypeBetSettled     EventType = "bet_settled"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent is emitted for every ledger-affecting balance movement
type BalanceChangeEvent struct {
	AccountID     int64
	OldBalance    int64
	NewBalance    int64
	ChangeAmount  int64
	Kind          models.TransactionKind
	TransactionID string
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// AccountCreatedEvent is emitted when provisioning creates a new account
type AccountCreatedEvent struct {
	AccountID   int64
	Username    string
	AccountType models.AccountType
	ParentID    *int64
}

func (e AccountCreatedEvent) Type() EventType {
	return EventTypeAccountCreated
}

// TransferCompletedEvent is emitted after a transfer pair is committed
type TransferCompletedEvent struct {
	TransactionID string
	FromAccountID int64
	ToAccountID   int64
	Amount        int64
	Kind          models.TransactionKind
}

func (e TransferCompletedEvent) Type() EventType {
	return EventTypeTransferDone
}

// BetSettledEvent is emitted after a bet settlement committed
type BetSettledEvent struct {
	BetRef       string
	PlayerID     int64
	StakeAmount  int64
	PayoutAmount int64
}

func (e BetSettledEvent) Type() EventType {
	return EventTypeBetSettled
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the caller
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events raised inside a unit of work and flushes
// them to the real bus only after the database transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful commit. Events are emitted on a
// background context: their processing must not depend on the (possibly
// expired) transaction context.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
