package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact about an aggregate, published after it was persisted
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent holds the envelope every event carries. OccurredAt is the
// business time of the change, taken from the caller's clock.
type BaseDomainEvent struct {
	ID       uuid.UUID `json:"id"`
	Type     string    `json:"type"`
	At       time.Time `json:"occurred_at"`
	AggID    uuid.UUID `json:"aggregate_id"`
	AggType  string    `json:"aggregate_type"`
	TenantOf uuid.UUID `json:"tenant_id"`
}

// NewBaseDomainEvent creates an event envelope stamped with occurredAt
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID, occurredAt time.Time) BaseDomainEvent {
	return BaseDomainEvent{
		ID:       uuid.New(),
		Type:     eventType,
		At:       occurredAt.UTC(),
		AggID:    aggID,
		AggType:  aggType,
		TenantOf: tenantID,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.AggID }
func (e *BaseDomainEvent) AggregateType() string  { return e.AggType }
func (e *BaseDomainEvent) TenantID() uuid.UUID    { return e.TenantOf }
