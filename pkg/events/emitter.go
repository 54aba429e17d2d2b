// Package events handles realtime notification emission for workflow changes.
// Delivery is best-effort: emission failures are logged and never propagated
// to the operation that triggered them.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// Notifier is the capability the services depend on. The kafka-backed
// Emitter is the production implementation; tests substitute a recorder.
type Notifier interface {
	ChangeSubmitted(ctx context.Context, change *models.PendingChange)
	ChangeReviewed(ctx context.Context, change *models.PendingChange)
	TicketAssigned(ctx context.Context, ticket *models.LoanTicket, actorID string)
	TicketStatusChanged(ctx context.Context, ticket *models.LoanTicket, actorID string, oldStatus models.TicketStatus)
	AssignmentsChanged(ctx context.Context, agentID string, result models.ReconcileResult)
}

// Emitter publishes notification events to Kafka.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// ChangeSubmitted notifies reviewers that a change entered the queue.
func (e *Emitter) ChangeSubmitted(ctx context.Context, change *models.PendingChange) {
	e.publish(ctx, "change.submitted", change.ProposerID, string(change.EntityKind), change.ID, map[string]any{
		"status":   change.Status,
		"is_draft": change.IsDraft,
	})
}

// ChangeReviewed notifies the proposer of a review outcome.
func (e *Emitter) ChangeReviewed(ctx context.Context, change *models.PendingChange) {
	e.publish(ctx, "change.reviewed", change.ProposerID, string(change.EntityKind), change.ID, map[string]any{
		"status": change.Status,
		"reason": change.Reason,
	})
}

// TicketAssigned notifies the new assignee.
func (e *Emitter) TicketAssigned(ctx context.Context, ticket *models.LoanTicket, actorID string) {
	recipient := ""
	if ticket.AssigneeID != nil {
		recipient = *ticket.AssigneeID
	}
	e.publish(ctx, "ticket.assigned", recipient, "loan_ticket", ticket.ID, map[string]any{
		"actor_id": actorID,
		"status":   ticket.Status,
	})
}

// TicketStatusChanged notifies the requester of ticket progress.
func (e *Emitter) TicketStatusChanged(ctx context.Context, ticket *models.LoanTicket, actorID string, oldStatus models.TicketStatus) {
	e.publish(ctx, "ticket.status_changed", ticket.RequesterID, "loan_ticket", ticket.ID, map[string]any{
		"actor_id":   actorID,
		"old_status": oldStatus,
		"new_status": ticket.Status,
	})
}

// AssignmentsChanged notifies an agent that their property set changed.
func (e *Emitter) AssignmentsChanged(ctx context.Context, agentID string, result models.ReconcileResult) {
	e.publish(ctx, "assignment.changed", agentID, "property", "", map[string]any{
		"added":   result.Added,
		"removed": result.Removed,
	})
}

func (e *Emitter) publish(ctx context.Context, eventType, recipientID, entityKind, entityID string, data map[string]any) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.publish")
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Error("Failed to serialize notification payload")
		return
	}

	event := &kafka.NotificationEvent{
		EventType:   eventType,
		RecipientID: recipientID,
		EntityKind:  entityKind,
		EntityID:    entityID,
		Data:        payload,
		Timestamp:   time.Now().UTC(),
		TraceParent: tracing.GetTraceParent(ctx),
	}

	if err := e.producer.PublishNotification(ctx, event); err != nil {
		// Notifier failure must never fail the primary operation.
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"entity_id":  entityID,
		}).Warn("Notification delivery failed")
	}
}

// NopNotifier drops all events; used when Kafka is disabled.
type NopNotifier struct{}

func (NopNotifier) ChangeSubmitted(context.Context, *models.PendingChange) {}
func (NopNotifier) ChangeReviewed(context.Context, *models.PendingChange)  {}
func (NopNotifier) TicketAssigned(context.Context, *models.LoanTicket, string) {
}
func (NopNotifier) TicketStatusChanged(context.Context, *models.LoanTicket, string, models.TicketStatus) {
}
func (NopNotifier) AssignmentsChanged(context.Context, string, models.ReconcileResult) {}
