package models

import "time"

// TicketStatus is the lifecycle state of a loan request ticket.
type TicketStatus string

const (
	TicketStatusReceived    TicketStatus = "received"
	TicketStatusUnderReview TicketStatus = "under_review"
	TicketStatusContacted   TicketStatus = "contacted"
	TicketStatusClosed      TicketStatus = "closed"
	TicketStatusRejected    TicketStatus = "rejected"
)

// TicketTransitions is the status adjacency table. Any transition not listed
// here is rejected, with the allowed set echoed back to the caller.
var TicketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusReceived:    {TicketStatusUnderReview, TicketStatusRejected},
	TicketStatusUnderReview: {TicketStatusContacted, TicketStatusRejected},
	TicketStatusContacted:   {TicketStatusClosed, TicketStatusRejected},
}

// CanTransition reports whether from -> to is a legal status transition.
func CanTransition(from, to TicketStatus) bool {
	for _, allowed := range TicketTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed || s == TicketStatusRejected
}

// RequiresComment reports whether moving to this status needs an
// accompanying comment.
func (s TicketStatus) RequiresComment() bool {
	return s == TicketStatusClosed || s == TicketStatusRejected
}

// TicketPriority orders tickets in the finance queue.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
)

// LoanTicket is a customer-submitted financing inquiry. The requester fields
// are a snapshot taken at submission time, not a live join. Version guards
// status/assignee/escalation writes via optimistic concurrency; comments do
// not bump it.
type LoanTicket struct {
	ID string `json:"id" db:"id"`

	// Requester snapshot
	RequesterID       string `json:"requester_id" db:"requester_id"`
	RequesterName     string `json:"requester_name" db:"requester_name"`
	RequesterEmail    string `json:"requester_email" db:"requester_email"`
	RequesterPhone    string `json:"requester_phone" db:"requester_phone"`
	RequesterLocation string `json:"requester_location" db:"requester_location"`

	// Loan parameters
	LoanType         string  `json:"loan_type" db:"loan_type"`
	LoanCategory     string  `json:"loan_category" db:"loan_category"`
	PropertyValue    float64 `json:"property_value" db:"property_value"`
	LoanAmountNeeded float64 `json:"loan_amount_needed" db:"loan_amount_needed"`
	TenureMonths     int     `json:"tenure_months" db:"tenure_months"`
	MonthlyIncome    float64 `json:"monthly_income" db:"monthly_income"`

	Status           TicketStatus   `json:"status" db:"status"`
	AssigneeID       *string        `json:"assignee_id,omitempty" db:"assignee_id"`
	Version          int            `json:"version" db:"version"`
	Priority         TicketPriority `json:"priority" db:"priority"`
	SLADueAt         time.Time      `json:"sla_due_at" db:"sla_due_at"`
	IsEscalated      bool           `json:"is_escalated" db:"is_escalated"`
	EscalationReason *string        `json:"escalation_reason,omitempty" db:"escalation_reason"`
	LastActivityAt   time.Time      `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
}

// TicketComment is an append-only note on a ticket.
type TicketComment struct {
	ID        string    `json:"id" db:"id"`
	TicketID  string    `json:"ticket_id" db:"ticket_id"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	Body      string    `json:"body" db:"body"`
	IsPublic  bool      `json:"is_public" db:"is_public"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TicketAssignment records one assignment handover.
type TicketAssignment struct {
	ID         string    `json:"id" db:"id"`
	TicketID   string    `json:"ticket_id" db:"ticket_id"`
	AssigneeID string    `json:"assignee_id" db:"assignee_id"`
	AssignedBy string    `json:"assigned_by" db:"assigned_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// TicketAuditEntry is an append-only record of a ticket mutation.
type TicketAuditEntry struct {
	ID        string    `json:"id" db:"id"`
	TicketID  string    `json:"ticket_id" db:"ticket_id"`
	ActorID   string    `json:"actor_id" db:"actor_id"`
	Action    string    `json:"action" db:"action"`
	OldValue  *string   `json:"old_value,omitempty" db:"old_value"`
	NewValue  *string   `json:"new_value,omitempty" db:"new_value"`
	Comment   *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Employee is the staff directory entry used for assignment validation and
// auto-assignment.
type Employee struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Department string    `json:"department" db:"department"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

const DepartmentFinance = "finance"
