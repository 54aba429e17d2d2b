package models

import "time"

// DashboardStats is the read-only rollup served to the back-office landing
// page. It is computed from the canonical tables and cached with a short TTL.
type DashboardStats struct {
	Properties     CatalogStats       `json:"properties"`
	Banners        CatalogStats       `json:"banners"`
	PendingChanges map[string]int     `json:"pending_changes"`
	Tickets        TicketStats        `json:"tickets"`
	GeneratedAt    time.Time          `json:"generated_at"`
}

type CatalogStats struct {
	Total   int `json:"total"`
	Deleted int `json:"deleted"`
}

type TicketStats struct {
	ByStatus   map[string]int `json:"by_status"`
	Open       int            `json:"open"`
	Escalated  int            `json:"escalated"`
	OverdueSLA int            `json:"overdue_sla"`
}
