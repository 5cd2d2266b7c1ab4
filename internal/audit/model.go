// Package audit records operator actions against the ranking pipeline for
// incident response. Every admin-triggered recompute and prune is logged
// with the authenticated subject that requested it.
package audit

import (
	"time"
)

// Actions recorded by the admin surface.
const (
	ActionRecompute = "recompute_popular"
	ActionPrune     = "prune_deleted"
)

// EntityPopularSnapshot is the entity type for period snapshot mutations.
const EntityPopularSnapshot = "popular_snapshot"

// Entry is a single recorded operator action.
type Entry struct {
	ID         string
	Subject    string // Authenticated subject from the bearer token
	EntityType string
	EntityID   string // Period name, or "all" for a full recompute
	Action     string
	Outcome    string // "success" or "failure"
	CreatedAt  time.Time

	// Request metadata
	RequestID string
	IPAddress string
}

// Record is the input for logging an operator action.
type Record struct {
	Subject    string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string
	RequestID  string
	IPAddress  string
}
