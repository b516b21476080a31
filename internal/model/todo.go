package model

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the todo priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Todo mirrors the `todos` table. Todos are owned by exactly one user and
// are cascade-deleted with their owner.
type Todo struct {
	ID          uuid.UUID  // todos.id
	OwnerID     uuid.UUID  // todos.owner_id
	Description string     // todos.description
	DueDate     *time.Time // todos.due_date (nullable)
	Priority    Priority   // todos.priority
	CreatedAt   time.Time  // todos.created_at
	UpdatedAt   time.Time  // todos.updated_at
}
