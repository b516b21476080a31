// Package repository implements MySQL persistence for users, sessions,
// one-time tokens, todos and audit logs. It exposes sentinel errors so the
// service layer can map storage failures onto its own error taxonomy
// without inspecting driver internals.
package repository

import (
	"errors"
	"strings"
)

// ErrDuplicate is returned when an insert or update violates a unique
// constraint (local username, google sub, microsoft (tid, oid) pair).
// Distinct from sql.ErrNoRows so concurrent registration races surface as
// a conflict, never as a missing row.
var ErrDuplicate = errors.New("duplicate key")

// isDuplicate detects MySQL error 1062 (ER_DUP_ENTRY). The unique indexes
// in the schema are the authoritative guard; the service layer's
// check-then-act exists only for friendlier messages.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
