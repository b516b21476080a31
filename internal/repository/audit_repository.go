package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// AuditRepo writes audit events into `audit_logs`. Only the queue
// consumer calls it; request handlers publish to the broker instead so a
// slow audit store can never delay authentication.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Insert stores one audit event. Meta is serialized as JSON.
func (r *AuditRepo) Insert(ctx context.Context, e *model.AuditEvent) error {
	var meta []byte
	if len(e.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(e.Meta); err != nil {
			return err
		}
	}
	var userID, entityID any
	if e.UserID != nil {
		userID = e.UserID.String()
	}
	if e.EntityID != nil {
		entityID = e.EntityID.String()
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, meta, ip_address, user_agent, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), userID, e.Action, e.EntityType, entityID,
		meta, e.IPAddress, e.UserAgent, e.CreatedAt)
	return err
}
