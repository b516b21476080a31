package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// TodoRepo persists todos. Ownership scoping happens in SQL: guests only
// ever see their own rows, admins see everything.
type TodoRepo struct{ DB *sql.DB }

func NewTodoRepo(db *sql.DB) *TodoRepo { return &TodoRepo{DB: db} }

const todoColumns = "id, owner_id, description, due_date, priority, created_at, updated_at"

// Create inserts a todo row.
func (r *TodoRepo) Create(ctx context.Context, t *model.Todo) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO todos ("+todoColumns+") VALUES (?,?,?,?,?,?,?)",
		t.ID.String(), t.OwnerID.String(), t.Description, t.DueDate,
		string(t.Priority), t.CreatedAt, t.UpdatedAt)
	return err
}

// Update rewrites the mutable columns of a todo.
func (r *TodoRepo) Update(ctx context.Context, t *model.Todo) error {
	t.UpdatedAt = time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		"UPDATE todos SET description=?, due_date=?, priority=?, updated_at=? WHERE id=?",
		t.Description, t.DueDate, string(t.Priority), t.UpdatedAt, t.ID.String())
	return err
}

// Delete removes a todo row.
func (r *TodoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM todos WHERE id=?", id.String())
	return err
}

// GetByID fetches one todo.
func (r *TodoRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Todo, error) {
	return scanTodo(r.DB.QueryRowContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id=? LIMIT 1", id.String()))
}

// ListByOwner returns one user's todos, newest first.
func (r *TodoRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Todo, error) {
	return r.list(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE owner_id=? ORDER BY created_at DESC",
		ownerID.String())
}

// ListAll returns every todo (admin view), newest first.
func (r *TodoRepo) ListAll(ctx context.Context) ([]*model.Todo, error) {
	return r.list(ctx, "SELECT "+todoColumns+" FROM todos ORDER BY created_at DESC")
}

func (r *TodoRepo) list(ctx context.Context, query string, args ...any) ([]*model.Todo, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var todos []*model.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func scanTodo(s scanner) (*model.Todo, error) {
	var (
		t        model.Todo
		id       string
		ownerID  string
		dueDate  sql.NullTime
		priority string
	)
	err := s.Scan(&id, &ownerID, &t.Description, &dueDate, &priority, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if t.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return nil, err
	}
	t.DueDate = timePtr(dueDate)
	t.Priority = model.Priority(priority)
	return &t, nil
}
