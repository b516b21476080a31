package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// TodoInfo is the todo projection returned to clients.
type TodoInfo struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     uuid.UUID      `json:"ownerId"`
	Description string         `json:"description"`
	DueDate     *time.Time     `json:"dueDate,omitempty"`
	Priority    model.Priority `json:"priority"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func newTodoInfo(t *model.Todo) TodoInfo {
	return TodoInfo{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// TodoPatch carries the mutable todo fields; nil leaves a field unchanged.
type TodoPatch struct {
	Description *string
	DueDate     *time.Time
	ClearDue    bool
	Priority    *model.Priority
}

// TodoService owns the todo CRUD rules: owners manage their own items,
// admins see and manage everyone's.
type TodoService struct {
	Todos  TodoStore
	Policy Policy
}

func NewTodoService(todos TodoStore) *TodoService {
	return &TodoService{Todos: todos}
}

const maxDescriptionLen = 500

func validateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", BadRequest("Description must not be empty")
	}
	if len(s) > maxDescriptionLen {
		return "", BadRequest("Description too long")
	}
	return s, nil
}

// Create inserts a todo owned by the caller. Priority defaults to medium.
func (s *TodoService) Create(ctx context.Context, ownerID uuid.UUID, description string, dueDate *time.Time, priority model.Priority) (TodoInfo, error) {
	description, err := validateDescription(description)
	if err != nil {
		return TodoInfo{}, err
	}
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return TodoInfo{}, BadRequest("Invalid priority")
	}

	now := time.Now().UTC()
	todo := &model.Todo{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Description: description,
		DueDate:     dueDate,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Todos.Create(ctx, todo); err != nil {
		return TodoInfo{}, err
	}
	return newTodoInfo(todo), nil
}

// Get returns one todo, enforcing the access policy.
func (s *TodoService) Get(ctx context.Context, actorID uuid.UUID, actorRole model.Role, id uuid.UUID) (TodoInfo, error) {
	todo, err := s.load(ctx, actorID, actorRole, id)
	if err != nil {
		return TodoInfo{}, err
	}
	return newTodoInfo(todo), nil
}

// List returns the caller's todos; admins get everyone's when all is set.
func (s *TodoService) List(ctx context.Context, actorID uuid.UUID, actorRole model.Role, all bool) ([]TodoInfo, error) {
	var (
		todos []*model.Todo
		err   error
	)
	if all && actorRole.AtLeast(model.RoleAdmin) {
		todos, err = s.Todos.ListAll(ctx)
	} else {
		todos, err = s.Todos.ListByOwner(ctx, actorID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]TodoInfo, 0, len(todos))
	for _, t := range todos {
		out = append(out, newTodoInfo(t))
	}
	return out, nil
}

// Update applies a patch to a todo the caller may access.
func (s *TodoService) Update(ctx context.Context, actorID uuid.UUID, actorRole model.Role, id uuid.UUID, patch TodoPatch) (TodoInfo, error) {
	todo, err := s.load(ctx, actorID, actorRole, id)
	if err != nil {
		return TodoInfo{}, err
	}

	if patch.Description != nil {
		desc, err := validateDescription(*patch.Description)
		if err != nil {
			return TodoInfo{}, err
		}
		todo.Description = desc
	}
	if patch.ClearDue {
		todo.DueDate = nil
	} else if patch.DueDate != nil {
		todo.DueDate = patch.DueDate
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return TodoInfo{}, BadRequest("Invalid priority")
		}
		todo.Priority = *patch.Priority
	}
	todo.UpdatedAt = time.Now().UTC()

	if err := s.Todos.Update(ctx, todo); err != nil {
		return TodoInfo{}, err
	}
	return newTodoInfo(todo), nil
}

// Delete removes a todo the caller may access.
func (s *TodoService) Delete(ctx context.Context, actorID uuid.UUID, actorRole model.Role, id uuid.UUID) error {
	todo, err := s.load(ctx, actorID, actorRole, id)
	if err != nil {
		return err
	}
	return s.Todos.Delete(ctx, todo.ID)
}

func (s *TodoService) load(ctx context.Context, actorID uuid.UUID, actorRole model.Role, id uuid.UUID) (*model.Todo, error) {
	todo, err := s.Todos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFound("Todo not found")
		}
		return nil, err
	}
	if err := s.Policy.CanAccessTodo(actorID, actorRole, todo.OwnerID); err != nil {
		return nil, err
	}
	return todo, nil
}
