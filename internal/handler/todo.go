package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/service"
)

// TodoHandler serves the todo CRUD endpoints.
type TodoHandler struct {
	Todos *service.TodoService
}

func NewTodoHandler(todos *service.TodoService) *TodoHandler {
	return &TodoHandler{Todos: todos}
}

type createTodoReq struct {
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    string     `json:"priority"`
}
type updateTodoReq struct {
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	ClearDue    bool       `json:"clearDueDate"`
	Priority    *string    `json:"priority"`
}

// Create adds a todo owned by the caller.
func (h *TodoHandler) Create(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createTodoReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	todo, err := h.Todos.Create(ctx, uid, req.Description, req.DueDate, model.Priority(req.Priority))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, todo)
}

// List returns the caller's todos. Admins may pass ?all=true for
// everyone's.
func (h *TodoHandler) List(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	todos, err := h.Todos.List(ctx, uid, callerRole(c), c.QueryParam("all") == "true")
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"todos": todos})
}

// Get returns one todo.
func (h *TodoHandler) Get(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid todo id"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	todo, err := h.Todos.Get(ctx, uid, callerRole(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, todo)
}

// Update patches one todo.
func (h *TodoHandler) Update(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid todo id"})
	}
	var req updateTodoReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	patch := service.TodoPatch{
		Description: req.Description,
		DueDate:     req.DueDate,
		ClearDue:    req.ClearDue,
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		patch.Priority = &p
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	todo, err := h.Todos.Update(ctx, uid, callerRole(c), id, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, todo)
}

// Delete removes one todo.
func (h *TodoHandler) Delete(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid todo id"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Todos.Delete(ctx, uid, callerRole(c), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
