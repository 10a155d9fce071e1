package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"quill/internal/tool"
)

// TodoStatus represents the state of a todo item
type TodoStatus string

const (
	StatusPending    TodoStatus = "pending"
	StatusInProgress TodoStatus = "in_progress"
	StatusCompleted  TodoStatus = "completed"
)

// TodoItem represents a single todo task
type TodoItem struct {
	Content    string     `json:"content"`    // Task description (imperative form: "Run tests")
	Status     TodoStatus `json:"status"`     // Current status
	ActiveForm string     `json:"activeForm"` // Present continuous form ("Running tests")
}

// TodoStore holds the todo list for one session
type TodoStore struct {
	todos []TodoItem
	mu    sync.RWMutex
}

func NewTodoStore() *TodoStore {
	return &TodoStore{
		todos: make([]TodoItem, 0),
	}
}

// Todos returns a copy of the current todo list
func (s *TodoStore) Todos() []TodoItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	todos := make([]TodoItem, len(s.todos))
	copy(todos, s.todos)
	return todos
}

// SetTodos replaces the entire todo list
func (s *TodoStore) SetTodos(todos []TodoItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.todos = todos
}

// Clear removes all todos
func (s *TodoStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.todos = make([]TodoItem, 0)
}

// TodoWriteTool manages and displays todo lists for task tracking
type TodoWriteTool struct {
	store *TodoStore
}

// NewTodoWriteTool creates the tool. A nil store gets a private one.
func NewTodoWriteTool(store *TodoStore) *TodoWriteTool {
	if store == nil {
		store = NewTodoStore()
	}
	return &TodoWriteTool{store: store}
}

func (t *TodoWriteTool) Name() string {
	return "TodoWrite"
}

func (t *TodoWriteTool) Description() string {
	return `Track multi-step work as a todo list the user can follow.

Write the full list on every call; it replaces the previous one. Create
the list when a task has three or more steps, move exactly one item to
in_progress while you work on it, and mark items completed as soon as
they are done. Pass an empty array once everything is finished to clear
the list.

Each item carries:
- content: what to do, imperative ("Run tests")
- status: "pending" | "in_progress" | "completed"
- activeForm: what is happening, present continuous ("Running tests")`
}

func (t *TodoWriteTool) BestPractices() string {
	return ""
}

func (t *TodoWriteTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"todos": map[string]any{
				"type":        "array",
				"description": "The complete todo list. An empty array clears it.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content": map[string]any{
							"type":        "string",
							"description": "Task description in imperative form",
						},
						"status": map[string]any{
							"type":        "string",
							"enum":        []string{"pending", "in_progress", "completed"},
							"description": "Current status; keep exactly one task in_progress",
						},
						"activeForm": map[string]any{
							"type":        "string",
							"description": "Present continuous form shown while the task is active",
						},
					},
					"required": []string{"content", "status", "activeForm"},
				},
			},
		},
		"required": []string{"todos"},
	}
}

func (t *TodoWriteTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		Todos []TodoItem `json:"todos"`
	}

	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	if err := validateTodos(p.Todos); err != nil {
		return &tool.Result{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	if len(p.Todos) == 0 {
		t.store.Clear()
		return &tool.Result{
			Success: true,
			Output:  "Todo list cleared - all tasks complete!",
		}, nil
	}

	t.store.SetTodos(p.Todos)

	counts := map[TodoStatus]int{}
	for _, todo := range p.Todos {
		counts[todo.Status]++
	}

	return &tool.Result{
		Success: true,
		Output:  renderTodoList(p.Todos, counts[StatusCompleted]),
		Data: map[string]any{
			"total":       len(p.Todos),
			"pending":     counts[StatusPending],
			"in_progress": counts[StatusInProgress],
			"completed":   counts[StatusCompleted],
		},
	}, nil
}

// validateTodos enforces the list contract: no blank fields, known
// statuses, and at most one item in flight.
func validateTodos(todos []TodoItem) error {
	inProgress := 0
	for i, todo := range todos {
		if strings.TrimSpace(todo.Content) == "" {
			return fmt.Errorf("todo #%d: content cannot be empty", i+1)
		}
		if strings.TrimSpace(todo.ActiveForm) == "" {
			return fmt.Errorf("todo #%d: activeForm cannot be empty", i+1)
		}
		switch todo.Status {
		case StatusPending, StatusInProgress, StatusCompleted:
		default:
			return fmt.Errorf("todo #%d: invalid status '%s' (must be 'pending', 'in_progress', or 'completed')", i+1, todo.Status)
		}
		if todo.Status == StatusInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		return fmt.Errorf("only ONE task can be 'in_progress' at a time, found %d", inProgress)
	}
	return nil
}

// renderTodoList draws the numbered list with status markers. The row
// for an in-progress item shows its activeForm, the rest show content.
func renderTodoList(todos []TodoItem, completed int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Todo List: %d/%d completed\n", completed, len(todos))
	sb.WriteString(strings.Repeat("-", 50) + "\n")

	for i, todo := range todos {
		marker, text := "[ ]", todo.Content
		switch todo.Status {
		case StatusCompleted:
			marker = "[x]"
		case StatusInProgress:
			marker, text = "[>]", todo.ActiveForm
		}
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, marker, text)
	}

	return sb.String()
}
