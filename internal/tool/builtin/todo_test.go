package builtin

import (
	"context"
	"strings"
	"sync"
	"testing"
)

func TestTodoWriteTool_TracksProgress(t *testing.T) {
	tool := NewTodoWriteTool(nil)

	params := `{
		"todos": [
			{"content": "Add config flag", "status": "completed", "activeForm": "Adding config flag"},
			{"content": "Wire flag into loader", "status": "in_progress", "activeForm": "Wiring flag into loader"},
			{"content": "Document the flag", "status": "pending", "activeForm": "Documenting the flag"}
		]
	}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	if !strings.Contains(result.Output, "1/3 completed") {
		t.Errorf("Expected 1/3 progress header, got: %s", result.Output)
	}
	if result.Data["total"] != 3 || result.Data["pending"] != 1 || result.Data["in_progress"] != 1 || result.Data["completed"] != 1 {
		t.Errorf("Status counts wrong: %v", result.Data)
	}
}

func TestTodoWriteTool_MarkersAndActiveForm(t *testing.T) {
	tool := NewTodoWriteTool(nil)

	params := `{
		"todos": [
			{"content": "Read the schema", "status": "completed", "activeForm": "Reading the schema"},
			{"content": "Port the parser", "status": "in_progress", "activeForm": "Porting the parser"},
			{"content": "Run the suite", "status": "pending", "activeForm": "Running the suite"}
		]
	}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success: %s", result.Error)
	}

	for _, marker := range []string{"[x]", "[>]", "[ ]"} {
		if !strings.Contains(result.Output, marker) {
			t.Errorf("Expected marker %q in output:\n%s", marker, result.Output)
		}
	}

	// The in-progress row shows the activeForm, the others their content.
	if !strings.Contains(result.Output, "Porting the parser") {
		t.Errorf("Expected activeForm for the in-progress task, got:\n%s", result.Output)
	}
	if !strings.Contains(result.Output, "Read the schema") {
		t.Errorf("Expected content for the completed task, got:\n%s", result.Output)
	}
}

func TestTodoWriteTool_RejectsInvalidLists(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		wantErr string
	}{
		{
			name:    "unknown status",
			params:  `{"todos": [{"content": "x", "status": "paused", "activeForm": "x"}]}`,
			wantErr: "invalid status",
		},
		{
			name: "two in progress",
			params: `{"todos": [
				{"content": "a", "status": "in_progress", "activeForm": "a"},
				{"content": "b", "status": "in_progress", "activeForm": "b"}
			]}`,
			wantErr: "only ONE task",
		},
		{
			name:    "empty content",
			params:  `{"todos": [{"content": "", "status": "pending", "activeForm": "x"}]}`,
			wantErr: "content cannot be empty",
		},
		{
			name:    "empty activeForm",
			params:  `{"todos": [{"content": "x", "status": "pending", "activeForm": ""}]}`,
			wantErr: "activeForm cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewTodoWriteTool(nil)
			result, err := tool.Execute(context.Background(), []byte(tt.params))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if result.Success {
				t.Fatal("Expected a validation failure")
			}
			if !strings.Contains(result.Error, tt.wantErr) {
				t.Errorf("Error = %q, want it to contain %q", result.Error, tt.wantErr)
			}
		})
	}
}

func TestTodoWriteTool_EmptyArrayClears(t *testing.T) {
	store := NewTodoStore()
	tool := NewTodoWriteTool(store)

	seed := `{"todos": [{"content": "Ship it", "status": "completed", "activeForm": "Shipping it"}]}`
	if result, err := tool.Execute(context.Background(), []byte(seed)); err != nil || !result.Success {
		t.Fatalf("seeding failed: %v / %v", err, result)
	}
	if len(store.Todos()) != 1 {
		t.Fatalf("Expected 1 todo in store, got %d", len(store.Todos()))
	}

	result, err := tool.Execute(context.Background(), []byte(`{"todos": []}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success: %s", result.Error)
	}
	if !strings.Contains(result.Output, "cleared") {
		t.Errorf("Output should say the list was cleared: %s", result.Output)
	}
	if len(store.Todos()) != 0 {
		t.Errorf("Expected empty store after clear, got %d todos", len(store.Todos()))
	}
}

func TestTodoStore_ConcurrentAccess(t *testing.T) {
	store := NewTodoStore()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			store.SetTodos([]TodoItem{
				{Content: "Task", Status: StatusPending, ActiveForm: "Task"},
			})
		}
	}()

	for j := 0; j < 10; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = store.Todos()
			}
		}()
	}

	wg.Wait()
}
