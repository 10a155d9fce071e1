package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// globFixture creates a small tree to match against
func globFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := []string{
		"main.go",
		"notes.txt",
		filepath.Join("pkg", "util.go"),
		filepath.Join("pkg", "deep", "core.go"),
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
	return dir
}

func TestGlobTool_SimplePattern(t *testing.T) {
	tool := NewGlobTool()
	dir := globFixture(t)

	params, _ := json.Marshal(map[string]any{
		"pattern": "*.go",
		"path":    dir,
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Errorf("Expected success, got error: %s", result.Error)
	}

	if !strings.Contains(result.Output, "main.go") {
		t.Errorf("Expected to find main.go, got: %s", result.Output)
	}
	if strings.Contains(result.Output, "util.go") {
		t.Error("Simple pattern should not recurse into subdirectories")
	}
}

func TestGlobTool_RecursivePattern(t *testing.T) {
	tool := NewGlobTool()
	dir := globFixture(t)

	params, _ := json.Marshal(map[string]any{
		"pattern": "**/*.go",
		"path":    dir,
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Errorf("Expected success, got error: %s", result.Error)
	}

	for _, want := range []string{"main.go", "util.go", "core.go"} {
		if !strings.Contains(result.Output, want) {
			t.Errorf("Expected recursive match to include %s, got: %s", want, result.Output)
		}
	}
	if strings.Contains(result.Output, "notes.txt") {
		t.Error("Pattern should only match .go files")
	}

	count, ok := result.Data["count"].(int)
	if !ok || count != 3 {
		t.Errorf("Expected count = 3, got %v", result.Data["count"])
	}
}

func TestGlobTool_RecursiveWithPrefix(t *testing.T) {
	tool := NewGlobTool()
	dir := globFixture(t)

	params, _ := json.Marshal(map[string]any{
		"pattern": "pkg/**/*.go",
		"path":    dir,
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Errorf("Expected success, got error: %s", result.Error)
	}

	lines := strings.Split(result.Output, "\n")
	for _, line := range lines {
		if line != "" && !strings.Contains(line, "pkg/") {
			t.Errorf("Expected file to be in pkg/, got: %s", line)
		}
	}
	if !strings.Contains(result.Output, "core.go") {
		t.Error("Expected nested file core.go to match")
	}
}

func TestGlobTool_NoMatches(t *testing.T) {
	tool := NewGlobTool()
	dir := globFixture(t)

	params, _ := json.Marshal(map[string]any{
		"pattern": "**/*.nonexistent",
		"path":    dir,
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Errorf("Expected success even with no matches, got error: %s", result.Error)
	}

	if result.Output != "No files found" {
		t.Errorf("Expected 'No files found', got: %s", result.Output)
	}

	count, ok := result.Data["count"].(int)
	if !ok {
		t.Fatal("Expected count field in data")
	}
	if count != 0 {
		t.Errorf("Expected count = 0, got %d", count)
	}
}

func TestGlobTool_EmptyPattern(t *testing.T) {
	tool := NewGlobTool()

	params, _ := json.Marshal(map[string]any{
		"pattern": "",
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Error("Expected failure for empty pattern")
	}
}

func TestGlobTool_InvalidParameters(t *testing.T) {
	tool := NewGlobTool()

	// Invalid JSON
	result, err := tool.Execute(context.Background(), []byte("invalid json"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Error("Expected failure for invalid JSON")
	}

	if !strings.Contains(result.Error, "invalid parameters") {
		t.Errorf("Expected 'invalid parameters' error, got: %s", result.Error)
	}
}
