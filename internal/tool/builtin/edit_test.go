package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeEditFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func TestEditTool_SingleReplacement(t *testing.T) {
	path := writeEditFixture(t, "alpha\nbeta\ngamma\n")

	tool := NewEditTool()
	params := `{"file_path": "` + path + `", "old_string": "beta", "new_string": "delta"}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "alpha\ndelta\ngamma\n" {
		t.Errorf("Unexpected file content: %q", string(content))
	}

	if result.Data["replacements"] != 1 {
		t.Errorf("Expected 1 replacement, got %v", result.Data["replacements"])
	}
}

func TestEditTool_NotFound(t *testing.T) {
	path := writeEditFixture(t, "alpha\n")

	tool := NewEditTool()
	params := `{"file_path": "` + path + `", "old_string": "omega", "new_string": "delta"}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Fatal("Expected failure when old_string is absent")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Errorf("Error should mention not found: %s", result.Error)
	}
}

func TestEditTool_AmbiguousWithoutReplaceAll(t *testing.T) {
	path := writeEditFixture(t, "x = 1\nx = 1\n")

	tool := NewEditTool()
	params := `{"file_path": "` + path + `", "old_string": "x = 1", "new_string": "x = 2"}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Fatal("Expected failure for ambiguous old_string")
	}
	if !strings.Contains(result.Error, "2 times") {
		t.Errorf("Error should report the occurrence count: %s", result.Error)
	}

	// File must be untouched after a failed edit
	content, _ := os.ReadFile(path)
	if string(content) != "x = 1\nx = 1\n" {
		t.Errorf("File should be unchanged, got: %q", string(content))
	}
}

func TestEditTool_ReplaceAll(t *testing.T) {
	path := writeEditFixture(t, "x = 1\nx = 1\ny = 3\n")

	tool := NewEditTool()
	params := `{"file_path": "` + path + `", "old_string": "x = 1", "new_string": "x = 2", "replace_all": true}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "x = 2\nx = 2\ny = 3\n" {
		t.Errorf("Unexpected file content: %q", string(content))
	}

	if result.Data["replacements"] != 2 {
		t.Errorf("Expected 2 replacements, got %v", result.Data["replacements"])
	}
}

func TestEditTool_EmptyOldString(t *testing.T) {
	path := writeEditFixture(t, "alpha\n")

	tool := NewEditTool()
	params := `{"file_path": "` + path + `", "old_string": "", "new_string": "delta"}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Fatal("Expected failure for empty old_string")
	}
}

func TestEditTool_IdenticalStrings(t *testing.T) {
	path := writeEditFixture(t, "alpha\n")

	tool := NewEditTool()
	params := `{"file_path": "` + path + `", "old_string": "alpha", "new_string": "alpha"}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Fatal("Expected failure for identical old and new strings")
	}
}

func TestEditTool_PreservesPermissions(t *testing.T) {
	path := writeEditFixture(t, "#!/bin/bash\necho old\n")
	if err := os.Chmod(path, 0755); err != nil {
		t.Fatalf("Failed to chmod: %v", err)
	}

	tool := NewEditTool()
	params := `{"file_path": "` + path + `", "old_string": "echo old", "new_string": "echo new"}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("Expected permissions 0755 to be preserved, got %o", info.Mode().Perm())
	}
}
