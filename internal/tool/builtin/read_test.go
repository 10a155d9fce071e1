package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadTool_WholeFile(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "test1.txt")
	content := "line 1\nline 2\nline 3\n"
	if err := os.WriteFile(file1, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tool := NewReadTool()

	params := `{"file_path": "` + file1 + `"}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	if result.Output != content {
		t.Errorf("Content mismatch:\nExpected: %q\nGot: %q", content, result.Output)
	}
}

func TestReadTool_OffsetAndLimit(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "test.txt")

	content := "line 1\nline 2\nline 3\nline 4\nline 5\nline 6\nline 7\nline 8\nline 9\nline 10\n"
	if err := os.WriteFile(file1, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tool := NewReadTool()

	// Read lines 3-6
	params := `{"file_path": "` + file1 + `", "offset": 3, "limit": 4}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	for _, want := range []string{"line 3", "line 4", "line 5", "line 6"} {
		if !strings.Contains(result.Output, want) {
			t.Errorf("Output should contain %q", want)
		}
	}
	if strings.Contains(result.Output, "line 2") || strings.Contains(result.Output, "line 7") {
		t.Errorf("Output should only contain the requested range, got: %q", result.Output)
	}

	if result.Data["start_line"] != 3 {
		t.Errorf("Expected start_line=3, got %v", result.Data["start_line"])
	}
	if result.Data["end_line"] != 6 {
		t.Errorf("Expected end_line=6, got %v", result.Data["end_line"])
	}
}

func TestReadTool_OffsetOnly(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "test.txt")

	content := "line 1\nline 2\nline 3\nline 4\nline 5"
	if err := os.WriteFile(file1, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tool := NewReadTool()

	// Read from line 3 to the end
	params := `{"file_path": "` + file1 + `", "offset": 3}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	for _, want := range []string{"line 3", "line 4", "line 5"} {
		if !strings.Contains(result.Output, want) {
			t.Errorf("Output should contain %q", want)
		}
	}
	if strings.Contains(result.Output, "line 1") || strings.Contains(result.Output, "line 2") {
		t.Error("Output should not contain lines before the offset")
	}
}

func TestReadTool_LimitOnly(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "test.txt")

	content := "line 1\nline 2\nline 3\nline 4\nline 5"
	if err := os.WriteFile(file1, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tool := NewReadTool()

	params := `{"file_path": "` + file1 + `", "limit": 2}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	if !strings.Contains(result.Output, "line 1") || !strings.Contains(result.Output, "line 2") {
		t.Error("Output should contain the first two lines")
	}
	if strings.Contains(result.Output, "line 3") {
		t.Error("Output should stop at the limit")
	}
}

func TestReadTool_OffsetBeyondEnd(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "test.txt")

	if err := os.WriteFile(file1, []byte("line 1\nline 2\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tool := NewReadTool()

	params := `{"file_path": "` + file1 + `", "offset": 10}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Fatal("Expected failure for offset beyond end of file")
	}

	if !strings.Contains(result.Error, "beyond end of file") {
		t.Errorf("Error should mention offset beyond end: %s", result.Error)
	}
}

func TestReadTool_FileNotFound(t *testing.T) {
	tool := NewReadTool()

	params := `{"file_path": "/nonexistent/file.txt"}`

	result, err := tool.Execute(context.Background(), []byte(params))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Fatal("Expected failure for nonexistent file")
	}

	if !strings.Contains(result.Error, "failed to read file") {
		t.Errorf("Error should mention read failure: %s", result.Error)
	}
}

func TestReadTool_InvalidParameters(t *testing.T) {
	tool := NewReadTool()

	result, err := tool.Execute(context.Background(), []byte("invalid json"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Success {
		t.Fatal("Expected failure for invalid JSON")
	}

	if !strings.Contains(result.Error, "invalid parameters") {
		t.Errorf("Expected 'invalid parameters' error, got: %s", result.Error)
	}
}
