package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGrepTool_MatchesWithLineNumbers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\ngamma beta\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewGrepTool()
	params, _ := json.Marshal(map[string]any{
		"pattern": "beta",
		"path":    path,
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	if !strings.Contains(result.Output, "notes.txt:2:beta") {
		t.Errorf("Expected path:line:content form, got: %s", result.Output)
	}
	if !strings.Contains(result.Output, "notes.txt:3:gamma beta") {
		t.Errorf("Expected both matching lines, got: %s", result.Output)
	}
}

func TestGrepTool_FilePatternFilter(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("needle\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("needle\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewGrepTool()
	params, _ := json.Marshal(map[string]any{
		"pattern":      "needle",
		"path":         dir,
		"file_pattern": "*.go",
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	if !strings.Contains(result.Output, "a.go") {
		t.Errorf("Expected a.go to match, got: %s", result.Output)
	}
	if strings.Contains(result.Output, "a.txt") {
		t.Errorf("Expected a.txt to be filtered out, got: %s", result.Output)
	}
}

func TestGrepTool_NoMatches(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("nothing here\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewGrepTool()
	params, _ := json.Marshal(map[string]any{
		"pattern": "absent",
		"path":    dir,
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}
	if result.Output != "No matches found" {
		t.Errorf("Expected 'No matches found', got: %s", result.Output)
	}
}

func TestGrepTool_StopsAtMatchCap(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	for i := 0; i < maxGrepMatches+50; i++ {
		fmt.Fprintf(&sb, "hit %d\n", i)
	}
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewGrepTool()
	params, _ := json.Marshal(map[string]any{
		"pattern": "hit",
		"path":    dir,
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}

	if !strings.Contains(result.Output, "stopped at") {
		t.Errorf("Expected a truncation note, got tail: %s", result.Output[len(result.Output)-80:])
	}
	if got := result.Data["count"].(int); got != maxGrepMatches {
		t.Errorf("Expected %d reported matches, got %d", maxGrepMatches, got)
	}
}
