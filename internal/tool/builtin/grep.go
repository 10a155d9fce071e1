package builtin

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"quill/internal/tool"
)

// maxGrepMatches bounds a search the same way maxGlobMatches bounds a
// listing. The walk stops as soon as the cap is hit.
const maxGrepMatches = 100

type GrepTool struct{}

func NewGrepTool() *GrepTool {
	return &GrepTool{}
}

func (t *GrepTool) Name() string {
	return "grep"
}

func (t *GrepTool) Description() string {
	return "Search for content in files using regex patterns"
}

func (t *GrepTool) BestPractices() string {
	return ""
}

func (t *GrepTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Regular expression pattern to search for",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "File or directory to search in",
			},
			"case_insensitive": map[string]any{
				"type":        "boolean",
				"description": "Case-insensitive search (default: false)",
			},
			"file_pattern": map[string]any{
				"type":        "string",
				"description": "Filter files by pattern (e.g., '*.go')",
			},
		},
		"required": []string{"pattern", "path"},
	}
}

func (t *GrepTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		Pattern         string `json:"pattern"`
		Path            string `json:"path"`
		CaseInsensitive bool   `json:"case_insensitive"`
		FilePattern     string `json:"file_pattern"`
	}

	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	expr := p.Pattern
	if p.CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid regex pattern: %v", err),
		}, nil
	}

	info, err := os.Stat(p.Path)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("path not found: %v", err),
		}, nil
	}

	// One past the cap so overflow is detectable either way.
	budget := maxGrepMatches + 1

	var results []string
	if !info.IsDir() {
		results = scanMatches(p.Path, re, budget)
	} else {
		walkErr := filepath.WalkDir(p.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // Unreadable entries are skipped
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if p.FilePattern != "" {
				ok, merr := filepath.Match(p.FilePattern, d.Name())
				if merr != nil || !ok {
					return nil
				}
			}

			results = append(results, scanMatches(path, re, budget-len(results))...)
			if len(results) >= budget {
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil {
			return &tool.Result{
				Success: false,
				Error:   fmt.Sprintf("directory walk failed: %v", walkErr),
			}, nil
		}
	}

	if len(results) == 0 {
		return &tool.Result{
			Success: true,
			Output:  "No matches found",
		}, nil
	}

	truncated := len(results) > maxGrepMatches
	if truncated {
		results = results[:maxGrepMatches]
	}

	output := strings.Join(results, "\n")
	if truncated {
		output += fmt.Sprintf("\n... stopped at %d matches (narrow the pattern)", maxGrepMatches)
	}

	return &tool.Result{
		Success: true,
		Output:  output,
		Data: map[string]any{
			"count":     len(results),
			"truncated": truncated,
		},
	}, nil
}

// scanMatches reports up to max "path:line:text" hits from one file.
// The initial peek doubles as a binary sniff: a NUL in the first 512
// bytes skips the file entirely.
func scanMatches(path string, re *regexp.Regexp, max int) []string {
	if max <= 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(512)
	if bytes.IndexByte(head, 0) >= 0 {
		return nil
	}

	var hits []string
	scanner := bufio.NewScanner(br)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if re.MatchString(text) {
			hits = append(hits, fmt.Sprintf("%s:%d:%s", path, line, text))
			if len(hits) >= max {
				break
			}
		}
	}
	return hits
}
