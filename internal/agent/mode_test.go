package agent

import (
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    AgentMode
		wantErr bool
	}{
		{"interactive", ModeInteractive, false},
		{"default", ModeInteractive, false},
		{"", ModeInteractive, false},
		{"auto-approve", ModeAutoApprove, false},
		{"auto", ModeAutoApprove, false},
		{"yolo", ModeAutoApprove, false},
		{"plan", ModePlan, false},
		{"PLAN", ModePlan, false},
		{"  plan  ", ModePlan, false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestNextMode(t *testing.T) {
	if NextMode(ModeInteractive) != ModeAutoApprove {
		t.Error("Expected interactive -> auto-approve")
	}
	if NextMode(ModeAutoApprove) != ModePlan {
		t.Error("Expected auto-approve -> plan")
	}
	if NextMode(ModePlan) != ModeInteractive {
		t.Error("Expected plan -> interactive")
	}
}

func TestRenderSystemPrompt_ModeBlocks(t *testing.T) {
	plan := RenderSystemPrompt(ModePlan, "", "")
	if !strings.Contains(plan, "plan mode") || !strings.Contains(plan, "submit_plan") {
		t.Error("Expected plan instructions in plan mode prompt")
	}

	auto := RenderSystemPrompt(ModeAutoApprove, "", "")
	if !strings.Contains(auto, "without per-call confirmation") {
		t.Error("Expected auto-approve instructions")
	}

	interactive := RenderSystemPrompt(ModeInteractive, "", "")
	if !strings.Contains(interactive, "approves tool calls one by one") {
		t.Error("Expected interactive instructions")
	}

	if plan == auto || auto == interactive || plan == interactive {
		t.Error("Expected distinct prompts per mode")
	}
}

func TestRenderSystemPrompt_WorkdirAndPractices(t *testing.T) {
	prompt := RenderSystemPrompt(ModeInteractive, "/srv/app", "# Tool Usage Best Practices\n\nread things first")
	if !strings.Contains(prompt, "Working directory: /srv/app") {
		t.Error("Expected working directory in prompt")
	}
	if !strings.Contains(prompt, "read things first") {
		t.Error("Expected best practices appended")
	}

	bare := RenderSystemPrompt(ModeInteractive, "", "")
	if strings.Contains(bare, "Working directory") {
		t.Error("Expected no working directory line when unset")
	}
}

func TestRenderSystemPrompt_Deterministic(t *testing.T) {
	a := RenderSystemPrompt(ModePlan, "/tmp", "bp")
	b := RenderSystemPrompt(ModePlan, "/tmp", "bp")
	if a != b {
		t.Error("Expected identical output for identical inputs")
	}
}

func TestAgentMode_Valid(t *testing.T) {
	for _, m := range []AgentMode{ModeInteractive, ModeAutoApprove, ModePlan} {
		if !m.Valid() {
			t.Errorf("Expected %s to be valid", m)
		}
	}
	if AgentMode("turbo").Valid() {
		t.Error("Expected unknown mode to be invalid")
	}
}
