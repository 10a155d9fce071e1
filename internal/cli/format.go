package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"quill/internal/agent"
	"quill/internal/llm"
)

// Formatter shapes the output of a headless run. OnEvent observes the
// turn as it happens; Finalize runs once after the turn with the full
// conversation.
type Formatter interface {
	OnEvent(ev agent.Event)
	Finalize(history []*llm.Message) error
}

// NewFormatter returns the formatter for an output format name: "text"
// prints the final response, "json" prints the whole conversation as one
// document, "stream-json" prints each event as a JSON line.
func NewFormatter(format string, w io.Writer) (Formatter, error) {
	switch format {
	case "", "text":
		return &TextFormatter{w: w}, nil
	case "json":
		return &JSONFormatter{w: w}, nil
	case "stream-json":
		return &StreamJSONFormatter{enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (text, json, or stream-json)", format)
	}
}

// TextFormatter prints the final assistant text and nothing else.
type TextFormatter struct {
	w     io.Writer
	final string
}

func (f *TextFormatter) OnEvent(ev agent.Event) {
	switch ev.Type {
	case agent.EventAssistant:
		// Track every assistant message so a budget stop still leaves
		// the partial response to print.
		if ev.Assistant.Content != "" {
			f.final = ev.Assistant.Content
		}
	case agent.EventDone:
		if ev.Final != "" {
			f.final = ev.Final
		}
	}
}

func (f *TextFormatter) Finalize(history []*llm.Message) error {
	if f.final == "" {
		return nil
	}
	_, err := fmt.Fprintln(f.w, f.final)
	return err
}

// JSONFormatter prints the full conversation as one indented JSON
// document at the end of the run.
type JSONFormatter struct {
	w io.Writer
}

func (f *JSONFormatter) OnEvent(ev agent.Event) {}

func (f *JSONFormatter) Finalize(history []*llm.Message) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(history)
}

// StreamJSONFormatter prints one JSON line per event as the turn runs.
type StreamJSONFormatter struct {
	enc *json.Encoder
	err error
}

func (f *StreamJSONFormatter) OnEvent(ev agent.Event) {
	if f.err != nil {
		return
	}
	f.err = f.enc.Encode(ev)
}

func (f *StreamJSONFormatter) Finalize(history []*llm.Message) error {
	return f.err
}
