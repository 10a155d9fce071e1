package cli

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// Input owns a single background reader over the terminal's input
// stream. The REPL prompt and mid-turn approval prompts take turns
// consuming lines from it, so a line typed for one never gets eaten by
// a stale read from the other.
type Input struct {
	lines chan string

	mu  sync.Mutex
	err error
}

// NewInput starts reading lines from r in the background.
func NewInput(r io.Reader) *Input {
	in := &Input{lines: make(chan string)}
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			in.lines <- scanner.Text()
		}
		in.mu.Lock()
		if err := scanner.Err(); err != nil {
			in.err = err
		} else {
			in.err = io.EOF
		}
		in.mu.Unlock()
		close(in.lines)
	}()
	return in
}

// ReadLine returns the next line, blocking until one arrives, the
// stream ends, or ctx is cancelled.
func (in *Input) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-in.lines:
		if !ok {
			return "", in.readErr()
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (in *Input) readErr() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.err == nil {
		return io.EOF
	}
	return in.err
}
