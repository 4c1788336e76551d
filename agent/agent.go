// Package agent launches and supervises agent runtime processes.
package agent

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of a spawned agent.
type State string

const (
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateExited   State = "exited"
	StateFailed   State = "failed"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// ErrNotFound is returned for an unknown agent ID.
var ErrNotFound = errors.New("agent not found")

// Ready markers printed by the runtime once it is serving.
var readyMarkers = []string{"Chat started", "Server running"}

// Spec describes how to launch an agent runtime.
type Spec struct {
	Name          string   // display name, usually the character name
	Script        string   // run with bash
	Args          []string // passed to the script
	Dir           string   // working directory
	Env           []string // extra KEY=VALUE pairs
	CharacterFile string   // exported as CHARACTER_FILE when set
}

// Info is a snapshot of a spawned agent.
type Info struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	PID           int       `json:"pid"`
	State         State     `json:"state"`
	CharacterFile string    `json:"characterFile,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	ExitCode      *int      `json:"exitCode,omitempty"`
}

// ExitError reports a script that exited unsuccessfully before it was ready.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	stderr := e.Stderr
	if stderr == "" {
		stderr = "No stderr available"
	}
	return fmt.Sprintf("script exited with code %d\n%s", e.Code, stderr)
}

// outputBuffer keeps the last limit bytes written to it.
type outputBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *outputBuffer) writeLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, line...)
	b.buf = append(b.buf, '\n')
	if over := len(b.buf) - b.limit; b.limit > 0 && over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
