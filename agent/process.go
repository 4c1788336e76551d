package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	outputLimit        = 1 << 20
	stderrDrainTimeout = 2 * time.Second
)

// Process is one spawned agent runtime.
type Process struct {
	id        string
	spec      Spec
	cmd       *exec.Cmd
	startedAt time.Time
	logger    *zap.Logger

	stdout outputBuffer
	stderr outputBuffer

	mu       sync.Mutex
	state    State
	exitCode *int
	readyErr error

	readyOnce sync.Once
	ready     chan struct{} // closed once ready or exited
	done      chan struct{} // closed when the script and its output have finished
}

func (p *Process) ID() string { return p.id }

// Stdout returns the captured standard output.
func (p *Process) Stdout() string { return p.stdout.String() }

// Stderr returns the captured standard error.
func (p *Process) Stderr() string { return p.stderr.String() }

// Done is closed when the script has exited and every process holding its
// output has gone.
func (p *Process) Done() <-chan struct{} { return p.done }

// Info returns a snapshot of the process.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := Info{
		ID:            p.id,
		Name:          p.spec.Name,
		State:         p.state,
		CharacterFile: p.spec.CharacterFile,
		StartedAt:     p.startedAt,
	}
	if p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	if p.exitCode != nil {
		code := *p.exitCode
		info.ExitCode = &code
	}
	return info
}

// WaitReady blocks until the runtime prints a ready marker or the script
// exits. A non-zero exit before readiness is an *ExitError.
func (p *Process) WaitReady(ctx context.Context) error {
	select {
	case <-p.ready:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.readyErr
	case <-ctx.Done():
		return fmt.Errorf("waiting for agent %s: %w", p.spec.Name, ctx.Err())
	}
}

func (p *Process) start() error {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("creating stderr pipe: %w", err)
	}
	// Files are handed to the child directly, so Wait does not block on
	// grandchildren that inherit them.
	p.cmd.Stdout = stdoutW
	p.cmd.Stderr = stderrW

	err = p.cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return fmt.Errorf("starting %s: %w", p.spec.Script, err)
	}

	var pumps errgroup.Group
	pumps.Go(func() error { return p.pump(stdoutR, "stdout", &p.stdout, true) })
	pumps.Go(func() error { return p.pump(stderrR, "stderr", &p.stderr, false) })

	go func() {
		waitErr := p.cmd.Wait()
		code := p.markExited(waitErr)

		drained := make(chan struct{})
		go func() {
			if err := pumps.Wait(); err != nil {
				p.logger.Warn("Reading agent output failed", zap.Error(err))
			}
			close(drained)
		}()

		if code == 0 {
			p.markReady(nil)
		} else {
			// stderr is complete once the pumps drain, unless a grandchild
			// still holds the pipe.
			select {
			case <-drained:
			case <-time.After(stderrDrainTimeout):
			}
			p.markReady(&ExitError{Code: code, Stderr: StripANSI(FilterStderr(p.Stderr()))})
		}

		<-drained
		stdoutR.Close()
		stderrR.Close()
		p.markDone()
	}()
	return nil
}

func (p *Process) pump(r io.Reader, stream string, out *outputBuffer, watchReady bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), outputLimit)
	for scanner.Scan() {
		line := scanner.Text()
		out.writeLine(line)
		p.logger.Debug("Agent output", zap.String("stream", stream), zap.String("line", StripANSI(line)))
		if watchReady && isReadyLine(line) {
			p.markReady(nil)
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
		return fmt.Errorf("%s: %w", stream, err)
	}
	return nil
}

func isReadyLine(line string) bool {
	for _, marker := range readyMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func (p *Process) markReady(err error) {
	p.readyOnce.Do(func() {
		p.mu.Lock()
		p.readyErr = err
		if err == nil && p.state == StateStarting {
			p.state = StateReady
		}
		p.mu.Unlock()
		close(p.ready)
		if err == nil {
			p.logger.Info("Agent ready")
		}
	})
}

func (p *Process) markExited(waitErr error) int {
	code := p.cmd.ProcessState.ExitCode()

	p.mu.Lock()
	p.exitCode = &code
	wasReady := p.state == StateReady
	switch {
	case p.state == StateStopping:
		p.state = StateStopped
	case code == 0:
		// Background children may still be serving.
		p.state = StateReady
	case wasReady:
		p.state = StateExited
	default:
		p.state = StateFailed
	}
	p.mu.Unlock()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		p.logger.Warn("Waiting for agent failed", zap.Error(waitErr))
	}
	p.logger.Info("Agent script exited", zap.Int("exit_code", code))
	return code
}

func (p *Process) markDone() {
	p.mu.Lock()
	if p.state == StateReady {
		p.state = StateExited
	}
	p.mu.Unlock()
	close(p.done)
}

func (p *Process) beginStop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return false
	default:
	}
	switch p.state {
	case StateStarting, StateReady:
		p.state = StateStopping
	}
	return true
}

// terminate sends SIGTERM to the process group, then SIGKILL after grace,
// and waits for the output to close.
func (p *Process) terminate(ctx context.Context, grace time.Duration) error {
	if !p.beginStop() {
		return nil
	}
	pid := p.cmd.Process.Pid
	if err := terminateGroup(pid); err != nil {
		p.logger.Warn("SIGTERM failed, killing", zap.Error(err))
		_ = killGroup(pid)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		p.markStopped()
		return nil
	case <-timer.C:
		p.logger.Warn("Agent did not stop in time, killing", zap.Duration("grace", grace))
	case <-ctx.Done():
	}
	if err := killGroup(pid); err != nil {
		return fmt.Errorf("killing agent %s: %w", p.id, err)
	}

	select {
	case <-p.done:
		p.markStopped()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping agent %s: %w", p.id, ctx.Err())
	}
}

func (p *Process) markStopped() {
	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
}
