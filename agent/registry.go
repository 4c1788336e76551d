package agent

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultGracePeriod is how long Stop waits after SIGTERM before SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Manager is the registry of spawned agent processes. It is safe for
// concurrent use.
type Manager struct {
	mu     sync.Mutex
	procs  map[string]*Process
	logger *zap.Logger

	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{procs: make(map[string]*Process), logger: logger}
}

// Start launches spec.Script with bash in its own process group. The process
// outlives ctx; use Stop to end it.
func (m *Manager) Start(ctx context.Context, spec Spec) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.Script == "" {
		return nil, errors.New("agent script is required")
	}

	id := uuid.NewString()
	cmd := exec.Command("bash", append([]string{spec.Script}, spec.Args...)...)
	cmd.Dir = spec.Dir
	cmd.Env = agentEnv(spec)
	setProcessGroup(cmd)

	p := &Process{
		id:        id,
		spec:      spec,
		cmd:       cmd,
		startedAt: time.Now().UTC(),
		logger:    m.logger.With(zap.String("agent_id", id), zap.String("agent", spec.Name)),
		stdout:    outputBuffer{limit: outputLimit},
		stderr:    outputBuffer{limit: outputLimit},
		state:     StateStarting,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	if err := p.start(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.procs[id] = p
	m.mu.Unlock()

	p.logger.Info("Agent started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("script", spec.Script),
		zap.Strings("args", spec.Args),
		zap.String("character_file", spec.CharacterFile))
	return p, nil
}

func agentEnv(spec Spec) []string {
	env := append(os.Environ(),
		"TERM=dumb",
		"NO_COLOR=1",
		"CI=true",
	)
	if spec.CharacterFile != "" {
		env = append(env, "CHARACTER_FILE="+spec.CharacterFile)
	}
	return append(env, spec.Env...)
}

func (m *Manager) Get(id string) (*Process, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.procs[id]
	return p, ok
}

// List returns a snapshot of every registered agent, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	procs := make([]*Process, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(procs))
	for _, p := range procs {
		infos = append(infos, p.Info())
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return infos
}

// Stop terminates the agent's process group and removes it from the
// registry.
func (m *Manager) Stop(ctx context.Context, id string) error {
	p, ok := m.Get(id)
	if !ok {
		return ErrNotFound
	}
	err := p.terminate(ctx, m.grace())

	m.mu.Lock()
	delete(m.procs, id)
	m.mu.Unlock()

	if err == nil {
		p.logger.Info("Agent stopped")
	}
	return err
}

// StopAll stops every registered agent concurrently.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.procs))
	for id := range m.procs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Stop(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
				errs[i] = err
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (m *Manager) grace() time.Duration {
	if m.GracePeriod > 0 {
		return m.GracePeriod
	}
	return DefaultGracePeriod
}
