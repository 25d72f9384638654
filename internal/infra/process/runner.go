//go:build unix

package process

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
)

var _ execution.ProcessRunner = (*ShellRunner)(nil)

const (
	// DefaultShell interprets every command string.
	DefaultShell = "/bin/sh"

	// DefaultWaitDelay bounds how long Wait keeps reading output after the
	// shell exits while a stray descendant still holds the pipes open.
	DefaultWaitDelay = 2 * time.Second

	defaultStderrLimit = 64 * 1024
)

// ShellRunner starts commands through a shell ("<shell> -c <command>") so that
// pipes and redirection in whitelisted commands work. Every process becomes
// the leader of a new process group.
type ShellRunner struct {
	shell       string
	dir         string
	env         []string
	waitDelay   time.Duration
	stderrLimit int
}

// Option configures a ShellRunner.
type Option func(*ShellRunner)

// WithDir sets the working directory of spawned commands.
func WithDir(dir string) Option { return func(r *ShellRunner) { r.dir = dir } }

// WithEnv replaces the environment of spawned commands. By default they
// inherit the environment of the current process.
func WithEnv(env []string) Option { return func(r *ShellRunner) { r.env = env } }

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) Option { return func(r *ShellRunner) { r.waitDelay = d } }

// NewShellRunner creates a runner for the given shell. An empty shell selects
// DefaultShell.
func NewShellRunner(shell string, opts ...Option) *ShellRunner {
	if shell == "" {
		shell = DefaultShell
	}
	r := &ShellRunner{
		shell:       shell,
		waitDelay:   DefaultWaitDelay,
		stderrLimit: defaultStderrLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start spawns command and returns immediately.
func (r *ShellRunner) Start(command string) (execution.Process, error) {
	cmd := exec.Command(r.shell, "-c", command)
	cmd.Dir = r.dir
	cmd.Env = r.env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = r.waitDelay

	p := &shellProcess{cmd: cmd, stderr: &cappedBuffer{limit: r.stderrLimit}}
	cmd.Stdout = &p.stdout
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", execution.ErrSpawn, err)
	}
	p.started = time.Now()

	return p, nil
}

// Run starts command and waits for it to exit. It has no deadline.
func (r *ShellRunner) Run(command string) (execution.RunResult, error) {
	p, err := r.Start(command)
	if err != nil {
		return execution.RunResult{}, err
	}
	return p.Wait()
}

type shellProcess struct {
	cmd     *exec.Cmd
	started time.Time

	// stdout is written by the exec copy goroutine and only read after Wait.
	stdout bytes.Buffer
	stderr *cappedBuffer
}

func (p *shellProcess) PID() int { return p.cmd.Process.Pid }

func (p *shellProcess) Wait() (execution.RunResult, error) {
	err := p.cmd.Wait()

	res := execution.RunResult{
		PID:      p.PID(),
		Stdout:   p.stdout.Bytes(),
		Stderr:   p.stderr.Bytes(),
		ExitCode: -1,
		Elapsed:  time.Since(p.started),
	}
	if p.cmd.ProcessState != nil {
		res.ExitCode = p.cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res, fmt.Errorf("wait for pid %d: %w", res.PID, err)
	}
	return res, nil
}

// Terminate signals the group, not just the shell, so that pipelines and
// background jobs started by the command go down with it.
func (p *shellProcess) Terminate() error { return signalGroup(p.PID(), unix.SIGTERM) }

func (p *shellProcess) Kill() error { return signalGroup(p.PID(), unix.SIGKILL) }

// GroupAlive probes the group with signal 0. EPERM means a member exists but
// belongs to someone else.
func (p *shellProcess) GroupAlive() bool {
	err := unix.Kill(-p.PID(), 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// signalGroup signals the group led by pgid. The runner makes every child a
// group leader, so the group id equals the child's pid.
func signalGroup(pgid int, sig unix.Signal) error {
	if err := unix.Kill(-pgid, sig); err != nil {
		return fmt.Errorf("signal %s to process group %d: %w", unix.SignalName(sig), pgid, err)
	}
	return nil
}

// cappedBuffer keeps at most limit bytes and silently drops the rest, so a
// chatty stderr is drained without growing memory without bound.
type cappedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
