package remote

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrlite/mrlite/pkg/log"
)

// utilityPath is the PATH forced onto every spawned shell, so ssh, scp, mv
// and the worker binary resolve the same way on every host regardless of
// the caller's environment.
const utilityPath = "/usr/local/bin:/bin:/usr/bin:/sbin"

// ExecRunner is the production Runner: local commands through `sh -c`,
// remote commands through ssh, file delivery through scp.
type ExecRunner struct {
	sshPort int
	logger  zerolog.Logger
}

// NewExecRunner creates a runner that reaches remote hosts on sshPort.
func NewExecRunner(sshPort int) *ExecRunner {
	return &ExecRunner{
		sshPort: sshPort,
		logger:  log.WithComponent("remote"),
	}
}

// Run starts cmd in the local shell with the forced utility PATH. The PATH
// override is per-invocation; the runner never mutates the process
// environment.
func (r *ExecRunner) Run(cmd string) (Handle, error) {
	c := exec.Command("sh", "-c", cmd)
	c.Env = overridePath(os.Environ())
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command %q: %w", cmd, err)
	}
	r.logger.Debug().Int("pid", c.Process.Pid).Str("cmd", cmd).Msg("Started local command")
	return newExecHandle(c), nil
}

// RunOn starts cmd on host via ssh. The handle tracks the local ssh
// process, not the remote one; callers that need the remote PID learn it
// over the control plane.
func (r *ExecRunner) RunOn(host, cmd string) (Handle, error) {
	sshCmd := fmt.Sprintf("ssh -q -p %d %s '%s'", r.sshPort, host, cmd)
	h, err := r.Run(sshCmd)
	if err != nil {
		return nil, fmt.Errorf("failed to run on %s: %w", host, err)
	}
	return h, nil
}

// CopyFiles creates each destination directory and copies the file set to
// every host, both stages fanned out across hosts.
func (r *ExecRunner) CopyFiles(files []string, hostDirs map[string]string) error {
	var mkdirs errgroup.Group
	for host, dir := range hostDirs {
		mkdirs.Go(func() error {
			h, err := r.RunOn(host, "mkdir -p "+dir)
			if err != nil {
				return err
			}
			if err := h.Wait(); err != nil {
				return fmt.Errorf("failed to create %s on %s: %w", dir, host, err)
			}
			return nil
		})
	}
	if err := mkdirs.Wait(); err != nil {
		return err
	}

	fileList := strings.Join(files, " ")
	var copies errgroup.Group
	for host, dir := range hostDirs {
		copies.Go(func() error {
			cmd := fmt.Sprintf("scp -q -P %d %s %s:%s/ >/dev/null", r.sshPort, fileList, host, dir)
			if err := RunAndWait(r, cmd); err != nil {
				return fmt.Errorf("failed to copy files to %s: %w", host, err)
			}
			r.logger.Debug().Str("host", host).Str("dir", dir).Msg("Copied files")
			return nil
		})
	}
	return copies.Wait()
}

// overridePath replaces PATH in env with the fixed utility path.
func overridePath(env []string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if !strings.HasPrefix(kv, "PATH=") {
			out = append(out, kv)
		}
	}
	return append(out, "PATH="+utilityPath)
}

// execHandle implements Handle around one exec.Cmd. A single background
// goroutine owns Wait on the child; Poll and Wait observe its result.
type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

func newExecHandle(c *exec.Cmd) *execHandle {
	h := &execHandle{cmd: c, done: make(chan struct{})}
	go func() {
		err := c.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.waitErr != nil {
		return fmt.Errorf("command failed with %s: %w", h.cmd.ProcessState.String(), h.waitErr)
	}
	return nil
}

func (h *execHandle) Poll() (bool, int) {
	select {
	case <-h.done:
		return true, h.cmd.ProcessState.ExitCode()
	default:
		return false, 0
	}
}

func (h *execHandle) Kill() error {
	return h.cmd.Process.Kill()
}
