package agent

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrlite/mrlite/pkg/framing"
	"github.com/mrlite/mrlite/pkg/log"
	"github.com/mrlite/mrlite/pkg/remote"
	"github.com/mrlite/mrlite/pkg/types"
)

// Options locate the scheduler and identify this agent.
type Options struct {
	ServerIP   string
	ServerPort int
	Rank       int
	TmpDir     string
}

// Agent is the per-rank control-plane process on a worker host. It owns at
// most one worker subprocess at any time, relays instructions from the
// scheduler and reports the subprocess status back.
type Agent struct {
	rank   int
	tmpDir string
	runner remote.Runner
	ch     *framing.Channel
	cfg    *types.JobConfig
	worker *worker
	logger zerolog.Logger

	// mu guards child: the dispatch loop writes it, the termination
	// signal handler reads it.
	mu    sync.Mutex
	child remote.Handle
}

// Dial connects back to the scheduler, performs the handshake and receives
// the global job configuration. A nil runner selects the production
// ExecRunner, built from the received configuration's SSH port.
func Dial(opts Options, runner remote.Runner) (*Agent, error) {
	addr := fmt.Sprintf("%s:%d", opts.ServerIP, opts.ServerPort)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to scheduler at %s: %w", addr, err)
	}
	ch := framing.New(conn)

	if err := ch.Send(fmt.Sprintf("rank %d %d", opts.Rank, os.Getpid())); err != nil {
		return nil, err
	}
	blob, err := ch.Recv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive job config: %w", err)
	}
	cfg, err := types.DecodeConfig(blob)
	if err != nil {
		return nil, err
	}
	if opts.Rank < 0 || opts.Rank >= cfg.NumWorkers() {
		return nil, fmt.Errorf("rank %d out of range for %d workers", opts.Rank, cfg.NumWorkers())
	}
	if runner == nil {
		runner = remote.NewExecRunner(cfg.SSHPort)
	}

	a := &Agent{
		rank:   opts.Rank,
		tmpDir: opts.TmpDir,
		runner: runner,
		ch:     ch,
		cfg:    cfg,
		worker: newWorker(cfg, opts.Rank),
		logger: log.WithRank(opts.Rank),
	}
	a.logger.Debug().
		Str("scheduler", addr).
		Str("worker", cfg.WorkerName(opts.Rank)).
		Msg("Agent connected")
	return a, nil
}

// Run receives instructions until the scheduler says quit or the control
// socket dies. A nil return means a clean quit.
func (a *Agent) Run() error {
	for {
		instruction, err := a.ch.Recv()
		if err != nil {
			return fmt.Errorf("control socket lost: %w", err)
		}
		a.logger.Debug().Str("instruction", instruction).Msg("Received instruction")

		done, err := a.dispatch(instruction)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// dispatch runs one instruction. done is true for quit/exit.
func (a *Agent) dispatch(instruction string) (done bool, err error) {
	switch instruction {
	case types.CmdStartMapper:
		if a.worker.isMapper() {
			return false, a.startMapper()
		}
	case types.CmdStartReducer:
		if !a.worker.isMapper() {
			return false, a.startReducer()
		}
	case types.CmdStatus:
		return false, a.reportStatus()
	case types.CmdQuit, types.CmdExit:
		a.Quit()
		return true, nil
	default:
		return false, fmt.Errorf("illegal instruction %q", instruction)
	}
	return false, nil
}

// spawn starts the worker child and records its handle.
func (a *Agent) spawn() (remote.Handle, error) {
	cmd := a.worker.command()
	h, err := a.runner.Run(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	a.mu.Lock()
	a.child = h
	a.mu.Unlock()
	a.logger.Info().Int("pid", h.PID()).Msg(a.cfg.WorkerName(a.rank) + " started")
	return h, nil
}

// Quit closes the control socket and removes the deployed artifacts from
// the tmp dir. It does not touch a running child; that is the signal
// handler's job.
func (a *Agent) Quit() {
	a.ch.Close()
	a.cleanTmpFiles()
	a.logger.Debug().Msg("Agent quitting")
}

// KillChild terminates the worker subprocess if one is still running.
func (a *Agent) KillChild() {
	a.mu.Lock()
	child := a.child
	a.mu.Unlock()
	if child == nil {
		a.logger.Debug().Msg("No worker subprocess to kill")
		return
	}
	if done, _ := child.Poll(); done {
		a.logger.Debug().Int("pid", child.PID()).Msg("Worker subprocess already finished")
		return
	}
	if err := child.Kill(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to kill worker subprocess")
		return
	}
	a.logger.Debug().Int("pid", child.PID()).Msg("Worker subprocess killed")
}

// cleanTmpFiles removes the deployed worker binary and agent executable.
// The tmp dir itself stays: it is shared by every rank on this host.
func (a *Agent) cleanTmpFiles() {
	targets := []string{
		filepath.Join(a.tmpDir, a.cfg.RemoteExecutable),
		filepath.Join(a.tmpDir, types.AgentExecutable(a.cfg.Identity)),
	}
	if err := remote.RunAndWait(a.runner, "rm -rf "+strings.Join(targets, " ")); err != nil {
		a.logger.Error().Err(err).Msg("Failed to clean tmp files")
	}
}
