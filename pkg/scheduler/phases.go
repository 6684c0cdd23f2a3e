package scheduler

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/mrlite/mrlite/pkg/events"
	"github.com/mrlite/mrlite/pkg/framing"
	"github.com/mrlite/mrlite/pkg/metrics"
	"github.com/mrlite/mrlite/pkg/remote"
	"github.com/mrlite/mrlite/pkg/types"
)

// Deploy stages the worker binary under the job identity name next to the
// original, copies it and the agent executable to every host's tmp dir in
// parallel, then removes the staged copies.
func (s *Scheduler) Deploy() error {
	s.setPhase(types.PhaseDeploying)
	timer := metrics.NewTimer()

	stageDir := filepath.Dir(s.job.LocalExecutable)
	stagedWorker := filepath.Join(stageDir, s.cfg.RemoteExecutable)
	stagedAgent := filepath.Join(stageDir, types.AgentExecutable(s.cfg.Identity))

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("%w: cannot locate own executable: %v", ErrDeployFailed, err)
	}

	stage := fmt.Sprintf("cp %s %s && cp %s %s", s.job.LocalExecutable, stagedWorker, self, stagedAgent)
	if err := remote.RunAndWait(s.runner, stage); err != nil {
		return fmt.Errorf("%w: %v", ErrDeployFailed, err)
	}
	defer func() {
		if err := remote.RunAndWait(s.runner, fmt.Sprintf("rm -rf %s %s", stagedWorker, stagedAgent)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to remove staged binaries")
		}
	}()

	s.logger.Info().
		Int("hosts", len(s.job.TmpDirs)).
		Msg("Copying worker binary and agent to all hosts")
	if err := s.runner.CopyFiles([]string{stagedWorker, stagedAgent}, s.job.TmpDirs); err != nil {
		return fmt.Errorf("%w: %v", ErrDeployFailed, err)
	}

	timer.ObserveDurationVec(metrics.PhaseDuration, string(types.PhaseDeploying))
	return nil
}

// Listen binds the scheduler's control endpoint on a kernel-assigned port.
func (s *Scheduler) Listen() error {
	ip := s.listenIP
	if ip == "" {
		var err error
		if ip, err = hostIP(); err != nil {
			return err
		}
	}
	ln, err := net.Listen("tcp", ip+":0")
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ip, err)
	}
	s.ln = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Control endpoint listening")
	return nil
}

// LaunchAgents starts one agent per rank on its host, pointed back at the
// control endpoint. The remote processes are long-lived; nothing waits for
// them here.
func (s *Scheduler) LaunchAgents() error {
	s.setPhase(types.PhaseConnecting)
	addr := s.Addr()

	var g errgroup.Group
	for rank, task := range s.cfg.Tasks {
		g.Go(func() error {
			agentBin := task.TmpDir + "/" + types.AgentExecutable(s.cfg.Identity)
			cmd := fmt.Sprintf("%s agent -s %s -p %d -r %d -d %s",
				agentBin, addr.IP.String(), addr.Port, rank, task.TmpDir)
			if _, err := s.runner.RunOn(task.Host, cmd); err != nil {
				return fmt.Errorf("failed to launch agent %d on %s: %w", rank, task.Host, err)
			}
			s.logger.Debug().Int("rank", rank).Str("host", task.Host).Msg("Agent launched")
			return nil
		})
	}
	return g.Wait()
}

// AwaitHandshakes accepts exactly N connections, reads each "rank <r>
// <pid>" greeting and answers with the serialized job configuration.
// Afterwards every rank has exactly one control socket and a known agent
// PID.
func (s *Scheduler) AwaitHandshakes() error {
	blob, err := s.cfg.Encode()
	if err != nil {
		return err
	}

	for i := 0; i < s.cfg.NumWorkers(); i++ {
		conn, err := s.ln.Accept()
		if err != nil {
			return fmt.Errorf("%w: accepted %d of %d agents: %v", ErrHandshakeIncomplete, i, s.cfg.NumWorkers(), err)
		}
		ch := framing.New(conn)

		hello, err := ch.Recv()
		if err != nil {
			return fmt.Errorf("%w: bad greeting: %v", ErrHandshakeIncomplete, err)
		}
		var rank, pid int
		if _, err := fmt.Sscanf(hello, "rank %d %d", &rank, &pid); err != nil {
			return fmt.Errorf("%w: malformed greeting %q", ErrHandshakeIncomplete, hello)
		}
		if rank < 0 || rank >= s.cfg.NumWorkers() {
			return fmt.Errorf("%w: rank %d out of range", ErrHandshakeIncomplete, rank)
		}
		if s.agents[rank] != nil {
			return fmt.Errorf("%w: duplicate handshake for rank %d", ErrHandshakeIncomplete, rank)
		}

		if err := ch.Send(blob); err != nil {
			return fmt.Errorf("%w: failed to send config to rank %d: %v", ErrHandshakeIncomplete, rank, err)
		}
		s.agents[rank] = &agentConn{ch: ch, pid: pid, state: types.AgentConfigured}
		metrics.AgentsConnected.Set(float64(i + 1))
		s.logger.Info().
			Int("rank", rank).
			Int("pid", pid).
			Str("remote", conn.RemoteAddr().String()).
			Msg("Agent connected")
		s.publish(events.EventAgentConnected, fmt.Sprintf("rank %d", rank), map[string]string{"pid": fmt.Sprint(pid)})
	}
	return nil
}

// RunPhases drives the execution ordering for the job's mode.
func (s *Scheduler) RunPhases() error {
	s.setPhase(types.PhaseOne)
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.PhaseDuration, "execution")

	switch {
	case s.cfg.MapOnly:
		s.logger.Info().Int("count", s.cfg.NumMapWorkers).Msg("Starting map workers")
		return s.startMappers()

	case s.cfg.Incremental:
		// Reducers first; no mapper may start before every reducer has
		// acknowledged it is up.
		s.logger.Info().Int("count", s.cfg.NumReduceWorkers).Msg("Starting reduce workers")
		if err := s.startReducers(); err != nil {
			return err
		}
		if err := s.awaitAcks(s.reducerRanks(), types.MsgReducerStarted); err != nil {
			return err
		}
		s.setPhase(types.PhaseTwo)
		s.logger.Info().Int("count", s.cfg.NumMapWorkers).Msg("Starting map workers")
		return s.startMappers()

	default:
		// Batch: every mapper must finish (shuffle included) before the
		// first reducer starts.
		s.logger.Info().Int("count", s.cfg.NumMapWorkers).Msg("Starting map workers")
		if err := s.startMappers(); err != nil {
			return err
		}
		if err := s.awaitAcks(s.mapperRanks(), types.MsgMapperFinished); err != nil {
			return err
		}
		s.setPhase(types.PhaseTwo)
		s.logger.Info().Int("count", s.cfg.NumReduceWorkers).Msg("Starting reduce workers")
		return s.startReducers()
	}
}

func (s *Scheduler) startMappers() error {
	return s.sendToRanks(s.mapperRanks(), types.CmdStartMapper)
}

func (s *Scheduler) startReducers() error {
	return s.sendToRanks(s.reducerRanks(), types.CmdStartReducer)
}

func (s *Scheduler) sendToRanks(ranks []int, instruction string) error {
	for _, rank := range ranks {
		if err := s.agents[rank].ch.Send(instruction); err != nil {
			return fmt.Errorf("%w: rank %d: %v", ErrAgentLost, rank, err)
		}
		s.agents[rank].state = types.AgentRunning
	}
	return nil
}

// awaitAcks reads one acknowledgement from every listed rank, in rank
// order. Framing is FIFO per socket, so per-rank ordering is safe; across
// sockets no ordering is assumed.
func (s *Scheduler) awaitAcks(ranks []int, want string) error {
	for _, rank := range ranks {
		got, err := s.agents[rank].ch.Recv()
		if err != nil {
			return fmt.Errorf("%w: rank %d: %v", ErrAgentLost, rank, err)
		}
		if got != want {
			return fmt.Errorf("%w: rank %d acknowledged %q, want %q", ErrWorkerFailed, rank, got, want)
		}
		s.logger.Debug().Int("rank", rank).Str("ack", got).Msg("Acknowledgement received")
	}
	return nil
}

func (s *Scheduler) mapperRanks() []int {
	ranks := make([]int, 0, s.cfg.NumMapWorkers)
	for r := 0; r < s.cfg.NumMapWorkers; r++ {
		ranks = append(ranks, r)
	}
	return ranks
}

func (s *Scheduler) reducerRanks() []int {
	ranks := make([]int, 0, s.cfg.NumReduceWorkers)
	for r := s.cfg.NumMapWorkers; r < s.cfg.NumWorkers(); r++ {
		ranks = append(ranks, r)
	}
	return ranks
}

