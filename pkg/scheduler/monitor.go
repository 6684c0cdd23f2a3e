package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mrlite/mrlite/pkg/events"
	"github.com/mrlite/mrlite/pkg/metrics"
	"github.com/mrlite/mrlite/pkg/types"
)

// Monitor polls every still-running rank with a status round trip each
// tick until all have finished. A Failed reply or a dead socket aborts the
// job; anything that is not Finished or Failed is informational, the
// Not-Sure heartbeat included.
func (s *Scheduler) Monitor(ctx context.Context) error {
	s.setPhase(types.PhaseMonitoring)

	running := make(map[int]bool, s.cfg.NumWorkers())
	for rank := range s.agents {
		running[rank] = true
	}

	for len(running) > 0 {
		metrics.StatusRounds.Inc()
		for rank := 0; rank < s.cfg.NumWorkers(); rank++ {
			if !running[rank] {
				continue
			}
			agent := s.agents[rank]

			if err := agent.ch.Send(types.CmdStatus); err != nil {
				agent.state = types.AgentFailed
				return fmt.Errorf("%w: %s: %v", ErrAgentLost, s.cfg.WorkerName(rank), err)
			}
			reply, err := agent.ch.Recv()
			if err != nil {
				agent.state = types.AgentFailed
				return fmt.Errorf("%w: %s: %v", ErrAgentLost, s.cfg.WorkerName(rank), err)
			}

			switch {
			case reply == types.StatusFinished:
				delete(running, rank)
				agent.state = types.AgentFinished
				metrics.WorkersFinished.Inc()
				s.logger.Info().Str("worker", s.cfg.WorkerName(rank)).Msg("Worker finished")
				s.publish(events.EventWorkerFinished, s.cfg.WorkerName(rank), nil)
			case reply == types.StatusFailed:
				agent.state = types.AgentFailed
				metrics.WorkersFailed.Inc()
				s.publish(events.EventWorkerFailed, s.cfg.WorkerName(rank), nil)
				return fmt.Errorf("%w: %s", ErrWorkerFailed, s.cfg.WorkerName(rank))
			case strings.HasPrefix(reply, types.StatusRunning), reply == types.StatusNotSure:
				s.logger.Debug().Str("worker", s.cfg.WorkerName(rank)).Str("status", reply).Msg("Worker running")
			default:
				s.logger.Debug().Str("worker", s.cfg.WorkerName(rank)).Str("status", reply).Msg("Unrecognized status reply")
			}
		}

		if len(running) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		case <-time.After(s.monitorInterval):
		}
	}
	return nil
}

// Drain tells every agent to quit and closes the control sockets. Send
// failures are ignored: an agent that is already gone is exactly what
// drain wants.
func (s *Scheduler) Drain() {
	s.setPhase(types.PhaseDraining)
	for rank, agent := range s.agents {
		if agent == nil {
			continue
		}
		if err := agent.ch.Send(types.CmdQuit); err != nil {
			s.logger.Debug().Int("rank", rank).Err(err).Msg("Quit not delivered")
		}
		agent.ch.Close()
		agent.state = types.AgentQuitting
	}
}

// KillAll terminates every known agent by its recorded PID over the remote
// transport. It is idempotent: the second and later invocations change
// nothing. Agents kill their own worker children from the TERM handler.
func (s *Scheduler) KillAll() {
	s.killOnce.Do(func() {
		for rank, agent := range s.agents {
			if agent == nil {
				continue
			}
			host := s.cfg.Task(rank).Host
			cmd := fmt.Sprintf("kill -TERM %d >/dev/null 2>&1", agent.pid)
			if _, err := s.runner.RunOn(host, cmd); err != nil {
				s.logger.Error().Err(err).Int("rank", rank).Str("host", host).Msg("Failed to kill agent")
				continue
			}
			s.logger.Info().Int("rank", rank).Int("pid", agent.pid).Str("host", host).Msg("Agent killed")
		}
	})
}
