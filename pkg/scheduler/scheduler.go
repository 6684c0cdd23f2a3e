package scheduler

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlite/mrlite/pkg/events"
	"github.com/mrlite/mrlite/pkg/framing"
	"github.com/mrlite/mrlite/pkg/log"
	"github.com/mrlite/mrlite/pkg/metrics"
	"github.com/mrlite/mrlite/pkg/remote"
	"github.com/mrlite/mrlite/pkg/taskspec"
	"github.com/mrlite/mrlite/pkg/types"
)

// defaultMonitorInterval is the liveness polling period.
const defaultMonitorInterval = 5 * time.Second

// Config wires a scheduler together.
type Config struct {
	Job    *taskspec.Job
	Runner remote.Runner

	// Broker receives job lifecycle events; optional.
	Broker *events.Broker

	// ListenIP is the scheduler's reachable IPv4. Empty means autodetect
	// from the hostname.
	ListenIP string

	// MonitorInterval overrides the 5 s status polling period; tests
	// shrink it.
	MonitorInterval time.Duration
}

// agentConn is the scheduler's view of one connected agent.
type agentConn struct {
	ch    *framing.Channel
	pid   int
	state types.AgentState
}

// Scheduler is the single coordinator of a job: it deploys artifacts,
// launches one agent per rank, distributes the configuration, drives the
// phase state machine, monitors liveness and shuts everything down.
type Scheduler struct {
	job    *taskspec.Job
	cfg    *types.JobConfig
	runner remote.Runner
	broker *events.Broker
	logger zerolog.Logger

	listenIP        string
	monitorInterval time.Duration

	ln     net.Listener
	agents []*agentConn
	phase  types.Phase

	// killOnce makes the abort path idempotent: a second trigger is a
	// no-op beyond the first.
	killOnce sync.Once
}

// New creates a scheduler for a parsed job.
func New(cfg Config) *Scheduler {
	interval := cfg.MonitorInterval
	if interval == 0 {
		interval = defaultMonitorInterval
	}
	s := &Scheduler{
		job:             cfg.Job,
		cfg:             cfg.Job.Config,
		runner:          cfg.Runner,
		broker:          cfg.Broker,
		logger:          log.WithComponent("scheduler"),
		listenIP:        cfg.ListenIP,
		monitorInterval: interval,
		agents:          make([]*agentConn, cfg.Job.Config.NumWorkers()),
		phase:           types.PhaseInit,
	}
	return s
}

// Phase returns the scheduler's current global phase.
func (s *Scheduler) Phase() types.Phase {
	return s.phase
}

// Addr returns the listener address, valid after Listen.
func (s *Scheduler) Addr() *net.TCPAddr {
	return s.ln.Addr().(*net.TCPAddr)
}

// Run executes the whole job. Any error has already triggered kill-all by
// the time it is returned; ctx cancellation counts as a user interrupt.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.run(ctx); err != nil {
		s.logger.Error().Err(err).Str("phase", string(s.phase)).Msg("Job failed, killing all agents")
		s.KillAll()
		s.setPhase(types.PhaseAborted)
		s.publish(events.EventJobAborted, err.Error(), nil)
		return err
	}
	s.setPhase(types.PhaseDone)
	s.publish(events.EventJobCompleted, "job completed", map[string]string{"identity": s.cfg.Identity})
	return nil
}

func (s *Scheduler) run(ctx context.Context) error {
	mode := "BATCH"
	switch {
	case s.cfg.MapOnly:
		mode = "MAP-ONLY"
	case s.cfg.Incremental:
		mode = "INCREMENTAL"
	}
	s.logger.Info().
		Str("identity", s.cfg.Identity).
		Str("mode", mode).
		Int("map_workers", s.cfg.NumMapWorkers).
		Int("reduce_workers", s.cfg.NumReduceWorkers).
		Msg("Job starting")
	s.publish(events.EventJobStarted, "job started", map[string]string{"identity": s.cfg.Identity, "mode": mode})
	metrics.WorkersTotal.WithLabelValues("mapper").Set(float64(s.cfg.NumMapWorkers))
	metrics.WorkersTotal.WithLabelValues("reducer").Set(float64(s.cfg.NumReduceWorkers))

	if err := s.Deploy(); err != nil {
		return err
	}
	if err := s.Listen(); err != nil {
		return err
	}
	defer s.ln.Close()

	// A cancelled context unblocks the accept loop by closing the
	// listener and unblocks monitoring via its own tick check.
	stop := context.AfterFunc(ctx, func() { s.ln.Close() })
	defer stop()

	if err := s.LaunchAgents(); err != nil {
		return err
	}
	if err := s.AwaitHandshakes(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		}
		return err
	}
	if err := s.RunPhases(); err != nil {
		return err
	}
	if err := s.Monitor(ctx); err != nil {
		return err
	}
	s.Drain()
	return nil
}

// setPhase advances the global phase, logging and timing the transition.
func (s *Scheduler) setPhase(phase types.Phase) {
	if s.phase == phase {
		return
	}
	s.logger.Info().Str("from", string(s.phase)).Str("to", string(phase)).Msg("Phase transition")
	s.phase = phase
	s.publish(events.EventPhaseStarted, string(phase), nil)
}

func (s *Scheduler) publish(eventType events.EventType, message string, metadata map[string]string) {
	if s.broker != nil {
		s.broker.Publish(events.New(eventType, message, metadata))
	}
}

// hostIP resolves the scheduler's own primary IPv4 the same way agents will
// reach it: through the hostname.
func hostIP() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	return taskspec.SystemResolver{}.LookupIPv4(name)
}
