/*
Package scheduler implements the single coordinator of a mrlite job.

# Lifecycle

A job moves through a fixed sequence of phases, none overlapping:

  - deploying: the worker binary (staged under the job identity name) and
    the agent executable are copied to every host's tmp dir in parallel
  - connecting: a TCP control endpoint is bound on a kernel-assigned port,
    one agent per rank is launched remotely, and exactly N handshakes are
    accepted; each agent receives the serialized job configuration
  - phase1/phase2: the execution ordering for the job's mode. Batch sends
    start_mapper everywhere, collects mapper_finished from every mapper and
    only then sends start_reducer. Incremental starts the reducers, waits
    for every reducer_started, then releases the mappers. Map-only has a
    single map phase.
  - monitoring: every 5 seconds each still-running rank is polled with a
    status round trip. Finished retires a rank; Failed aborts the job;
    everything else (Running metrics, the Not-Sure heartbeat) is
    informational.
  - draining: every agent gets quit and the sockets close.

# Failure

Every error kind — deploy failure, incomplete handshake, worker failure,
lost agent socket, user interrupt — is fatal and routes through KillAll,
which issues a remote `kill -TERM <pid>` for every recorded agent PID.
KillAll is idempotent; the control plane never retries anything. Individual
worker binaries may retry internally, invisibly to the scheduler.
*/
package scheduler
