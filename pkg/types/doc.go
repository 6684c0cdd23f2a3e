/*
Package types defines the core data structures shared by the mrlite
scheduler and agents.

This package contains the fundamental types that represent mrlite's domain
model: tasks, the global job configuration, the control-plane vocabulary,
and the scheduler/agent state enums. All other packages build on it.

# Core Types

Task execution:
  - Task: A unit of work fully resolved to one host
  - Format: text or recordio record encoding
  - JobConfig: The immutable per-job configuration shipped to every agent

Identity and addressing:
  - Ranks are dense integers in [0, N); mappers occupy [0, num_map) and
    reducers the remainder. JobConfig provides the rank helpers.
  - JobIdentity derives the per-invocation job identity string that tags
    intermediate files and deployed artifacts.

State:
  - AgentState: connected through quitting, as observed by the scheduler
  - Phase: the scheduler's global phase, init through done/aborted

# Wire Format

JobConfig serializes as versioned JSON wrapped in base64 so it travels as a
single 7-bit-safe framed message. Agents reject configurations with an
unknown version, decoupling scheduler and agent rollouts. The short
control-plane instructions and replies are declared in protocol.go.
*/
package types
