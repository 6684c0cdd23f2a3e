package scheduler

import "errors"

// The fatal error kinds of the control plane. Every one of them routes
// through the kill-all path; none is retried.
var (
	// ErrDeployFailed: a remote mkdir or copy exited non-zero before any
	// worker started.
	ErrDeployFailed = errors.New("deploy failed")

	// ErrHandshakeIncomplete: fewer than N agent connections arrived.
	ErrHandshakeIncomplete = errors.New("handshake incomplete")

	// ErrWorkerFailed: an agent reported Failed during monitoring or a
	// phase acknowledgement was wrong.
	ErrWorkerFailed = errors.New("worker failed")

	// ErrAgentLost: a control socket died; treated like a worker failure.
	ErrAgentLost = errors.New("agent lost")

	// ErrInterrupted: the user interrupted the scheduler.
	ErrInterrupted = errors.New("interrupted")
)
