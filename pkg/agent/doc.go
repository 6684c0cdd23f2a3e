/*
Package agent implements the per-rank control-plane process that runs on
every worker host.

An agent dials back to the scheduler, introduces itself with
"rank <r> <pid>", receives the global job configuration, and then serves
one instruction at a time from the control socket. It owns at most one
worker subprocess: start_mapper and start_reducer spawn it with the exact
flag set its role requires, status reports Finished/Failed/Running, and
quit tears down the deployed artifacts.

Mappers and batch reducers are wait-then-ack: the agent blocks on the child
and only then returns to its loop (a finished batch mapper first runs the
shuffle mover and replies mapper_finished). Incremental reducers are
start-then-ack: the child keeps running while the agent resumes its loop so
status polls keep working, and reducer_started is sent after a short
stabilization delay.

On SIGTERM — the scheduler's kill-all path — the agent kills its child,
removes its artifacts and exits nonzero.
*/
package agent
