/*
Package remote is the remote-execution primitive under every mrlite action
that leaves the scheduler process: launching agents, delivering artifacts,
relocating shuffle partitions and killing runaway agents.

The Runner interface abstracts the transport. ExecRunner is the production
implementation: local commands run through `sh -c` with PATH pinned to the
system utility directories, remote commands run through `ssh -q -p <port>`,
and file delivery runs through `scp -q -P <port>` after a remote
`mkdir -p`. Copy dispatch is parallel across hosts and any failure is fatal
to the enclosing operation.

Handles expose the child PID, blocking Wait, non-blocking Poll and Kill;
a non-zero exit anywhere surfaces as an error the scheduler converts into a
job abort.
*/
package remote
