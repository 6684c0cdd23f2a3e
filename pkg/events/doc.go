/*
Package events provides a lightweight publish/subscribe broker for job
lifecycle events.

The scheduler publishes an event on every job and phase transition, every
agent handshake and every worker completion or failure. Subscribers — such
as the run command's debug-log listener — receive events on buffered
channels; a slow subscriber drops events rather than stalling the phase
machine. The job history ledger is written directly by the run command and
does not subscribe.
*/
package events
