/*
Package history keeps a local ledger of job runs in a BoltDB file.

Each scheduler invocation writes one record at job start and finalizes it
with the terminal phase, the error (if any) and the finish time. The ledger
exists for `mrlite history`: operators can ask what ran, when, and how it
ended without trawling logs. It is deliberately not durable scheduler
state — a crashed scheduler leaves an unfinished record behind, and nothing
resumes from it.
*/
package history
