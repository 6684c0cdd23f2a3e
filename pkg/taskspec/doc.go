/*
Package taskspec parses the declarative task-specification language into the
flat, rank-ordered task list the scheduler executes.

# Grammar

Each io spec is a semicolon-separated list of entries. An entry opens with a
brace-wrapped, comma-separated host list and continues with colon-separated
fields:

	{h1,h2}:WordCountMapper:text:/data/part-*:/tmp/shuffle

Map and reduce entries carry five fields, map-only entries six. The tmp-dir
and log-filebase specs use the same host-list shape followed directly by a
path. Whitespace around separators is ignored and empty entries are dropped,
so trailing semicolons are harmless.

# Resolution and Expansion

Hostnames resolve once through a pluggable Resolver; IPv4 literals pass
through unchanged. A literal is four dotted decimal components below 256
with no leading zeros ("0" itself is allowed). An entry listing k hosts
expands to k tasks in host order, and the final task list is all map tasks
followed by all reduce tasks, ranks assigned by position.

# Validation

Everything is validated before the scheduler touches a remote host: field
counts, formats, mode exclusivity, the existence of the local worker binary,
and that every task host has a tmp-dir and log-filebase entry. Failures wrap
ErrInvalidSpec.
*/
package taskspec
