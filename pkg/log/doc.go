/*
Package log provides structured logging for mrlite built on zerolog.

A single global logger is initialized once by the CLI entry point and then
borrowed through child-logger constructors that attach the standard fields:

	logger := log.WithComponent("scheduler")
	logger.Info().Int("rank", rank).Msg("Agent connected")

# Configuration

Init selects the level and output encoding. Console output (the default) is
human-oriented; JSON output is for collection pipelines. Agents additionally
tee their output into a per-rank file under the host's tmp directory so a
failed run leaves evidence on the worker host.
*/
package log
