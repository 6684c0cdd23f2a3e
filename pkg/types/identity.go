package types

import (
	"os/user"
	"path/filepath"
	"time"
)

// JobIdentity derives the job identity string from the worker executable
// basename, the launching user and a timestamp. The identity prefixes every
// intermediate file and names the deployed binary, so it must be unique per
// invocation; resolution is one minute, which is why two jobs with the same
// basename must not launch within the same minute.
func JobIdentity(executable, username string, t time.Time) string {
	return filepath.Base(executable) + "-" + username + "-" + t.Format("2006-01-02-15-04")
}

// AgentExecutable names the agent binary deployed to each host's tmp dir.
// The identity prefix keeps concurrent jobs on one host from clobbering
// each other's agent.
func AgentExecutable(identity string) string {
	return identity + "-agent"
}

// NewJobIdentity computes the identity for a job started now by the current
// OS user.
func NewJobIdentity(executable string) string {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	return JobIdentity(executable, username, time.Now())
}
