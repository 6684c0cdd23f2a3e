package agent

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/mrlite/mrlite/pkg/types"
)

// reportStatus answers a status poll. With no child yet there is nothing to
// say and the agent stays silent; the scheduler only polls ranks it has
// started, so silence never stalls a round.
func (a *Agent) reportStatus() error {
	a.mu.Lock()
	child := a.child
	a.mu.Unlock()
	if child == nil {
		return nil
	}

	done, code := child.Poll()
	var msg string
	switch {
	case !done:
		msg = a.runningMetrics(child.PID())
	case code == 0:
		msg = types.StatusFinished
	default:
		// Negative codes are signal deaths; a positive code can only be
		// seen here for an incremental reducer, and it is just as dead.
		msg = types.StatusFailed
	}
	return a.ch.Send(msg)
}

// runningMetrics samples the child through top. An unexpected pipeline
// shape degrades to the Not-Sure heartbeat rather than a failure.
func (a *Agent) runningMetrics(pid int) string {
	cmd := exec.Command("sh", "-c", fmt.Sprintf("top -p %d -b -n 1 | grep -A 1 PID", pid))
	out, err := cmd.Output()
	if err != nil {
		return types.StatusNotSure
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 2 {
		return types.StatusNotSure
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 10 {
		return types.StatusNotSure
	}
	return fmt.Sprintf("%s %d %s", types.StatusRunning, pid, strings.Join(fields[4:10], " "))
}
