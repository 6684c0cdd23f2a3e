package remote

// Runner launches commands locally or on remote hosts and copies files out
// to hosts. The scheduler, agents and shuffle mover all go through this
// interface; tests substitute an in-process fake so no job logic ever
// depends on a real ssh transport.
type Runner interface {
	// Run starts cmd through the local shell and returns without waiting.
	Run(cmd string) (Handle, error)

	// RunOn starts cmd on host over the remote-command transport and
	// returns without waiting. The remote process outlives the call.
	RunOn(host, cmd string) (Handle, error)

	// CopyFiles delivers every file to its destination directory on each
	// host, creating the directory first. Dispatch is parallel across
	// hosts; the first failure wins and fails the whole copy.
	CopyFiles(files []string, hostDirs map[string]string) error
}

// Handle tracks one started process.
type Handle interface {
	// PID of the immediate child (the shell or ssh process).
	PID() int

	// Wait blocks until the process exits and returns an error for any
	// non-zero exit status.
	Wait() error

	// Poll reports without blocking whether the process has exited, and
	// with what code. The code is meaningful only once done is true;
	// signal-terminated processes report a negative code.
	Poll() (done bool, exitCode int)

	// Kill terminates the process.
	Kill() error
}

// RunAndWait is the common start-then-block pattern.
func RunAndWait(r Runner, cmd string) error {
	h, err := r.Run(cmd)
	if err != nil {
		return err
	}
	return h.Wait()
}
