package types

// Control-plane vocabulary. All messages are short strings carried over the
// framing channel; the configuration blob is the only structured payload.

// Scheduler-to-agent instructions.
const (
	CmdStartMapper  = "start_mapper"
	CmdStartReducer = "start_reducer"
	CmdStatus       = "status"
	CmdQuit         = "quit"
	CmdExit         = "exit" // accepted as a synonym of quit
)

// Agent-to-scheduler replies.
const (
	MsgMapperFinished = "mapper_finished"
	MsgReducerStarted = "reducer_started"

	// Status replies. StatusRunning is a prefix; the full message carries
	// the child PID and a short metrics string. StatusNotSure is a
	// heartbeat, not a failure.
	StatusFinished = "Finished"
	StatusFailed   = "Failed"
	StatusRunning  = "Running"
	StatusNotSure  = "Not-Sure"
)
