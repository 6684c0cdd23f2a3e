package types

// Format identifies the record encoding of a worker's input or output files.
type Format string

const (
	FormatText     Format = "text"
	FormatRecordIO Format = "recordio"

	// FormatNone marks the side of a task that has no format: reduce tasks
	// carry no input format and two-phase map tasks carry no output format.
	FormatNone Format = ""
)

// Valid reports whether f is a format users may spell in a task spec.
func (f Format) Valid() bool {
	return f == FormatText || f == FormatRecordIO
}

// Task is a fully-resolved unit of work bound to a single host.
type Task struct {
	Host         string `json:"host"` // IPv4 address
	Class        string `json:"class"`
	InputFormat  Format `json:"input_format,omitempty"`
	InputPath    string `json:"input_path"`
	OutputFormat Format `json:"output_format,omitempty"`
	OutputPath   string `json:"output_path"`
	TmpDir       string `json:"tmp_dir"`
	LogFilebase  string `json:"log_filebase"`
}

// AgentState is the lifecycle state of one per-rank agent as observed by the
// scheduler.
type AgentState string

const (
	AgentConnected  AgentState = "connected"
	AgentConfigured AgentState = "configured"
	AgentRunning    AgentState = "running"
	AgentFinished   AgentState = "finished"
	AgentFailed     AgentState = "failed"
	AgentQuitting   AgentState = "quitting"
)

// Phase is the scheduler's global execution phase.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseDeploying  Phase = "deploying"
	PhaseConnecting Phase = "connecting"
	PhaseOne        Phase = "phase1"
	PhaseTwo        Phase = "phase2"
	PhaseMonitoring Phase = "monitoring"
	PhaseDraining   Phase = "draining"
	PhaseDone       Phase = "done"
	PhaseAborted    Phase = "aborted"
)
