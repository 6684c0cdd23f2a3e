package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ConfigVersion is the wire version of the serialized job configuration.
// Agents reject a configuration whose version they do not understand, so the
// scheduler and agents can be rolled independently.
const ConfigVersion = 1

// JobConfig is the immutable global configuration distributed to every agent
// exactly once, right after its handshake.
type JobConfig struct {
	Version  int    `json:"version"`
	Identity string `json:"identity"`

	// Tasks holds all tasks in rank order: map tasks first, reduce tasks
	// after. Rank r is Tasks[r].
	Tasks            []Task `json:"tasks"`
	NumMapWorkers    int    `json:"num_map_workers"`
	NumReduceWorkers int    `json:"num_reduce_workers"`

	MapOnly     bool `json:"map_only"`
	Incremental bool `json:"incremental"`
	ForceMkdir  bool `json:"force_mkdir"`

	// BufferSize is the per-mapper memory buffer in MB; each mapper divides
	// it evenly across reducers.
	BufferSize int `json:"buffer_size"`

	// ReduceWorkers lists one host:port endpoint per reducer, in reducer
	// order. Empty in map-only mode.
	ReduceWorkers []string `json:"reduce_workers"`

	SSHPort int `json:"ssh_port"`

	// RemoteExecutable is the identity-derived name the worker binary was
	// deployed under in each host's tmp dir.
	RemoteExecutable string `json:"remote_executable"`

	// CmdArgs is the command-line tail passed through to every worker child.
	CmdArgs string `json:"cmd_args,omitempty"`
}

// NumWorkers returns the total rank count.
func (c *JobConfig) NumWorkers() int {
	return c.NumMapWorkers + c.NumReduceWorkers
}

// IsMapper reports whether rank identifies a map task.
func (c *JobConfig) IsMapper(rank int) bool {
	return rank < c.NumMapWorkers
}

// LocalIndex converts a global rank to its role-local index: mappers keep
// their rank, reducers are numbered from zero again.
func (c *JobConfig) LocalIndex(rank int) int {
	if c.IsMapper(rank) {
		return rank
	}
	return rank - c.NumMapWorkers
}

// Task returns the task bound to rank.
func (c *JobConfig) Task(rank int) *Task {
	return &c.Tasks[rank]
}

// Batch reports whether the job runs in batch reduction mode, where every
// mapper must finish before any reducer starts.
func (c *JobConfig) Batch() bool {
	return !c.Incremental
}

// WorkerName renders a human-readable name for the worker at rank, such as
// "Mapper-0(10.0.0.1, WordCountMapper)".
func (c *JobConfig) WorkerName(rank int) string {
	role := "Mapper"
	if !c.IsMapper(rank) {
		role = "Reducer"
	}
	task := c.Task(rank)
	return fmt.Sprintf("%s-%d(%s, %s)", role, c.LocalIndex(rank), task.Host, task.Class)
}

// ReduceWorkerList renders ReduceWorkers as the comma-separated string the
// worker binary expects in --mr_reduce_workers.
func (c *JobConfig) ReduceWorkerList() string {
	return strings.Join(c.ReduceWorkers, ",")
}

// Encode serializes the configuration to a 7-bit safe blob suitable for a
// single framed control-plane message.
func (c *JobConfig) Encode() (string, error) {
	c.Version = ConfigVersion
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job config: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeConfig parses a blob produced by Encode, rejecting unknown versions.
func DecodeConfig(blob string) (*JobConfig, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job config: %w", err)
	}
	var cfg JobConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job config: %w", err)
	}
	if cfg.Version != ConfigVersion {
		return nil, fmt.Errorf("unsupported job config version %d (want %d)", cfg.Version, ConfigVersion)
	}
	return &cfg, nil
}
