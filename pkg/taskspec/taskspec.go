package taskspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlite/mrlite/pkg/types"
)

// ErrInvalidSpec tags every parse or validation failure. The scheduler never
// contacts a remote host once Parse has returned an error wrapping it.
var ErrInvalidSpec = errors.New("invalid task spec")

// Options is the raw, user-supplied job description before parsing.
type Options struct {
	// Cmd is the worker command: the local executable path, optionally
	// followed by arguments passed through to every worker child.
	Cmd string

	// Exactly one of {MapIO+ReduceIO, MapOnlyIO} must be provided.
	MapIO     string
	ReduceIO  string
	MapOnlyIO string

	TmpDirSpec      string
	LogFilebaseSpec string

	BufferSize  int
	Incremental bool
	ForceMkdir  bool
	SSHPort     int
}

// Job is the parsed, fully-resolved result: the global configuration plus
// the scheduler-local facts that never travel to agents.
type Job struct {
	Config *types.JobConfig

	// LocalExecutable is the worker binary on the scheduler host.
	LocalExecutable string

	// TmpDirs and LogFilebases map every resolved host to its scratch
	// directory and log file prefix.
	TmpDirs      map[string]string
	LogFilebases map[string]string

	// Hosts lists every distinct host mentioned by any task.
	Hosts []string
}

// Parse resolves and validates opts using the system name service.
func Parse(opts Options) (*Job, error) {
	return ParseWithResolver(opts, SystemResolver{})
}

// ParseWithResolver is Parse with a caller-supplied host resolver, so tests
// never touch real DNS.
func ParseWithResolver(opts Options, resolver Resolver) (*Job, error) {
	p := &parser{opts: opts, resolver: resolver}
	return p.parse()
}

type parser struct {
	opts     Options
	resolver Resolver
}

func (p *parser) parse() (*Job, error) {
	opts := p.opts

	mapOnly := opts.MapOnlyIO != ""
	if mapOnly {
		if opts.MapIO != "" || opts.ReduceIO != "" {
			return nil, fmt.Errorf("%w: map-io and reduce-io are forbidden in map-only mode", ErrInvalidSpec)
		}
	} else {
		if opts.MapIO == "" || opts.ReduceIO == "" {
			return nil, fmt.Errorf("%w: map-io and reduce-io are both required outside map-only mode", ErrInvalidSpec)
		}
	}
	if opts.Cmd == "" {
		return nil, fmt.Errorf("%w: worker command is required", ErrInvalidSpec)
	}

	localExecutable, cmdArgs := splitCmd(opts.Cmd)
	if _, err := os.Stat(localExecutable); err != nil {
		return nil, fmt.Errorf("%w: worker binary %s: %v", ErrInvalidSpec, localExecutable, err)
	}

	tmpDirs, err := p.parseHostPathSpec("tmp-dir", opts.TmpDirSpec, true)
	if err != nil {
		return nil, err
	}
	logFilebases, err := p.parseHostPathSpec("log-filebase", opts.LogFilebaseSpec, false)
	if err != nil {
		return nil, err
	}

	var mapTasks, reduceTasks []types.Task
	if mapOnly {
		mapTasks, err = p.parseMapOnlyTasks(opts.MapOnlyIO, tmpDirs, logFilebases)
	} else {
		mapTasks, err = p.parseMapTasks(opts.MapIO, tmpDirs, logFilebases)
		if err == nil {
			reduceTasks, err = p.parseReduceTasks(opts.ReduceIO, tmpDirs, logFilebases)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(mapTasks) == 0 {
		return nil, fmt.Errorf("%w: no map tasks", ErrInvalidSpec)
	}
	if !mapOnly && len(reduceTasks) == 0 {
		return nil, fmt.Errorf("%w: no reduce tasks", ErrInvalidSpec)
	}

	identity := types.NewJobIdentity(localExecutable)
	cfg := &types.JobConfig{
		Identity:         identity,
		Tasks:            append(append([]types.Task(nil), mapTasks...), reduceTasks...),
		NumMapWorkers:    len(mapTasks),
		NumReduceWorkers: len(reduceTasks),
		MapOnly:          mapOnly,
		Incremental:      opts.Incremental,
		ForceMkdir:       opts.ForceMkdir,
		BufferSize:       opts.BufferSize,
		SSHPort:          opts.SSHPort,
		RemoteExecutable: identity,
		CmdArgs:          cmdArgs,
	}

	// One pre-reserved endpoint hint per reducer. Map-only jobs have no
	// reducers, so the allocation (and the buffer-per-reducer derivation
	// downstream) is skipped entirely.
	if !mapOnly {
		endpoints, err := AllocateEndpoints(reduceTasks)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate reduce endpoints: %w", err)
		}
		cfg.ReduceWorkers = endpoints
	}

	job := &Job{
		Config:          cfg,
		LocalExecutable: localExecutable,
		TmpDirs:         tmpDirs,
		LogFilebases:    logFilebases,
		Hosts:           taskHosts(cfg.Tasks),
	}
	if err := p.validate(job); err != nil {
		return nil, err
	}
	return job, nil
}

// validate enforces the cross-cutting invariants after expansion. Every
// failure here is fatal before any remote action.
func (p *parser) validate(job *Job) error {
	for rank, task := range job.Config.Tasks {
		if task.TmpDir == "" {
			return fmt.Errorf("%w: host %s has no tmp-dir entry", ErrInvalidSpec, task.Host)
		}
		if task.LogFilebase == "" {
			return fmt.Errorf("%w: host %s has no log-filebase entry", ErrInvalidSpec, task.Host)
		}
		if task.Class == "" {
			return fmt.Errorf("%w: task %d has no worker class", ErrInvalidSpec, rank)
		}
		if task.InputPath == "" || task.OutputPath == "" {
			return fmt.Errorf("%w: task %d is missing an input or output path", ErrInvalidSpec, rank)
		}
	}
	return nil
}

// splitCmd separates the worker executable from its pass-through argument
// tail on the first space.
func splitCmd(cmd string) (executable, args string) {
	fields := strings.SplitN(strings.TrimSpace(cmd), " ", 2)
	executable = filepath.Clean(fields[0])
	if len(fields) == 2 {
		args = strings.TrimSpace(fields[1])
	}
	return executable, args
}

// splitFields splits s on sep, trims whitespace and drops empty entries.
func splitFields(s, sep string) []string {
	var out []string
	for _, f := range strings.Split(s, sep) {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// taskHosts returns the distinct hosts of tasks, in first-seen order.
func taskHosts(tasks []types.Task) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, t := range tasks {
		if !seen[t.Host] {
			seen[t.Host] = true
			hosts = append(hosts, t.Host)
		}
	}
	return hosts
}
