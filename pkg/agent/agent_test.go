package agent

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlite/mrlite/pkg/framing"
	"github.com/mrlite/mrlite/pkg/log"
	"github.com/mrlite/mrlite/pkg/remote"
	"github.com/mrlite/mrlite/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

// fakeHandle scripts one child process outcome.
type fakeHandle struct {
	pid      int
	waitErr  error
	done     bool
	exitCode int
	killed   bool
}

func (h *fakeHandle) PID() int          { return h.pid }
func (h *fakeHandle) Wait() error       { return h.waitErr }
func (h *fakeHandle) Poll() (bool, int) { return h.done, h.exitCode }
func (h *fakeHandle) Kill() error       { h.killed = true; return nil }

// fakeRunner hands out scripted handles and records everything.
type fakeRunner struct {
	handles  []*fakeHandle
	commands []string
	copies   []map[string]string
}

func (r *fakeRunner) Run(cmd string) (remote.Handle, error) {
	r.commands = append(r.commands, cmd)
	if strings.HasPrefix(cmd, "rm ") || strings.HasPrefix(cmd, "mv ") {
		return &fakeHandle{pid: 1, done: true}, nil
	}
	if len(r.handles) == 0 {
		return &fakeHandle{pid: 1, done: true}, nil
	}
	h := r.handles[0]
	r.handles = r.handles[1:]
	return h, nil
}

func (r *fakeRunner) RunOn(host, cmd string) (remote.Handle, error) {
	r.commands = append(r.commands, fmt.Sprintf("[%s] %s", host, cmd))
	return &fakeHandle{pid: 1, done: true}, nil
}

func (r *fakeRunner) CopyFiles(files []string, hostDirs map[string]string) error {
	r.copies = append(r.copies, hostDirs)
	return nil
}

// testAgent wires an agent to an in-process scheduler endpoint over a pipe.
func testAgent(t *testing.T, cfg *types.JobConfig, rank int, runner remote.Runner) (*Agent, *framing.Channel) {
	t.Helper()
	agentSide, schedSide := net.Pipe()
	a := &Agent{
		rank:   rank,
		tmpDir: cfg.Task(rank).TmpDir,
		runner: runner,
		ch:     framing.New(agentSide),
		cfg:    cfg,
		worker: newWorker(cfg, rank),
		logger: log.WithRank(rank),
	}
	return a, framing.New(schedSide)
}

// tmpConfig clones workerConfig with paths rooted in writable temp dirs.
func tmpConfig(t *testing.T) *types.JobConfig {
	t.Helper()
	cfg := workerConfig()
	shuffleDir := t.TempDir()
	for i := range cfg.Tasks {
		cfg.Tasks[i].TmpDir = t.TempDir()
		if cfg.IsMapper(i) {
			cfg.Tasks[i].OutputPath = shuffleDir
		} else {
			cfg.Tasks[i].InputPath = shuffleDir
		}
	}
	return cfg
}

func TestBatchMapperAcknowledgesAfterShuffle(t *testing.T) {
	cfg := tmpConfig(t)
	runner := &fakeRunner{handles: []*fakeHandle{{pid: 42, done: true, exitCode: 0}}}
	a, sched := testAgent(t, cfg, 0, runner)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send(types.CmdStartMapper))
	reply, err := sched.Recv()
	require.NoError(t, err)
	assert.Equal(t, types.MsgMapperFinished, reply)

	// The mapper's child command was the only spawn.
	require.NotEmpty(t, runner.commands)
	assert.Contains(t, runner.commands[0], "--mr_map_worker_id=0")

	require.NoError(t, sched.Send(types.CmdQuit))
	assert.NoError(t, <-runErr)
}

func TestMapperChildFailureAbortsAgent(t *testing.T) {
	cfg := tmpConfig(t)
	runner := &fakeRunner{handles: []*fakeHandle{{pid: 42, waitErr: errors.New("exit status 1")}}}
	a, sched := testAgent(t, cfg, 0, runner)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send(types.CmdStartMapper))
	err := <-runErr
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mapper-0")
}

func TestIncrementalReducerStartsThenAcks(t *testing.T) {
	cfg := tmpConfig(t)
	cfg.Incremental = true
	child := &fakeHandle{pid: 77} // still running
	runner := &fakeRunner{handles: []*fakeHandle{child}}
	a, sched := testAgent(t, cfg, 2, runner)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send(types.CmdStartReducer))
	reply, err := sched.Recv()
	require.NoError(t, err)
	assert.Equal(t, types.MsgReducerStarted, reply)

	// The agent is back in its loop while the child runs: status works.
	require.NoError(t, sched.Send(types.CmdStatus))
	reply, err = sched.Recv()
	require.NoError(t, err)
	assert.True(t, reply == types.StatusNotSure || strings.HasPrefix(reply, types.StatusRunning),
		"unexpected status %q", reply)

	child.done = true
	child.exitCode = 0
	require.NoError(t, sched.Send(types.CmdStatus))
	reply, err = sched.Recv()
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinished, reply)

	require.NoError(t, sched.Send(types.CmdQuit))
	assert.NoError(t, <-runErr)
}

func TestBatchReducerRunsPreparePass(t *testing.T) {
	cfg := tmpConfig(t)
	inDir := cfg.Task(2).InputPath
	for seq := 0; seq < 2; seq++ {
		name := filepath.Join(inDir, fmt.Sprintf("%s-mapper-%05d-reducer-%05d-%08d", cfg.Identity, seq, 0, seq))
		require.NoError(t, os.WriteFile(name, []byte("kv"), 0644))
	}

	runner := &fakeRunner{handles: []*fakeHandle{{pid: 42, done: true}}}
	a, sched := testAgent(t, cfg, 2, runner)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send(types.CmdStartReducer))
	require.NoError(t, sched.Send(types.CmdQuit))
	require.NoError(t, <-runErr)

	// The renamed buffer count reached the child command line.
	var spawn string
	for _, cmd := range runner.commands {
		if strings.Contains(cmd, "--mr_reducer_class") {
			spawn = cmd
		}
	}
	require.NotEmpty(t, spawn)
	assert.Contains(t, spawn, "--mr_num_reduce_input_buffer_files=2")
}

func TestBatchReducerWithNoInputAborts(t *testing.T) {
	cfg := tmpConfig(t)
	a, sched := testAgent(t, cfg, 2, &fakeRunner{})

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send(types.CmdStartReducer))
	err := <-runErr
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find reduce buffers")
}

func TestMapperIgnoresStartReducer(t *testing.T) {
	cfg := tmpConfig(t)
	runner := &fakeRunner{}
	a, sched := testAgent(t, cfg, 0, runner)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send(types.CmdStartReducer))
	require.NoError(t, sched.Send(types.CmdQuit))
	require.NoError(t, <-runErr)

	for _, cmd := range runner.commands {
		assert.NotContains(t, cmd, "--mr_reducer_class")
	}
}

func TestStatusSilentWithoutChild(t *testing.T) {
	cfg := tmpConfig(t)
	a, sched := testAgent(t, cfg, 0, &fakeRunner{})

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	// No reply expected: the next frame the scheduler sees must be the
	// EOF from quit, not a status message.
	require.NoError(t, sched.Send(types.CmdStatus))
	require.NoError(t, sched.Send(types.CmdQuit))
	require.NoError(t, <-runErr)

	_, err := sched.Recv()
	assert.Error(t, err)
}

func TestStatusReportsFailureOnSignalDeath(t *testing.T) {
	cfg := tmpConfig(t)
	cfg.Incremental = true
	runner := &fakeRunner{handles: []*fakeHandle{{pid: 42, done: true, exitCode: -9}}}
	a, sched := testAgent(t, cfg, 2, runner)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send(types.CmdStartReducer))
	_, err := sched.Recv() // reducer_started
	require.NoError(t, err)

	require.NoError(t, sched.Send(types.CmdStatus))
	reply, err := sched.Recv()
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, reply)

	require.NoError(t, sched.Send(types.CmdQuit))
	require.NoError(t, <-runErr)
}

func TestIllegalInstructionFailsAgent(t *testing.T) {
	cfg := tmpConfig(t)
	a, sched := testAgent(t, cfg, 0, &fakeRunner{})

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send("reboot"))
	err := <-runErr
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal instruction")
}

func TestQuitCleansDeployedArtifacts(t *testing.T) {
	cfg := tmpConfig(t)
	runner := &fakeRunner{}
	a, sched := testAgent(t, cfg, 0, runner)

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	require.NoError(t, sched.Send(types.CmdExit))
	require.NoError(t, <-runErr)

	require.NotEmpty(t, runner.commands)
	last := runner.commands[len(runner.commands)-1]
	assert.Contains(t, last, "rm -rf")
	assert.Contains(t, last, cfg.RemoteExecutable)
	assert.Contains(t, last, types.AgentExecutable(cfg.Identity))
}

func TestKillChildTerminatesRunningWorker(t *testing.T) {
	cfg := tmpConfig(t)
	a, _ := testAgent(t, cfg, 0, &fakeRunner{})

	child := &fakeHandle{pid: 42}
	a.mu.Lock()
	a.child = child
	a.mu.Unlock()

	a.KillChild()
	assert.True(t, child.killed)

	// Already-finished children are left alone.
	finished := &fakeHandle{pid: 43, done: true}
	a.mu.Lock()
	a.child = finished
	a.mu.Unlock()
	a.KillChild()
	assert.False(t, finished.killed)
}

func TestDialHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := workerConfig()
	accepted := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			accepted <- err
			return
		}
		ch := framing.New(conn)
		hello, err := ch.Recv()
		if err != nil {
			accepted <- err
			return
		}
		if !strings.HasPrefix(hello, "rank 1 ") {
			accepted <- fmt.Errorf("bad handshake %q", hello)
			return
		}
		blob, err := cfg.Encode()
		if err != nil {
			accepted <- err
			return
		}
		accepted <- ch.Send(blob)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	a, err := Dial(Options{ServerIP: "127.0.0.1", ServerPort: port, Rank: 1, TmpDir: t.TempDir()}, &fakeRunner{})
	require.NoError(t, err)
	require.NoError(t, <-accepted)

	assert.Equal(t, 1, a.rank)
	assert.Equal(t, cfg.Identity, a.cfg.Identity)
	assert.True(t, a.worker.isMapper())
}

func TestDialRejectsOutOfRangeRank(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := workerConfig()
	go func() {
		conn, _ := ln.Accept()
		ch := framing.New(conn)
		_, _ = ch.Recv()
		blob, _ := cfg.Encode()
		_ = ch.Send(blob)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	_, err = Dial(Options{ServerIP: "127.0.0.1", ServerPort: port, Rank: 99, TmpDir: t.TempDir()}, &fakeRunner{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestCheckPathsForceMkdir(t *testing.T) {
	cfg := tmpConfig(t)
	cfg.ForceMkdir = true
	base := t.TempDir()
	cfg.Tasks[2].InputPath = filepath.Join(base, "shuffle")
	cfg.Tasks[2].OutputPath = filepath.Join(base, "out", "result")
	cfg.Tasks[2].LogFilebase = filepath.Join(base, "logs", "log")

	a, _ := testAgent(t, cfg, 2, &fakeRunner{})
	require.NoError(t, a.CheckPaths())

	assert.DirExists(t, filepath.Join(base, "shuffle"))
	assert.DirExists(t, filepath.Join(base, "out"))
	assert.DirExists(t, filepath.Join(base, "logs"))
}

func TestCheckPathsMapperNeedsMatchingInput(t *testing.T) {
	cfg := tmpConfig(t)
	inDir := t.TempDir()
	cfg.Tasks[0].InputPath = filepath.Join(inDir, "part-*")
	cfg.Tasks[0].LogFilebase = filepath.Join(t.TempDir(), "log")

	a, _ := testAgent(t, cfg, 0, &fakeRunner{})
	err := a.CheckPaths()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match any file")

	require.NoError(t, os.WriteFile(filepath.Join(inDir, "part-0"), []byte("x"), 0644))
	assert.NoError(t, a.CheckPaths())
}

func TestCheckPathsReducerNeedsExistingInputDir(t *testing.T) {
	cfg := tmpConfig(t)
	cfg.Tasks[2].InputPath = filepath.Join(t.TempDir(), "missing")
	cfg.Tasks[2].OutputPath = filepath.Join(t.TempDir(), "result")
	cfg.Tasks[2].LogFilebase = filepath.Join(t.TempDir(), "log")

	a, _ := testAgent(t, cfg, 2, &fakeRunner{})
	err := a.CheckPaths()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestIncrementalAckWaitsForStabilization(t *testing.T) {
	cfg := tmpConfig(t)
	cfg.Incremental = true
	runner := &fakeRunner{handles: []*fakeHandle{{pid: 7}}}
	a, sched := testAgent(t, cfg, 2, runner)

	go func() { _ = a.Run() }()
	defer sched.Close()

	start := time.Now()
	require.NoError(t, sched.Send(types.CmdStartReducer))
	_, err := sched.Recv()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), reducerStabilization)
}
