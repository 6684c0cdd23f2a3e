package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrlite/mrlite/pkg/shuffle"
	"github.com/mrlite/mrlite/pkg/types"
)

// reducerStabilization is how long an incremental reducer gets between
// spawning and the reducer_started acknowledgement, so its listening side
// is up before any mapper starts streaming. A positive readiness signal
// from the reducer binary would be better; none exists today.
const reducerStabilization = 500 * time.Millisecond

// worker captures the role-specific half of an agent: which child command
// to build and how completion is acknowledged.
type worker struct {
	cfg  *types.JobConfig
	rank int

	// numReduceBuffers is filled by the batch prepare pass and handed to
	// the reducer child.
	numReduceBuffers int
}

func newWorker(cfg *types.JobConfig, rank int) *worker {
	return &worker{cfg: cfg, rank: rank}
}

func (w *worker) isMapper() bool {
	return w.cfg.IsMapper(w.rank)
}

// command builds the worker child's full command line for this role.
func (w *worker) command() string {
	switch {
	case w.cfg.MapOnly:
		return w.mapOnlyCommand()
	case w.isMapper():
		return w.mapCommand()
	default:
		return w.reduceCommand()
	}
}

// executable is the deployed binary plus the user's pass-through argument
// tail.
func (w *worker) executable() string {
	task := w.cfg.Task(w.rank)
	exe := task.TmpDir + "/" + w.cfg.RemoteExecutable
	if w.cfg.CmdArgs != "" {
		exe += " " + w.cfg.CmdArgs
	}
	return exe
}

func (w *worker) batchFlag() string {
	if w.cfg.Batch() {
		return "true"
	}
	return "false"
}

func (w *worker) mapCommand() string {
	task := w.cfg.Task(w.rank)
	bufferPerReducer := w.cfg.BufferSize / w.cfg.NumReduceWorkers
	reduceInputFilebase := task.OutputPath + "/" + w.cfg.Identity

	return strings.Join([]string{
		w.executable(),
		fmt.Sprintf("--mr_input_filepattern=%q", task.InputPath),
		fmt.Sprintf("--mr_reduce_input_filebase=%q", reduceInputFilebase),
		"--mr_batch_reduction=" + w.batchFlag(),
		fmt.Sprintf("--mr_log_filebase=%q", task.LogFilebase),
		fmt.Sprintf("--mr_num_map_workers=%d", w.cfg.NumMapWorkers),
		fmt.Sprintf("--mr_reduce_input_buffer_size=%d", bufferPerReducer),
		"--mr_reduce_workers=" + w.cfg.ReduceWorkerList(),
		fmt.Sprintf("--mr_map_worker_id=%d", w.rank),
		"--mr_map_only=false",
		"--mr_mapper_class=" + task.Class,
		"--mr_input_format=" + string(task.InputFormat),
	}, " ")
}

func (w *worker) mapOnlyCommand() string {
	task := w.cfg.Task(w.rank)

	return strings.Join([]string{
		w.executable(),
		fmt.Sprintf("--mr_input_filepattern=%q", task.InputPath),
		fmt.Sprintf("--mr_output_files=%q", task.OutputPath),
		fmt.Sprintf("--mr_log_filebase=%q", task.LogFilebase),
		fmt.Sprintf("--mr_num_map_workers=%d", w.cfg.NumMapWorkers),
		"--mr_reduce_workers=" + w.cfg.ReduceWorkerList(),
		fmt.Sprintf("--mr_map_worker_id=%d", w.rank),
		"--mr_map_only=true",
		"--mr_mapper_class=" + task.Class,
		"--mr_input_format=" + string(task.InputFormat),
		"--mr_output_format=" + string(task.OutputFormat),
	}, " ")
}

func (w *worker) reduceCommand() string {
	task := w.cfg.Task(w.rank)
	reduceInputFilebase := task.InputPath + "/" + w.cfg.Identity

	return strings.Join([]string{
		w.executable(),
		fmt.Sprintf("--mr_output_files=%q", task.OutputPath),
		"--mr_batch_reduction=" + w.batchFlag(),
		fmt.Sprintf("--mr_reduce_input_filebase=%q", reduceInputFilebase),
		fmt.Sprintf("--mr_num_reduce_input_buffer_files=%d", w.numReduceBuffers),
		fmt.Sprintf("--mr_log_filebase=%q", task.LogFilebase),
		fmt.Sprintf("--mr_num_map_workers=%d", w.cfg.NumMapWorkers),
		"--mr_reduce_workers=" + w.cfg.ReduceWorkerList(),
		fmt.Sprintf("--mr_reduce_worker_id=%d", w.cfg.LocalIndex(w.rank)),
		"--mr_reducer_class=" + task.Class,
		"--mr_output_format=" + string(task.OutputFormat),
	}, " ")
}

// startMapper spawns the map child and blocks until it exits. A batch
// mapper then relocates its shuffle partitions and acknowledges with
// mapper_finished; a map-only mapper acknowledges nothing.
func (a *Agent) startMapper() error {
	h, err := a.spawn()
	if err != nil {
		return err
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("%s: %w", a.cfg.WorkerName(a.rank), err)
	}

	if a.cfg.MapOnly {
		a.logger.Info().Msg(a.cfg.WorkerName(a.rank) + " finished")
		return nil
	}
	if a.cfg.Batch() {
		if err := shuffle.NewMover(a.runner, a.cfg, a.rank).Push(); err != nil {
			return err
		}
		a.logger.Info().Msg(a.cfg.WorkerName(a.rank) + " finished")
		return a.ch.Send(types.MsgMapperFinished)
	}
	a.logger.Info().Msg(a.cfg.WorkerName(a.rank) + " finished")
	return nil
}

// startReducer spawns the reduce child. In batch mode the prepare pass runs
// first and the agent blocks on the child like a mapper. In incremental
// mode the child keeps running while the agent returns to its instruction
// loop, acknowledging reducer_started after a short stabilization delay so
// the scheduler may release the mappers.
func (a *Agent) startReducer() error {
	if a.cfg.Batch() {
		count, err := shuffle.Prepare(a.cfg, a.rank)
		if err != nil {
			return err
		}
		a.worker.numReduceBuffers = count
	}

	h, err := a.spawn()
	if err != nil {
		return err
	}

	if a.cfg.Batch() {
		if err := h.Wait(); err != nil {
			return fmt.Errorf("%s: %w", a.cfg.WorkerName(a.rank), err)
		}
		a.logger.Info().Msg(a.cfg.WorkerName(a.rank) + " finished")
		return nil
	}

	time.Sleep(reducerStabilization)
	return a.ch.Send(types.MsgReducerStarted)
}
