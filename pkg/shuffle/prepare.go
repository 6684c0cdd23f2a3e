package shuffle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlite/mrlite/pkg/types"
)

// Prepare is the reducer-side pass that runs before a batch reducer child
// spawns: it finds every partition destined for this reducer and renames
// the set into a densely numbered sequence
//
//	<input_path>/<identity>-<kkkkkkkkkk>
//
// with k counting from zero. The final count is returned so the agent can
// pass it to the reducer via --mr_num_reduce_input_buffer_files.
//
// Zero matching partitions is fatal: a batch reducer with no input means
// the shuffle never delivered, and the job must abort rather than produce
// an empty result.
func Prepare(cfg *types.JobConfig, rank int) (int, error) {
	task := cfg.Task(rank)
	reducerIndex := cfg.LocalIndex(rank)
	pattern := ReducerPattern(task.InputPath, cfg.Identity, reducerIndex)

	files, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to glob %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("failed to find reduce buffers matching %s", pattern)
	}

	num := 0
	for _, file := range files {
		_, gotIndex, err := ParsePartition(file)
		if err != nil {
			return 0, err
		}
		if gotIndex != reducerIndex {
			return 0, fmt.Errorf("partition %s is not for reducer %d", file, reducerIndex)
		}

		newName := fmt.Sprintf("%s-%010d", bufferPrefix(file), num)
		if err := os.Rename(file, newName); err != nil {
			return 0, fmt.Errorf("failed to rename reduce buffer: %w", err)
		}
		num++
	}
	return num, nil
}

// bufferPrefix strips the "-mapper-<m>-reducer-<r>-<seq>" suffix, leaving
// "<input_path>/<identity>".
func bufferPrefix(filename string) string {
	fields := rsplit(filename, '-', 5)
	return fields[0]
}
